package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"pairwire/internal/config"
	"pairwire/internal/logging"
	"pairwire/internal/relay"
	"pairwire/internal/server"
	"pairwire/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to configuration file (optional)")
	healthcheck := flag.Bool("healthcheck", false, "Validate configuration and exit")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		if *healthcheck {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *healthcheck {
		os.Exit(0)
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	collector, metricsHandler, err := newTelemetryCollector(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		collector = telemetry.Noop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rly := relay.New(logger, collector, nil)

	srv, err := server.New(cfg.ListenAddr(), rly, logger, server.Options{
		Keepalive: cfg.KeepaliveInterval(),
		Metrics:   metricsHandler,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	go rly.RunSweeper(ctx, cfg.SweepInterval())

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, http.Handler, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil, nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		reg := prometheus.NewRegistry()
		collector, err := telemetry.NewPrometheusCollector(reg)
		if err != nil {
			return nil, nil, err
		}
		return collector, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
	default:
		return telemetry.Noop(), nil, fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}
