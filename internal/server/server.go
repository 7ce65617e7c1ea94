package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairwire/internal/relay"
)

// Options carry the tunables the server does not get from the relay.
type Options struct {
	// Keepalive is the per-connection ping period. Zero selects 30s.
	Keepalive time.Duration
	// Clock drives keepalive tickers; nil selects the wall clock.
	Clock clock.Clock
	// Metrics, when non-nil, is mounted at /metrics.
	Metrics http.Handler
}

// Server accepts websocket connections and feeds their lifecycle and
// message events into the relay.
type Server struct {
	relay    *relay.Relay
	logger   zerolog.Logger
	opts     Options
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	ln       net.Listener
}

// New starts listening on the given address. Clients connect with a
// websocket upgrade on "/"; "/healthz" serves relay statistics.
func New(listen string, rly *relay.Relay, logger zerolog.Logger, opts Options) (*Server, error) {
	if opts.Keepalive <= 0 {
		opts.Keepalive = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	s := &Server{
		relay:  rly,
		logger: logger.With().Str("component", "server").Logger(),
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are anonymous browsers on arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	mux.HandleFunc("/", s.handleWebsocket)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", listen, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("server stopped")
		}
	}()

	s.logger.Info().Str("listen", ln.Addr().String()).Msg("relay server started")
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Run blocks until the context is cancelled, then shuts the HTTP
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.httpSrv.Close()
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(ws, s.logger)
	go c.writePump()

	id := s.relay.HandleOpen(c)
	go c.keepalive(s.opts.Clock, s.opts.Keepalive)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		s.relay.HandleMessage(id, raw)
	}

	c.close()
	s.relay.HandleClose(id)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	connections, waiting := s.relay.Stats()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]int{
		"connections": connections,
		"waiting":     waiting,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("encode health response")
	}
}
