package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the relay.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks
// are executed inline with connection and message handling.
type Collector interface {
	ConnectionOpened()
	ConnectionClosed()
	SetWaitingDepth(depth int)
	IncPaired()
	IncRelayed(kind string)
	IncRejected(reason string)
	IncSwept(count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ConnectionOpened()   {}
func (noopCollector) ConnectionClosed()   {}
func (noopCollector) SetWaitingDepth(int) {}
func (noopCollector) IncPaired()          {}
func (noopCollector) IncRelayed(string)   {}
func (noopCollector) IncRejected(string)  {}
func (noopCollector) IncSwept(int)        {}

// PrometheusCollector exposes relay counters via Prometheus.
type PrometheusCollector struct {
	connections  prometheus.Gauge
	waitingDepth prometheus.Gauge
	pairs        prometheus.Counter
	relayed      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	swept        prometheus.Counter
}

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairwire_connections_open",
		Help: "Number of currently open client connections.",
	})
	waitingDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairwire_waiting_queue_depth",
		Help: "Number of connections currently waiting for a partner.",
	})
	pairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairwire_pairs_established_total",
		Help: "Number of pairings established since process start.",
	})
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairwire_messages_relayed_total",
		Help: "Number of relay messages forwarded, by message kind.",
	}, []string{"kind"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairwire_messages_rejected_total",
		Help: "Number of inbound messages rejected, by reason.",
	}, []string{"reason"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairwire_queue_entries_swept_total",
		Help: "Number of stale waiting queue entries removed by the sweeper.",
	})

	collector := &PrometheusCollector{
		connections:  connections,
		waitingDepth: waitingDepth,
		pairs:        pairs,
		relayed:      relayed,
		rejected:     rejected,
		swept:        swept,
	}
	for _, c := range []prometheus.Collector{connections, waitingDepth, pairs, relayed, rejected, swept} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	return collector, nil
}

// register tolerates duplicate registration so a collector can be
// rebuilt against the same registry, matching process restarts in tests.
func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ConnectionOpened increments the open connection gauge.
func (p *PrometheusCollector) ConnectionOpened() {
	if p == nil || p.connections == nil {
		return
	}
	p.connections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (p *PrometheusCollector) ConnectionClosed() {
	if p == nil || p.connections == nil {
		return
	}
	p.connections.Dec()
}

// SetWaitingDepth updates the waiting queue depth gauge.
func (p *PrometheusCollector) SetWaitingDepth(depth int) {
	if p == nil || p.waitingDepth == nil {
		return
	}
	p.waitingDepth.Set(float64(depth))
}

// IncPaired records an established pairing.
func (p *PrometheusCollector) IncPaired() {
	if p == nil || p.pairs == nil {
		return
	}
	p.pairs.Inc()
}

// IncRelayed records a forwarded relay message of the given kind.
func (p *PrometheusCollector) IncRelayed(kind string) {
	if p == nil || p.relayed == nil {
		return
	}
	p.relayed.WithLabelValues(kind).Inc()
}

// IncRejected records a rejected inbound message.
func (p *PrometheusCollector) IncRejected(reason string) {
	if p == nil || p.rejected == nil {
		return
	}
	p.rejected.WithLabelValues(reason).Inc()
}

// IncSwept records queue entries removed by the liveness sweeper.
func (p *PrometheusCollector) IncSwept(count int) {
	if p == nil || p.swept == nil || count <= 0 {
		return
	}
	p.swept.Add(float64(count))
}
