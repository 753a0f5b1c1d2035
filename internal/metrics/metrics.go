// Package metrics counts what the gateway loop sees and does. Counters are
// exported to Prometheus and mirrored in a small snapshot for /api/status.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/dprs_gateway/internal/dprs"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

const namespace = "dprs_gateway"

// Metrics is safe for concurrent use. Each instance owns its own registry.
type Metrics struct {
	registry *prometheus.Registry

	lines      prometheus.Counter
	oversized  prometheus.Counter
	packets    *prometheus.CounterVec
	forwarded  prometheus.Counter
	sinkErrors *prometheus.CounterVec
	lastHeard  prometheus.Gauge

	mu     sync.Mutex
	status Status
}

// Status is the JSON body of /api/status.
type Status struct {
	StartedAt   time.Time         `json:"started_at"`
	Lines       uint64            `json:"lines"`
	Oversized   uint64            `json:"oversized"`
	Packets     map[string]uint64 `json:"packets"`
	Forwarded   uint64            `json:"forwarded"`
	SinkErrors  map[string]uint64 `json:"sink_errors"`
	LastStation *station.Report   `json:"last_station,omitempty"`
	LastHeard   string            `json:"last_heard,omitempty"`
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Non-blank lines read from the serial source.",
		}),
		oversized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversized_lines_total",
			Help:      "Lines dropped for exceeding the configured length.",
		}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Parsed lines by outcome.",
		}, []string{"outcome"}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwarded_total",
			Help:      "Positioned packets handed to the sinks.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed deliveries by sink.",
		}, []string{"sink"}),
		lastHeard: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_heard_timestamp_seconds",
			Help:      "Unix time of the last forwarded position.",
		}),
		status: Status{
			StartedAt:  time.Now().UTC(),
			Packets:    map[string]uint64{},
			SinkErrors: map[string]uint64{},
		},
	}
	m.registry.MustRegister(m.lines, m.oversized, m.packets, m.forwarded, m.sinkErrors, m.lastHeard)
	return m
}

func (m *Metrics) LineRead() {
	m.lines.Inc()
	m.mu.Lock()
	m.status.Lines++
	m.mu.Unlock()
}

func (m *Metrics) LineOversized() {
	m.oversized.Inc()
	m.mu.Lock()
	m.status.Oversized++
	m.mu.Unlock()
}

func (m *Metrics) Parsed(o dprs.Outcome) {
	m.packets.WithLabelValues(o.String()).Inc()
	m.mu.Lock()
	m.status.Packets[o.String()]++
	m.mu.Unlock()
}

func (m *Metrics) Forwarded(r station.Report) {
	m.forwarded.Inc()
	m.lastHeard.Set(float64(r.ReceivedAt.Unix()))
	m.mu.Lock()
	m.status.Forwarded++
	m.status.LastStation = &r
	m.mu.Unlock()
}

func (m *Metrics) SinkFailed(name string) {
	m.sinkErrors.WithLabelValues(name).Inc()
	m.mu.Lock()
	m.status.SinkErrors[name]++
	m.mu.Unlock()
}

// Snapshot copies the current status, rendering the last-heard age
// relative to now.
func (m *Metrics) Snapshot(now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.status
	s.Packets = make(map[string]uint64, len(m.status.Packets))
	for k, v := range m.status.Packets {
		s.Packets[k] = v
	}
	s.SinkErrors = make(map[string]uint64, len(m.status.SinkErrors))
	for k, v := range m.status.SinkErrors {
		s.SinkErrors[k] = v
	}
	if m.status.LastStation != nil {
		last := *m.status.LastStation
		s.LastStation = &last
		s.LastHeard = last.Age(now)
	}
	return s
}

// Handler serves the Prometheus exposition format for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
