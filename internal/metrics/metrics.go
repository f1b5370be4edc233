package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "logwatch"

type Counter interface {
	Inc(labels ...string)
	Add(v float64, labels ...string)
}

// Counters groups the pipeline counters exported at /metrics.
type Counters struct {
	LogsAccepted     Counter
	LogsRejected     Counter
	EventsDropped    Counter
	BroadcastDropped Counter
	AlertsRaised     Counter
	LinesMalformed   Counter

	// Tenants bounds the tenant label of LogsAccepted and LogsRejected.
	Tenants *TenantLabels
}

type PrometheusCounter struct {
	counter *prometheus.CounterVec
}

func newPrometheusCounter(name, help string, labels []string) *PrometheusCounter {
	return &PrometheusCounter{
		counter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels),
	}
}

func (p *PrometheusCounter) Inc(labels ...string) {
	p.counter.WithLabelValues(labels...).Inc()
}

// Vec exposes the underlying vector, mostly for tests.
func (p *PrometheusCounter) Vec() *prometheus.CounterVec {
	return p.counter
}

func (p *PrometheusCounter) Add(v float64, labels ...string) {
	p.counter.WithLabelValues(labels...).Add(v)
}

// New builds the counters and registers them with reg.
func New(reg prometheus.Registerer) *Counters {
	accepted := newPrometheusCounter("logs_accepted_total", "Log records accepted by the ingestion service.", []string{"tenant"})
	rejected := newPrometheusCounter("logs_rejected_total", "Log records rejected by validation.", []string{"tenant"})
	dropped := newPrometheusCounter("events_dropped_total", "Accepted records lost because a flush failed.", nil)
	bcast := newPrometheusCounter("broadcast_dropped_total", "Records not delivered to a full subscriber queue.", nil)
	alerts := newPrometheusCounter("alerts_raised_total", "Alerts raised by the anomaly detector.", []string{"type"})
	malformed := newPrometheusCounter("lines_malformed_total", "NDJSON input lines that were not valid JSON.", []string{"source"})

	reg.MustRegister(accepted.counter, rejected.counter, dropped.counter, bcast.counter, alerts.counter, malformed.counter)

	return &Counters{
		LogsAccepted:     accepted,
		LogsRejected:     rejected,
		EventsDropped:    dropped,
		BroadcastDropped: bcast,
		AlertsRaised:     alerts,
		LinesMalformed:   malformed,
		Tenants:          NewTenantLabels(DefaultTenantLabelLimit, nil),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewTestCounters registers the counters on a throwaway registry.
func NewTestCounters() *Counters {
	return New(prometheus.NewRegistry())
}
