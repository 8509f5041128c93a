package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	ClientInstances prometheus.Gauge
	Sends           *prometheus.CounterVec
	InferenceCalls  *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	AuthEvents      *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) prometheus.Collector {
		reg.MustRegister(c)
		return c
	}

	m := &Metrics{registry: reg}
	m.ClientInstances = factory(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "client_instances",
		Help:      "Number of live client instances.",
	})).(prometheus.Gauge)
	m.Sends = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sends_total",
		Help:      "Send-message flows by outcome.",
	}, []string{"outcome"})).(*prometheus.CounterVec)
	m.InferenceCalls = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inference_calls_total",
		Help:      "Inference calls by kind and outcome.",
	}, []string{"kind", "outcome"})).(*prometheus.CounterVec)
	m.StoreErrors = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Store failures by operation.",
	}, []string{"op"})).(*prometheus.CounterVec)
	m.AuthEvents = factory(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Auth state notifications by event.",
	}, []string{"event"})).(*prometheus.CounterVec)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncSend(outcome string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncInference(kind, outcome string) {
	if m == nil {
		return
	}
	m.InferenceCalls.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) IncAuthEvent(event string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetClientInstances(n int) {
	if m == nil {
		return
	}
	m.ClientInstances.Set(float64(n))
}
