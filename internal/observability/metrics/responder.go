package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResponderMetrics instruments the NATS request/reply worker.
type ResponderMetrics struct {
	registry *prometheus.Registry

	messagesInFlight prometheus.Gauge
	requestAge       *prometheus.HistogramVec

	retrieval retrievalCollectors
}

func NewResponderMetrics(service string) *ResponderMetrics {
	registry := prometheus.NewRegistry()

	messagesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "messages_in_flight",
			Help:      "Number of retrieval requests being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	requestAge := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "request_age_seconds",
			Help:      "Delay between request publication and handling start.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"service"},
	)
	retrieval := newRetrievalCollectors()

	registry.MustRegister(messagesInFlight, requestAge)
	registry.MustRegister(retrieval.collectors()...)

	return &ResponderMetrics{
		registry:         registry,
		messagesInFlight: messagesInFlight,
		requestAge:       requestAge,
		retrieval:        retrieval,
	}
}

func (m *ResponderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ResponderMetrics) StartMessage() {
	m.messagesInFlight.Inc()
}

func (m *ResponderMetrics) FinishMessage(service, operation string, results int, duration time.Duration, err error) {
	m.messagesInFlight.Dec()
	m.retrieval.record(service, operation, results, duration, err)
}

func (m *ResponderMetrics) ObserveRequestAge(service string, age time.Duration) {
	if age < 0 {
		return
	}
	m.requestAge.WithLabelValues(service).Observe(age.Seconds())
}

func (m *ResponderMetrics) Observer(service string) *Observer {
	return m.retrieval.observer(service)
}
