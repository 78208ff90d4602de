package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

const namespace = "retrieval"

// retrievalCollectors are shared by every surface that serves retrieval operations.
type retrievalCollectors struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	resultsReturned   *prometheus.HistogramVec
	keywordDegraded   *prometheus.CounterVec
	anchorsSkipped    *prometheus.CounterVec
	breakerOpen       *prometheus.GaugeVec
}

func newRetrievalCollectors() retrievalCollectors {
	return retrievalCollectors{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ops",
				Name:      "total",
				Help:      "Total retrieval operations by outcome.",
			},
			[]string{"service", "operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ops",
				Name:      "duration_seconds",
				Help:      "Retrieval operation duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		resultsReturned: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ops",
				Name:      "results",
				Help:      "Distribution of results returned per successful operation.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 50},
			},
			[]string{"service", "operation"},
		),
		keywordDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keyword",
				Name:      "degraded_total",
				Help:      "Hybrid searches that fell back to vector-only results.",
			},
			[]string{"service"},
		),
		anchorsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "related",
				Name:      "anchors_skipped_total",
				Help:      "Anchor chunk searches skipped after a failure.",
			},
			[]string{"service"},
		),
		breakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "breaker_open",
				Help:      "1 while the circuit breaker for a backend operation is open.",
			},
			[]string{"service", "operation"},
		),
	}
}

func (c retrievalCollectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.operationsTotal,
		c.operationDuration,
		c.resultsReturned,
		c.keywordDegraded,
		c.anchorsSkipped,
		c.breakerOpen,
	}
}

func (c retrievalCollectors) record(service, operation string, results int, duration time.Duration, err error) {
	status := operationStatus(err)
	c.operationsTotal.WithLabelValues(service, operation, status).Inc()
	c.operationDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
	if err == nil {
		c.resultsReturned.WithLabelValues(service, operation).Observe(float64(results))
	}
}

// operationStatus maps an error to a low-cardinality label.
func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case domain.IsKind(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}

// Observer counts degradation events for a service.
type Observer struct {
	service         string
	keywordDegraded prometheus.Counter
	anchorsSkipped  prometheus.Counter
	breakerOpen     *prometheus.GaugeVec
}

func (c retrievalCollectors) observer(service string) *Observer {
	return &Observer{
		service:         service,
		keywordDegraded: c.keywordDegraded.WithLabelValues(service),
		anchorsSkipped:  c.anchorsSkipped.WithLabelValues(service),
		breakerOpen:     c.breakerOpen,
	}
}

func (o *Observer) KeywordDegraded() {
	o.keywordDegraded.Inc()
}

func (o *Observer) AnchorSkipped() {
	o.anchorsSkipped.Inc()
}

func (o *Observer) BreakerStateChanged(operation string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	o.breakerOpen.WithLabelValues(o.service, operation).Set(v)
}
