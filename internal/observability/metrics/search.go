package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

// SearchMetrics records hybrid search outcomes and per-modality behaviour.
type SearchMetrics struct {
	service string

	searchesTotal      *prometheus.CounterVec
	searchDuration     prometheus.Histogram
	finalCandidates    prometheus.Histogram
	modalityCandidates *prometheus.HistogramVec
	modalityDuration   *prometheus.HistogramVec
	modalityFailures   *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func NewSearchMetrics(service string, reg prometheus.Registerer) *SearchMetrics {
	constLabels := prometheus.Labels{"service": service}

	m := &SearchMetrics{
		service: service,
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "requests_total",
			Help:        "Hybrid searches by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "duration_seconds",
			Help:        "End-to-end hybrid search duration.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),
		finalCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "final_candidates",
			Help:        "Candidates returned per search.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 20},
			ConstLabels: constLabels,
		}),
		modalityCandidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "modality",
			Name:        "candidates",
			Help:        "Candidates contributed per modality call.",
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50},
			ConstLabels: constLabels,
		}, []string{"modality"}),
		modalityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "modality",
			Name:        "duration_seconds",
			Help:        "Successful modality call duration.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"modality"}),
		modalityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "modality",
			Name:        "failures_total",
			Help:        "Failed modality calls.",
			ConstLabels: constLabels,
		}, []string{"modality"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "circuit_breaker_state",
			Help:        "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.searchesTotal,
		m.searchDuration,
		m.finalCandidates,
		m.modalityCandidates,
		m.modalityDuration,
		m.modalityFailures,
		m.breakerState,
	)
	return m
}

func (m *SearchMetrics) ObserveModality(modality domain.Modality, candidates int, duration time.Duration, err error) {
	label := string(modality)
	if err != nil {
		m.modalityFailures.WithLabelValues(label).Inc()
		return
	}
	m.modalityCandidates.WithLabelValues(label).Observe(float64(candidates))
	m.modalityDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (m *SearchMetrics) ObserveSearch(outcome string, finalCandidates int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.searchesTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(duration.Seconds())
	m.finalCandidates.Observe(float64(finalCandidates))
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *SearchMetrics) ObserveBreakerState(operation string, _ gobreaker.State, to gobreaker.State) {
	value := 0.0
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
