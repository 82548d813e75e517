package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecommendMetrics exposes counters/histograms for the recommendation pipeline.
type RecommendMetrics struct {
	requestsTotal      *prometheus.CounterVec
	completionLatency  *prometheus.HistogramVec
	rateLimitRejection prometheus.Counter
}

func NewRecommendMetrics(reg prometheus.Registerer) *RecommendMetrics {
	m := &RecommendMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookmatch",
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Recommendation requests by final outcome",
		}, []string{"outcome"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookmatch",
			Subsystem: "completion",
			Name:      "latency_seconds",
			Help:      "Latency of upstream chat-completion calls",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		rateLimitRejection: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookmatch",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Requests rejected by the protected rate limit",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.completionLatency, m.rateLimitRejection)
	return m
}

func (m *RecommendMetrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

func (m *RecommendMetrics) ObserveCompletion(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completionLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *RecommendMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejection.Inc()
}
