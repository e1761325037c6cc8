package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classification Prometheus metrics.
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcat",
			Name:      "classifications_total",
			Help:      "Products classified, by winning method",
		},
		[]string{"method"},
	)

	ClassificationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcat",
			Name:      "classification_cache_total",
			Help:      "Classification and content-hash cache lookups",
		},
		[]string{"cache", "result"}, // cache: "vector" / "hash"; result: "hit" / "miss" / "error"
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcat",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM batch requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partcat",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM batch request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"model"},
	)

	LLMRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcat",
			Name:      "llm_retries_total",
			Help:      "LLM batch retries, by reason",
		},
		[]string{"reason"}, // "rate_limit" / "timeout" / "error" / "unparsable"
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partcat",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "type"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partcat",
			Name:      "categorize_run_duration_seconds",
			Help:      "Categorization run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 300},
		},
		[]string{"mode"},
	)
)

var classMetricsRegistered bool

// RegisterClassificationMetrics registers Prometheus classification metrics. Must be called once from main.
func RegisterClassificationMetrics() {
	if classMetricsRegistered {
		return
	}
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ClassificationCacheTotal)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMRetriesTotal)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(RunDuration)
	classMetricsRegistered = true
}
