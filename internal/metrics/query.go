package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query Prometheus metrics.
var (
	FilterCompileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spatialvault",
			Name:      "filter_compile_total",
			Help:      "Total number of CQL2 filter compilations",
		},
		[]string{"status"}, // "ok" / "error"
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spatialvault",
			Name:      "query_duration_seconds",
			Help:      "Spatial query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers Prometheus query metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(FilterCompileTotal)
	prometheus.MustRegister(QueryDuration)
	queryMetricsRegistered = true
}
