// Package metrics 定义推荐核心的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 读请求
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybridrec_request_duration_seconds",
			Help:    "Duration of recommendation reads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridrec_requests_total",
			Help: "Total number of recommendation reads",
		},
		[]string{"operation", "outcome"},
	)

	// 缓存
	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridrec_cache_results_total",
			Help: "Cache lookups by result (hit, miss, stale, error)",
		},
		[]string{"operation", "result"},
	)

	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hybridrec_cache_breaker_state",
			Help: "Cache circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridrec_cache_invalidations_total",
			Help: "Explicit cache invalidations by reason",
		},
		[]string{"reason"},
	)

	// 重训与快照
	RetrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridrec_retrains_total",
			Help: "Total number of retrains by outcome",
		},
		[]string{"outcome"},
	)

	RetrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hybridrec_retrain_duration_seconds",
			Help:    "Duration of retrains in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	SnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hybridrec_snapshot_version",
			Help: "Version of the snapshot currently served",
		},
	)

	SnapshotSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hybridrec_snapshot_size",
			Help: "Size of the served snapshot by dimension",
		},
		[]string{"dimension"}, // items, users, interactions, vocabulary
	)

	// 交互
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybridrec_interactions_recorded_total",
			Help: "Total number of recorded interactions by type",
		},
		[]string{"type"},
	)

	InteractionTail = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hybridrec_interaction_tail_size",
			Help: "Interactions recorded since the served snapshot",
		},
	)

	// Pipeline
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybridrec_pipeline_node_duration_seconds",
			Help:    "Duration of pipeline nodes in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"pipeline", "node"},
	)

	NodeItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybridrec_pipeline_node_items",
			Help:    "Items emitted by pipeline nodes",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"pipeline", "node"},
	)
)

// ObserveRequest 记录一次读请求。
func ObserveRequest(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	RequestsTotal.WithLabelValues(operation, outcome).Inc()
}
