package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the ingestion pipeline

var (
	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrpool_cycles_total",
			Help: "Total number of ingestion cycles",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrpool_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrpool_cycles_skipped_total",
			Help: "Ticks skipped because the previous cycle was still running",
		},
	)

	// Feed metrics
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrpool_fetch_attempts_total",
			Help: "Total number of feed fetch attempts",
		},
		[]string{"status"},
	)

	// Archive metrics
	SnapshotsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrpool_snapshots_written_total",
			Help: "Total number of stat snapshots written",
		},
	)

	PlayersTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrpool_players_tracked",
			Help: "Total number of player identities in the database",
		},
	)

	// Leaderboard metrics
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrpool_leaderboard_publishes_total",
			Help: "Total number of leaderboard publishes",
		},
		[]string{"type"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrpool_cache_hits_total",
			Help: "Total number of leaderboard cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrpool_cache_misses_total",
			Help: "Total number of leaderboard cache misses",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrpool_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrpool_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulCycle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hrpool_last_successful_cycle_timestamp",
			Help: "Timestamp of the last successful ingestion cycle",
		},
	)
)

// RecordCycle records a completed cycle
func RecordCycle(status string, duration float64) {
	CyclesTotal.WithLabelValues(status).Inc()
	CycleDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordCycleSkipped records a collapsed tick
func RecordCycleSkipped() {
	CyclesSkipped.Inc()
}

// RecordFetchAttempt records one feed fetch attempt
func RecordFetchAttempt(status string) {
	FetchAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordSnapshotsWritten records archived snapshots for a cycle
func RecordSnapshotsWritten(count int) {
	SnapshotsWrittenTotal.Add(float64(count))
}

// RecordPublish records a leaderboard publish
func RecordPublish(lbType string) {
	PublishesTotal.WithLabelValues(lbType).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
