// Package metrics holds the process-wide prometheus collectors and the /metrics handler
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// cacheLookups counts cache reads by group and result (hit, miss, error)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_cache_lookups_total",
		Help: "Cache lookups by group and result",
	}, []string{"group", "result"})

	// epochBumps counts invalidations by group
	epochBumps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_cache_epoch_bumps_total",
		Help: "Cache epoch bumps by group",
	}, []string{"group"})

	// queryDuration tracks listing stages
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_activity_query_duration_seconds",
		Help:    "Activity listing stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"stage"})

	// rebuildDuration tracks nested-set renumbering per top-level record
	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "murmur_thread_rebuild_duration_seconds",
		Help:    "Comment tree rebuild duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// treeGaps counts depth walks truncated by a missing ancestor
	treeGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_thread_depth_gaps_total",
		Help: "Comment depth walks truncated by a missing ancestor",
	})

	// txRetries counts write transactions rerun after postgres aborted them on contention
	txRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_tx_retries_total",
		Help: "Write transactions retried after a deadlock or serialization failure",
	}, []string{"op"})

	// archiveFailures counts archive sink writes that were dropped
	archiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_archive_failures_total",
		Help: "Archive events that could not be written",
	})
)

// CacheLookup records one cache read
func CacheLookup(group, result string) { cacheLookups.WithLabelValues(group, result).Inc() }

// EpochBump records one group invalidation
func EpochBump(group string) { epochBumps.WithLabelValues(group).Inc() }

// ObserveQuery records how long a listing stage took
func ObserveQuery(stage string, start time.Time) {
	queryDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveRebuild records how long a tree rebuild took
func ObserveRebuild(start time.Time) { rebuildDuration.Observe(time.Since(start).Seconds()) }

// TreeGaps adds n truncated depth walks
func TreeGaps(n int) {
	if n > 0 {
		treeGaps.Add(float64(n))
	}
}

// TxRetry records one rerun of op's transaction
func TxRetry(op string) { txRetries.WithLabelValues(op).Inc() }

// ArchiveFailure records a dropped archive event
func ArchiveFailure() { archiveFailures.Inc() }

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }
