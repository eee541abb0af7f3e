// Package observability exposes the Prometheus metrics of the working set and ingestion.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workingSetSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitetracker",
		Subsystem: "working_set",
		Name:      "activities",
		Help:      "Number of activities currently held in the working set.",
	})
	workingSetVersionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sitetracker",
		Subsystem: "working_set",
		Name:      "version",
		Help:      "Monotonic version of the working set, bumped on every mutation.",
	})
	viewCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "working_set",
		Name:      "view_cache_lookups_total",
		Help:      "Derived view lookups labeled by cache result.",
	}, []string{"result"})
	rowsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Delimited rows seen by ingestion, labeled by source and outcome.",
	}, []string{"source", "outcome"})
	lastIngestGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sitetracker",
		Subsystem: "ingest",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent ingestion that changed the working set.",
	}, []string{"source"})
	feedFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "feed",
		Name:      "fetch_failures_total",
		Help:      "Number of remote feed fetches that failed or returned no usable rows.",
	})
)

func init() {
	prometheus.MustRegister(workingSetSizeGauge, workingSetVersionGauge, viewCacheCounter, rowsCounter, lastIngestGauge, feedFailureCounter)
}

// RecordWorkingSet publishes the size and version after a mutation.
func RecordWorkingSet(size int, version uint64) {
	workingSetSizeGauge.Set(float64(size))
	workingSetVersionGauge.Set(float64(version))
}

// WorkingSetMetrics forwards working-set notifications to the gauges and the
// view cache counter.
type WorkingSetMetrics struct{}

// WorkingSetChanged records the size and version after a mutation.
func (WorkingSetMetrics) WorkingSetChanged(size int, version uint64) {
	RecordWorkingSet(size, version)
}

// ViewLookup records a memoized view lookup.
func (WorkingSetMetrics) ViewLookup(hit bool) {
	RecordViewCache(hit)
}

// RecordViewCache counts a memoized view lookup.
func RecordViewCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	viewCacheCounter.WithLabelValues(result).Inc()
}

// RecordRows counts accepted and rejected rows for one ingestion.
func RecordRows(source string, accepted, rejected int) {
	rowsCounter.WithLabelValues(source, "accepted").Add(float64(accepted))
	rowsCounter.WithLabelValues(source, "rejected").Add(float64(rejected))
}

// RecordIngested updates the ingestion watermark for source.
func RecordIngested(source string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastIngestGauge.WithLabelValues(source).Set(float64(ts.Unix()))
}

// RecordFeedFailure counts a failed feed refresh.
func RecordFeedFailure() {
	feedFailureCounter.Inc()
}
