package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "events",
		Name:      "delivered_total",
		Help:      "Number of working-set events successfully published to Kafka.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "events",
		Name:      "failed_total",
		Help:      "Number of working-set events that could not be published.",
	}, []string{"event_type"})

	publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitetracker",
		Subsystem: "events",
		Name:      "publish_duration_seconds",
		Help:      "Time spent resolving the schema and writing one event.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, publishDuration)
}
