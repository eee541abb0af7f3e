package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeIngested     = "ingested"
	outcomeUndecodable  = "undecodable"
	outcomeHandlerError = "handler_error"
)

var (
	rowMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "consumer",
		Name:      "row_messages_total",
		Help:      "Row messages fetched from Kafka by topic and outcome.",
	}, []string{"topic", "outcome"})

	fetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sitetracker",
		Subsystem: "consumer",
		Name:      "fetch_failures_total",
		Help:      "Failed attempts to fetch the next message.",
	})

	ingestLag = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitetracker",
		Subsystem: "consumer",
		Name:      "ingest_lag_seconds",
		Help:      "Delay between a row message being produced and merged into the working set.",
		Buckets:   []float64{0.05, 0.25, 1, 5, 30, 120, 600},
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(rowMessages, fetchFailures, ingestLag)
}

func observeOutcome(topic, outcome string) {
	rowMessages.WithLabelValues(topic, outcome).Inc()
}

func observeLag(msg Message, now time.Time) {
	if msg.Timestamp.IsZero() || now.Before(msg.Timestamp) {
		return
	}
	ingestLag.WithLabelValues(msg.Source).Observe(now.Sub(msg.Timestamp).Seconds())
}
