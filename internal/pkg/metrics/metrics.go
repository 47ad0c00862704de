// Package metrics holds the prometheus collectors of the TVL service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ist_tvl"

var (
	// StorageQueries counts vstorage queries by kind and outcome (ok, not_found, transport_error, decode_error, cache_hit).
	StorageQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vstorage",
		Name:      "queries_total",
		Help:      "vstorage abci_query lookups by kind and outcome.",
	}, []string{"kind", "outcome"})

	// StorageRetries counts retried vstorage network calls.
	StorageRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vstorage",
		Name:      "retries_total",
		Help:      "Retried vstorage network calls.",
	})

	// OracleRequests counts price oracle requests by outcome (ok, missing, error).
	OracleRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "requests_total",
		Help:      "Price oracle requests by outcome.",
	}, []string{"outcome"})

	// PipelineRuns counts pipeline runs by status (ok, partial, failed).
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "TVL pipeline runs by status.",
	}, []string{"status"})

	// PipelineDuration observes run durations.
	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "TVL pipeline run duration.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// TVLValue exposes the last computed subtotal per category, plus "total".
	TVLValue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "value",
		Help:      "Last computed TVL value per category.",
	}, []string{"category"})
)

// MustRegister registers every collector with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(StorageQueries, StorageRetries, OracleRequests, PipelineRuns, PipelineDuration, TVLValue)
}
