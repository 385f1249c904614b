// Package metrics exposes Prometheus collectors for the operator loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts request pipeline outcomes by status
	// (recorded, skipped, failed).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_requests_total",
			Help: "Request pipeline outcomes by status",
		},
		[]string{"status"},
	)

	// SkipsTotal counts deterministic skips by reason.
	SkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_skips_total",
			Help: "Deterministic request skips by reason",
		},
		[]string{"reason"},
	)

	// ArtifactsPublished counts artifacts uploaded to the ledger.
	ArtifactsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "operator_artifacts_published_total",
			Help: "Artifacts uploaded to the ledger",
		},
	)

	// TokenRegistrations counts token mint attempts by result.
	TokenRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_token_registrations_total",
			Help: "Token registration attempts by result",
		},
		[]string{"result"},
	)

	// PipelineDuration observes end-to-end pipeline latency by outcome.
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operator_pipeline_duration_seconds",
			Help:    "Request pipeline latency by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// PollCycles counts polling cycles by result (ok, error).
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_poll_cycles_total",
			Help: "Polling cycles by result",
		},
		[]string{"result"},
	)

	// ProcessedSetSize tracks the in-memory processed-id set.
	ProcessedSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "operator_processed_set_size",
			Help: "Ids recorded in the processed set",
		},
	)
)
