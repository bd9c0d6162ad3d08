// Package metrics holds the Prometheus collectors of the pipeline and its collaborators.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capability metrics
	CapabilityCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_capability_calls_total",
			Help: "Capability calls by capability, model and outcome",
		},
		[]string{"capability", "model", "outcome"},
	)

	CapabilityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waste_capability_duration_seconds",
			Help:    "Latency of capability calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"capability"},
	)

	PromptTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_prompt_tokens_total",
			Help: "Prompt tokens sent per capability",
		},
		[]string{"capability"},
	)

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waste_pipeline_stage_duration_seconds",
			Help:    "Latency of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage"},
	)

	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_documents_processed_total",
			Help: "Documents processed by route and disposition",
		},
		[]string{"route", "disposition"},
	)

	ChunkOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_chunks_total",
			Help: "Extraction chunks by outcome (ok, partial, failed)",
		},
		[]string{"outcome"},
	)

	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_reconciliations_total",
			Help: "Reconciliation attempts by outcome (ok, fallback)",
		},
		[]string{"outcome"},
	)

	VerificationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_verification_issues_total",
			Help: "Verification issues by severity",
		},
		[]string{"severity"},
	)

	FinalConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "waste_document_confidence",
		Help:    "Final document confidence",
		Buckets: prometheus.LinearBuckets(0.5, 0.05, 10),
	})

	// Queue metrics
	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "waste_queue_length",
		Help: "Number of documents waiting to be processed",
	})

	// System metrics
	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "waste_system_goroutines",
		Help: "Number of goroutines",
	})

	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "waste_system_memory_bytes",
		Help: "Current heap allocation",
	})
)

// ObserveCapability records one capability call.
func ObserveCapability(capability, model, outcome string, elapsed time.Duration) {
	CapabilityCalls.WithLabelValues(capability, model, outcome).Inc()
	CapabilityDuration.WithLabelValues(capability).Observe(elapsed.Seconds())
}

// StageTimer starts a timer for a pipeline stage; call ObserveDuration when done.
func StageTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(StageDuration.WithLabelValues(stage))
}

// UpdateSystemMetrics refreshes the runtime gauges.
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
