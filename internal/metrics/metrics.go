// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lifeline"

var (
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_total",
		Help:      "Searches served by ranking mode",
	}, []string{"mode"})

	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_latency_seconds",
		Help:      "End to end search latency",
		Buckets:   []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	LiveFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retriever",
		Name:      "live_fallback_total",
		Help:      "Live fallback invocations by outcome (ok, empty, error)",
	}, []string{"outcome"})

	ClassifierPath = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "intent",
		Name:      "classifications_total",
		Help:      "Intent classifications by decision path and verdict",
	}, []string{"path", "emergency"})

	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Background writes that failed after all retries",
	}, []string{"kind"})

	Predictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "predictor",
		Name:      "predictions_total",
		Help:      "Prediction requests served",
	})

	FeedbackRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_total",
		Help:      "Feedback submissions by kind and whether they were accepted",
	}, []string{"kind", "accepted"})
)
