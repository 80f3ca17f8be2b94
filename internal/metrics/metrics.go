// Package metrics exposes Prometheus instrumentation for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blockwatch"

var (
	ObservationsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "observations_recorded_total",
		Help:      "Observations persisted through intake.",
	})

	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_created_total",
		Help:      "Alerts raised by rules passes.",
	}, []string{"type", "severity"})

	RecommendationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_created_total",
		Help:      "Recommendations generated by rules passes.",
	}, []string{"title"})

	AlertsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_resolved_total",
		Help:      "Alerts auto-resolved by block reconciliation.",
	})

	RecommendationsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_resolved_total",
		Help:      "Recommendations auto-resolved by block reconciliation.",
	})

	RulesPassFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rules_pass_failures_total",
		Help:      "Rules passes that failed, by stage.",
	}, []string{"stage"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "Time spent in a rules pass, lock wait included.",
		Buckets:   prometheus.DefBuckets,
	})

	RulesRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rules_retries_total",
		Help:      "Failed rules passes picked up by the retry job, by outcome.",
	}, []string{"outcome"})
)
