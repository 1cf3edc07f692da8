// Package metrics exposes the gateway's Prometheus instrumentation: restore
// counters and sweeper pass durations, the operational surface named in
// SPEC_FULL.md's HTTP surface addendum.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RestoresStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restic_dl_restores_started_total",
		Help: "Total number of restore requests dispatched to a worker.",
	})

	RestoresCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restic_dl_restores_completed_total",
		Help: "Total number of restores that finished successfully.",
	})

	RestoresFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restic_dl_restores_failed_total",
		Help: "Total number of restores that failed.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "restic_dl_sweep_duration_seconds",
		Help: "Duration of each lifecycle sweep pass.",
	})
)
