package wfc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stepOutcomes counts scheduler ticks by result
	stepOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wfc_steps_total",
		Help: "Scheduler steps by result",
	}, []string{"result"})

	// candidatesRemoved counts candidates eliminated by propagation
	candidatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wfc_candidates_removed_total",
		Help: "Candidates removed from neighbor cells by propagation",
	})

	// propagationDuration tracks time spent propagating after a collapse
	propagationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wfc_propagation_duration_seconds",
		Help:    "Propagation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~260ms
	})

	// attemptOutcomes counts generator attempts by outcome
	attemptOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wfc_attempts_total",
		Help: "Generation attempts by outcome",
	}, []string{"outcome"})

	// generationDuration tracks wall time of a full generation, all attempts included
	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wfc_generation_duration_seconds",
		Help:    "Generation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	})
)
