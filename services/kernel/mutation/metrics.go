// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_mutations_total",
		Help: "Branched mutations by outcome (clean, conflict, lock_timeout, error)",
	}, []string{"outcome"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_mutation_duration_seconds",
		Help:    "End-to-end branched mutation duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	mergeLockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_merge_lock_wait_seconds",
		Help:    "Time spent waiting on the merge-to-trunk advisory lock",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
	}, []string{"acquired"})

	orphansSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kernel_orphan_branches_swept_total",
		Help: "Stale mutation branches removed by the startup sweep",
	})
)

func recordMutation(outcome string, d time.Duration) {
	mutationsTotal.WithLabelValues(outcome).Inc()
	mutationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func observeLockWait(d time.Duration, acquired bool) {
	label := "true"
	if !acquired {
		label = "false"
	}
	mergeLockWait.WithLabelValues(label).Observe(d.Seconds())
}

func recordOrphansSwept(n int) {
	orphansSwept.Add(float64(n))
}
