// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pipelineRuns counts completed runs.
	// Labels: pipeline, outcome (ok, degraded, blocked)
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total pipeline runs by outcome",
	}, []string{"pipeline", "outcome"})

	// nodeDuration measures per-node execution time, dominated by LLM
	// latency for generative phases.
	// Labels: pipeline, node
	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forge",
		Subsystem: "pipeline",
		Name:      "node_duration_seconds",
		Help:      "Node execution time in seconds",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"pipeline", "node"})

	// refinementLoops counts retry edge traversals.
	// Labels: pipeline, target (node re-entered)
	refinementLoops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "pipeline",
		Name:      "refinement_loops_total",
		Help:      "Total refinement loop traversals",
	}, []string{"pipeline", "target"})

	// phaseErrors counts entries appended to run error logs.
	// Labels: pipeline, node
	phaseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "pipeline",
		Name:      "phase_errors_total",
		Help:      "Total errors appended to pipeline error logs",
	}, []string{"pipeline", "node"})
)
