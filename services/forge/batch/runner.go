// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package batch runs a pipeline over a directory of tasks with bounded
// concurrency, archiving each outcome as it lands. One failed task
// degrades its own outcome and never stops the batch; only context
// cancellation does.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianForge/services/forge/task"
)

// Outcome is the archived result of one task run.
type Outcome struct {
	TaskID string `json:"task_id"`

	// Code is the produced implementation, "" on failure.
	Code string `json:"code"`

	// Success reports whether the pipeline produced validated code.
	Success bool `json:"success"`

	// Errors is the pipeline's error log plus any runner-level failure.
	Errors []string `json:"errors,omitempty"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
}

// RunFunc executes one task through a pipeline. Implementations wrap
// the single or multi agent facades.
type RunFunc func(ctx context.Context, t *task.Task) *Outcome

// Summary aggregates a finished batch.
type Summary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Runner fans tasks over a worker pool.
type Runner struct {
	run         RunFunc
	store       *Store
	concurrency int
	resume      bool
}

// RunnerOption adjusts runner construction.
type RunnerOption func(*Runner)

// WithResume skips tasks that already have an archived outcome.
func WithResume() RunnerOption {
	return func(r *Runner) { r.resume = true }
}

// NewRunner creates a batch runner. A nil store disables archiving.
func NewRunner(run RunFunc, store *Store, concurrency int, opts ...RunnerOption) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	r := &Runner{run: run, store: store, concurrency: concurrency}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every task, at most concurrency at a time.
//
// Inputs:
//
//	ctx - Context for cancellation; cancellation stops the batch.
//	tasks - The tasks to run.
//
// Outputs:
//
//	[]*Outcome - One outcome per executed task, in task order. Skipped
//	tasks carry their archived outcome.
//	*Summary - Aggregate counts.
//	error - Non-nil on cancellation or a store failure.
func (r *Runner) Run(ctx context.Context, tasks []*task.Task) ([]*Outcome, *Summary, error) {
	start := time.Now()
	outcomes := make([]*Outcome, len(tasks))
	summary := &Summary{Total: len(tasks)}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.concurrency)

	skipped := make([]bool, len(tasks))
	for i, t := range tasks {
		if r.resume && r.store != nil {
			prev, ok, err := r.store.Get(t.ID)
			if err != nil {
				// In-flight workers may still be touching the store;
				// they must drain before the caller can close it.
				cancel()
				_ = g.Wait()
				return nil, nil, err
			}
			if ok {
				outcomes[i] = prev
				skipped[i] = true
				summary.Skipped++
				slog.Info("Skipping archived task", slog.String("task_id", t.ID))
				continue
			}
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			slog.Info("Running task", slog.String("task_id", t.ID))
			taskStart := time.Now()
			outcome := r.run(gctx, t)
			outcome.Duration = time.Since(taskStart)
			outcomes[i] = outcome

			if r.store != nil {
				if err := r.store.Put(outcome); err != nil {
					return err
				}
			}
			slog.Info("Task finished",
				slog.String("task_id", t.ID),
				slog.Bool("success", outcome.Success),
				slog.Duration("duration", outcome.Duration),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, o := range outcomes {
		if o == nil || skipped[i] {
			continue
		}
		if o.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.Duration = time.Since(start)
	return outcomes, summary, nil
}
