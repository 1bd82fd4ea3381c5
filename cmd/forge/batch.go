// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/services/forge/agents/single"
	"github.com/AleutianAI/AleutianForge/services/forge/batch"
	"github.com/AleutianAI/AleutianForge/services/forge/task"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

func newBatchCmd(state *appState) *cobra.Command {
	var tasksDir string
	var resume bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the solver over a directory of task files",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := task.LoadDir(tasksDir)
			if err != nil {
				return err
			}

			client := state.client
			if cps := state.cfg.Batch.CallsPerSecond; cps > 0 {
				client = llm.NewRateLimitedClient(client, cps, state.cfg.Batch.Concurrency)
			}
			agent := single.New(client, state.cfg)

			store, err := batch.OpenStore(state.cfg.Batch.StorePath)
			if err != nil {
				return err
			}
			defer store.Close()

			run := func(ctx context.Context, t *task.Task) *batch.Outcome {
				res, err := agent.Solve(ctx, single.Request{
					TaskID:    t.ID,
					Signature: t.Signature,
					Docstring: t.Docstring,
				})
				if err != nil {
					return &batch.Outcome{TaskID: t.ID, Errors: []string{err.Error()}}
				}
				return &batch.Outcome{
					TaskID:  t.ID,
					Code:    res.Code,
					Success: res.Correct,
					Errors:  res.Errors,
				}
			}

			var opts []batch.RunnerOption
			if resume {
				opts = append(opts, batch.WithResume())
			}
			runner := batch.NewRunner(run, store, state.cfg.Batch.Concurrency, opts...)

			_, summary, err := runner.Run(cmd.Context(), tasks)
			if err != nil {
				return err
			}
			slog.Info("Batch finished",
				slog.Int("total", summary.Total),
				slog.Int("succeeded", summary.Succeeded),
				slog.Int("failed", summary.Failed),
				slog.Int("skipped", summary.Skipped),
				slog.Duration("duration", summary.Duration),
			)
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&tasksDir, "tasks-dir", "tasks", "directory of task files")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip tasks with archived results")
	return cmd
}
