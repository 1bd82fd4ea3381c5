// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/services/forge/agents/coder"
	"github.com/AleutianAI/AleutianForge/services/forge/agents/critic"
	"github.com/AleutianAI/AleutianForge/services/forge/agents/planner"
	"github.com/AleutianAI/AleutianForge/services/forge/agents/single"
	"github.com/AleutianAI/AleutianForge/services/forge/exec"
	"github.com/AleutianAI/AleutianForge/services/forge/task"
)

// printJSON renders any pipeline result to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// readFileFlag reads a file-valued flag, "" passing through.
func readFileFlag(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// loadExecSummary decodes a test-harness result file and compresses it
// for prompt context. "" passes through.
func loadExecSummary(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	var res exec.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("failed to parse execution result %s: %w", path, err)
	}
	return res.Summary(), nil
}

// loadQualityMetrics decodes a static-analysis metrics file and
// compresses it for prompt context. "" passes through.
func loadQualityMetrics(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	var qm exec.QualityMetrics
	if err := json.Unmarshal(data, &qm); err != nil {
		return "", fmt.Errorf("failed to parse quality metrics %s: %w", path, err)
	}
	return qm.Summary(), nil
}

func newPlanCmd(state *appState) *cobra.Command {
	var taskID, output string

	cmd := &cobra.Command{
		Use:   "plan <request>",
		Short: "Create an implementation plan for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := planner.New(state.client, state.cfg)
			res, err := agent.CreatePlan(cmd.Context(), planner.Request{
				TaskID:      taskID,
				UserRequest: args[0],
			})
			if err != nil {
				return err
			}
			if output != "" {
				if err := planner.ExportJSON(res.Plan, output); err != nil {
					return err
				}
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task identifier (generated when empty)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the plan to this file")
	return cmd
}

func newCodeCmd(state *appState) *cobra.Command {
	var req coder.Request
	var planFile, feedbackFile string

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Generate code from a signature and plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if planFile != "" {
				plan, err := readFileFlag(planFile)
				if err != nil {
					return err
				}
				req.Plan = plan
			}
			if feedbackFile != "" {
				fb, err := readFileFlag(feedbackFile)
				if err != nil {
					return err
				}
				req.CriticFeedback = fb
			}

			agent := coder.New(state.client, state.cfg)
			res, err := agent.GenerateCode(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&req.TaskID, "task-id", "", "task identifier")
	cmd.Flags().StringVar(&req.Signature, "signature", "", "Python function signature")
	cmd.Flags().StringVar(&req.Plan, "plan", "", "implementation plan text")
	cmd.Flags().StringVar(&planFile, "plan-file", "", "read the plan from a file")
	cmd.Flags().StringVar(&feedbackFile, "feedback-file", "", "read critic feedback from a file")
	return cmd
}

func newCritiqueCmd(state *appState) *cobra.Command {
	var req critic.Request
	var codeFile, execFile, metricsFile string

	cmd := &cobra.Command{
		Use:   "critique",
		Short: "Review an implementation against its plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if codeFile != "" {
				code, err := readFileFlag(codeFile)
				if err != nil {
					return err
				}
				req.Code = code
			}
			var err error
			if req.ExecSummary, err = loadExecSummary(execFile); err != nil {
				return err
			}
			if req.QualityMetrics, err = loadQualityMetrics(metricsFile); err != nil {
				return err
			}

			agent := critic.New(state.client, state.cfg)
			res, err := agent.Critique(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&req.TaskID, "task-id", "", "task identifier")
	cmd.Flags().StringVar(&req.Signature, "signature", "", "Python function signature")
	cmd.Flags().StringVar(&req.Docstring, "docstring", "", "function docstring")
	cmd.Flags().StringVar(&req.Plan, "plan", "", "implementation plan text")
	cmd.Flags().StringVar(&codeFile, "code-file", "", "read the implementation from a file")
	cmd.Flags().StringVar(&execFile, "exec-result-file", "", "JSON execution result for prompt context")
	cmd.Flags().StringVar(&metricsFile, "quality-metrics-file", "", "JSON quality metrics for prompt context")
	return cmd
}

func newSolveCmd(state *appState) *cobra.Command {
	var req single.Request
	var taskFile, execFile, metricsFile string

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a task with the single-model refinement loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskFile != "" {
				t, err := task.Load(taskFile)
				if err != nil {
					return err
				}
				req.TaskID = t.ID
				req.Signature = t.Signature
				req.Docstring = t.Docstring
			}
			if req.Signature == "" {
				return fmt.Errorf("a signature is required, via --signature or --task-file")
			}
			var err error
			if req.ExecSummary, err = loadExecSummary(execFile); err != nil {
				return err
			}
			if req.QualityMetrics, err = loadQualityMetrics(metricsFile); err != nil {
				return err
			}

			agent := single.New(state.client, state.cfg)
			res, err := agent.Solve(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&req.TaskID, "task-id", "", "task identifier")
	cmd.Flags().StringVar(&req.Signature, "signature", "", "Python function signature")
	cmd.Flags().StringVar(&req.Docstring, "docstring", "", "function docstring")
	cmd.Flags().StringVar(&taskFile, "task-file", "", "load the task from a JSON or YAML file")
	cmd.Flags().StringVar(&execFile, "exec-result-file", "", "JSON execution result for prompt context")
	cmd.Flags().StringVar(&metricsFile, "quality-metrics-file", "", "JSON quality metrics for prompt context")
	return cmd
}
