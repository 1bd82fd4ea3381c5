// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package single solves a task with one model through an
// analyze, plan, generate, review loop. The review verdict drives a
// bounded refinement cycle back into generation; an implementation
// still rejected at the cap is returned best-effort with Correct false.
package single

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// Agent is the caller-facing facade over the single-model pipeline.
//
// Thread Safety: Agent is safe for concurrent use; each Solve call
// builds a fresh state.
type Agent struct {
	client llm.Client
	gen    config.Generation
	policy config.Policy
}

// New creates a single-model agent from the shared configuration.
func New(client llm.Client, cfg *config.Config) *Agent {
	return &Agent{client: client, gen: cfg.Generation, policy: cfg.Policy}
}

// Request is the agent's input record.
type Request struct {
	TaskID    string `json:"task_id"`
	Signature string `json:"signature"`
	Docstring string `json:"docstring"`

	// ExecSummary optionally carries a test-execution outcome from a
	// previous attempt; prompt context only, it never drives the loop.
	ExecSummary string `json:"exec_summary,omitempty"`

	// QualityMetrics optionally carries static analysis numbers;
	// prompt context only.
	QualityMetrics string `json:"quality_metrics,omitempty"`
}

// Result is the agent's output record.
type Result struct {
	TaskID string `json:"task_id"`

	// Code is the final implementation, best-effort when Correct is
	// false.
	Code string `json:"code"`

	// Correct reports whether the review accepted the implementation.
	Correct bool `json:"correct"`

	// Iterations counts refinement loop traversals.
	Iterations int `json:"iterations"`

	// Review is the last review text.
	Review string `json:"review,omitempty"`

	// Errors is the full ordered error log.
	Errors []string `json:"errors,omitempty"`

	// Err is the first logged error, "" when the run was clean.
	Err string `json:"error,omitempty"`
}

func schema() pipeline.Schema {
	return pipeline.Schema{
		fieldTaskID:         {Class: pipeline.ClassInput},
		fieldSignature:      {Class: pipeline.ClassInput},
		fieldDocstring:      {Class: pipeline.ClassInput},
		fieldExecSummary:    {Class: pipeline.ClassInput},
		fieldQualityMetrics: {Class: pipeline.ClassInput},
		fieldAnalysis:       {Class: pipeline.ClassPhaseOutput, Owner: nodeAnalyze},
		fieldPlan:           {Class: pipeline.ClassPhaseOutput, Owner: nodePlan},
		fieldDraftCode:      {Class: pipeline.ClassPhaseOutput, Owner: nodeGenerate},
		fieldReview:         {Class: pipeline.ClassPhaseOutput, Owner: nodeReview},
		fieldCode:           {Class: pipeline.ClassFinalOutput, Owner: nodeConsolidation},
	}
}

func (a *Agent) buildGraph() (*pipeline.Graph, error) {
	g := pipeline.NewGraph("single", nodeConsolidation)

	nodes := []pipeline.Node{
		&textPhase{name: nodeAnalyze, field: fieldAnalysis, client: a.client,
			params: a.gen.Params(analyzeSystem), prompt: analyzePrompt},
		&textPhase{name: nodePlan, field: fieldPlan, client: a.client,
			params: a.gen.Params(planSystem), prompt: planPrompt},
		&generatePhase{client: a.client, params: a.gen.Params(generateSystem)},
		&textPhase{name: nodeReview, field: fieldReview, client: a.client,
			params: a.gen.Params(reviewSystem), prompt: reviewPrompt},
		pipeline.NewNodeFunc(nodeConsolidation, consolidate),
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	if err := g.AddRouter(nodeReview, a.routeAfterReview); err != nil {
		return nil, err
	}
	return g, nil
}

// routeAfterReview exits on an accepting verdict and otherwise loops
// back into generation until the refinement cap.
func (a *Agent) routeAfterReview(s *pipeline.State) string {
	if verdictIsCorrect(s.String(fieldReview)) {
		return ""
	}
	if s.Int(pipeline.FieldIterationCount) >= a.policy.RefineMaxIterations {
		slog.Info("Max refinement iterations reached, returning last draft",
			slog.Int("iterations", s.Int(pipeline.FieldIterationCount)),
		)
		return ""
	}
	s.BumpCounter(pipeline.FieldIterationCount)
	return nodeGenerate
}

// Solve runs the full single-model pipeline for one request.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - The task to solve.
//
// Outputs:
//
//	*Result - The final code with verdict and loop metadata.
//	error - Non-nil only on cancellation or a miswired graph.
func (a *Agent) Solve(ctx context.Context, req Request) (*Result, error) {
	g, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build single-agent graph: %w", err)
	}
	s, err := pipeline.NewState(schema(), map[string]any{
		fieldTaskID:         req.TaskID,
		fieldSignature:      req.Signature,
		fieldDocstring:      req.Docstring,
		fieldExecSummary:    req.ExecSummary,
		fieldQualityMetrics: req.QualityMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize single-agent state: %w", err)
	}

	if err := g.Run(ctx, s); err != nil {
		return nil, err
	}

	return &Result{
		TaskID:     req.TaskID,
		Code:       s.String(fieldCode),
		Correct:    verdictIsCorrect(s.String(fieldReview)),
		Iterations: s.Int(pipeline.FieldIterationCount),
		Review:     s.String(fieldReview),
		Errors:     s.Errors(),
		Err:        s.FirstError(),
	}, nil
}
