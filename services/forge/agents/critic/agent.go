// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package critic reviews generated code in two passes, correctness
// first and quality second, then synthesizes one feedback document. The
// quality pass is skipped entirely when correctness finds a blocking
// defect: style feedback on broken code wastes a model call and dilutes
// the signal the coder needs.
package critic

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// Agent is the caller-facing facade over the critic pipeline.
//
// Thread Safety: Agent is safe for concurrent use; each Critique call
// builds a fresh state.
type Agent struct {
	client llm.Client
	gen    config.Generation
}

// New creates a critic agent from the shared configuration.
func New(client llm.Client, cfg *config.Config) *Agent {
	return &Agent{client: client, gen: cfg.Generation}
}

// Request is the critic's input record.
type Request struct {
	TaskID    string `json:"task_id"`
	Signature string `json:"signature"`
	Docstring string `json:"docstring,omitempty"`
	Plan      string `json:"plan"`

	// Code is the implementation under review.
	Code string `json:"code"`

	// ExecSummary optionally carries a test-execution outcome, prompt
	// context for the correctness pass only.
	ExecSummary string `json:"exec_summary,omitempty"`

	// QualityMetrics optionally carries static analysis numbers, prompt
	// context for the quality pass only.
	QualityMetrics string `json:"quality_metrics,omitempty"`
}

// Result is the critic's output record.
type Result struct {
	TaskID string `json:"task_id"`

	// Feedback is the synthesized review, never empty.
	Feedback string `json:"feedback"`

	// Blocked reports whether required inputs were missing.
	Blocked bool `json:"blocked"`

	// HasBlockingDefects reports whether correctness found defects that
	// must be fixed before any other feedback matters.
	HasBlockingDefects bool `json:"has_blocking_defects"`

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
		fieldPlan:           {Class: pipeline.ClassInput},
		fieldCode:           {Class: pipeline.ClassInput},
		fieldExecSummary:    {Class: pipeline.ClassInput},
		fieldQualityMetrics: {Class: pipeline.ClassInput},
		fieldInputErrors:    {Class: pipeline.ClassPhaseOutput, Owner: nodeInputValidator},
		fieldCorrectness:    {Class: pipeline.ClassPhaseOutput, Owner: nodeCorrectness},
		fieldQuality:        {Class: pipeline.ClassPhaseOutput, Owner: nodeQuality},
		fieldFeedback:       {Class: pipeline.ClassFinalOutput, Owner: nodeSynthesis},
	}
}

func (a *Agent) buildGraph() (*pipeline.Graph, error) {
	g := pipeline.NewGraph("critic", nodeSynthesis)

	nodes := []pipeline.Node{
		inputValidator{},
		&analysisPhase{name: nodeCorrectness, field: fieldCorrectness, client: a.client,
			params: a.gen.Params(correctnessSystem), prompt: correctnessPrompt},
		&analysisPhase{name: nodeQuality, field: fieldQuality, client: a.client,
			params: a.gen.Params(qualitySystem), prompt: qualityPrompt},
		pipeline.NewNodeFunc(nodeSynthesis, synthesize),
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	if err := g.AddRouter(nodeCorrectness, routeAfterCorrectness); err != nil {
		return nil, err
	}
	return g, nil
}

// routeAfterCorrectness skips the quality pass when correctness found a
// blocking defect.
func routeAfterCorrectness(s *pipeline.State) string {
	if hasBlockingDefects(s.Record(fieldCorrectness)) {
		return nodeSynthesis
	}
	return ""
}

// Critique runs the full review pipeline for one request.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - The implementation and its planning artifacts.
//
// Outputs:
//
//	*Result - The synthesized feedback with review metadata.
//	error - Non-nil only on cancellation or a miswired graph.
func (a *Agent) Critique(ctx context.Context, req Request) (*Result, error) {
	g, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build critic graph: %w", err)
	}
	s, err := pipeline.NewState(schema(), map[string]any{
		fieldTaskID:         req.TaskID,
		fieldSignature:      req.Signature,
		fieldDocstring:      req.Docstring,
		fieldPlan:           req.Plan,
		fieldCode:           req.Code,
		fieldExecSummary:    req.ExecSummary,
		fieldQualityMetrics: req.QualityMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize critic state: %w", err)
	}

	if err := g.Run(ctx, s); err != nil {
		return nil, err
	}

	return &Result{
		TaskID:             req.TaskID,
		Feedback:           s.String(fieldFeedback),
		Blocked:            !s.ShouldProceed(),
		HasBlockingDefects: hasBlockingDefects(s.Record(fieldCorrectness)),
		Errors:             s.Errors(),
		Err:                s.FirstError(),
	}, nil
}
