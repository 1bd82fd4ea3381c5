// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package coder generates Python implementations from a plan through a
// linear pipeline: input validation, edge case analysis, chain of
// thought reasoning, generation, syntax validation, and optimization.
// Two gates block the pipeline outright: malformed inputs at the head,
// and unparseable generated code in the middle. Everything else
// degrades and the run still produces its best available code.
package coder

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// Agent is the caller-facing facade over the coder pipeline.
//
// Thread Safety: Agent is safe for concurrent use; each GenerateCode
// call builds a fresh state.
type Agent struct {
	client llm.Client
	gen    config.Generation
}

// New creates a coder agent from the shared configuration.
func New(client llm.Client, cfg *config.Config) *Agent {
	return &Agent{client: client, gen: cfg.Generation}
}

// Request is the coder's input record.
type Request struct {
	TaskID string `json:"task_id"`

	// Signature is the Python function signature to implement, for
	// example "def binary_search(arr: List[int], target: int) -> int:".
	Signature string `json:"signature"`

	// Plan is the implementation plan the code must follow.
	Plan string `json:"plan"`

	// CriticFeedback optionally carries review feedback from a previous
	// attempt; it is threaded into every generation prompt.
	CriticFeedback string `json:"critic_feedback,omitempty"`

	// ExecSummary optionally carries the execution outcome of a
	// previous attempt, prompt context only.
	ExecSummary string `json:"exec_summary,omitempty"`
}

// Result is the coder's output record.
type Result struct {
	TaskID string `json:"task_id"`

	// Code is the best available implementation: optimized when the
	// optimizer succeeded, validated otherwise, raw as a last resort.
	// Check Success before trusting it; a blocked run may still surface
	// raw unvalidated code here for inspection.
	Code string `json:"code"`

	// Success reports whether the run reached consolidation unblocked
	// with syntactically valid code.
	Success bool `json:"success"`

	// Warnings carries non-fatal syntax findings for the final code.
	Warnings []string `json:"warnings,omitempty"`

	// Errors is the full ordered error log.
	Errors []string `json:"errors,omitempty"`

	// Err is the first logged error, "" when the run was clean.
	Err string `json:"error,omitempty"`
}

func schema() pipeline.Schema {
	return pipeline.Schema{
		fieldTaskID:            {Class: pipeline.ClassInput},
		fieldSignature:         {Class: pipeline.ClassInput},
		fieldPlan:              {Class: pipeline.ClassInput},
		fieldCriticFeedback:    {Class: pipeline.ClassInput},
		fieldExecSummary:       {Class: pipeline.ClassInput},
		fieldInputErrors:       {Class: pipeline.ClassPhaseOutput, Owner: nodeInputValidator},
		fieldEdgeCases:         {Class: pipeline.ClassPhaseOutput, Owner: nodeEdgeCases},
		fieldCoT:               {Class: pipeline.ClassPhaseOutput, Owner: nodeCoT},
		fieldRawCode:           {Class: pipeline.ClassPhaseOutput, Owner: nodeGenerator},
		fieldValidatedCode:     {Class: pipeline.ClassPhaseOutput, Owner: nodeCodeValidator},
		fieldValidationWarns:   {Class: pipeline.ClassPhaseOutput, Owner: nodeCodeValidator},
		fieldOptimizedCode:     {Class: pipeline.ClassPhaseOutput, Owner: nodeOptimizer},
		fieldOptimizationNotes: {Class: pipeline.ClassPhaseOutput, Owner: nodeOptimizer},
		fieldCode:              {Class: pipeline.ClassFinalOutput, Owner: nodeConsolidation},
	}
}

func (a *Agent) buildGraph() (*pipeline.Graph, error) {
	g := pipeline.NewGraph("coder", nodeConsolidation)

	nodes := []pipeline.Node{
		inputValidator{},
		&edgeCaseAnalyzer{client: a.client, params: a.gen.Params(edgeCaseSystem)},
		&cotGenerator{client: a.client, params: a.gen.Params(cotSystem)},
		&codeGenerator{client: a.client, params: a.gen.Params(generateSystem)},
		codeValidator{},
		&codeOptimizer{client: a.client, params: a.gen.Params(optimizeSystem)},
		pipeline.NewNodeFunc(nodeConsolidation, consolidate),
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// GenerateCode runs the full coding pipeline for one request.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - The task to implement.
//
// Outputs:
//
//	*Result - The best available code with validation metadata.
//	error - Non-nil only on cancellation or a miswired graph.
func (a *Agent) GenerateCode(ctx context.Context, req Request) (*Result, error) {
	g, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build coder graph: %w", err)
	}
	s, err := pipeline.NewState(schema(), map[string]any{
		fieldTaskID:         req.TaskID,
		fieldSignature:      req.Signature,
		fieldPlan:           req.Plan,
		fieldCriticFeedback: req.CriticFeedback,
		fieldExecSummary:    req.ExecSummary,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize coder state: %w", err)
	}

	if err := g.Run(ctx, s); err != nil {
		return nil, err
	}

	return &Result{
		TaskID:   req.TaskID,
		Code:     s.String(fieldCode),
		Success:  s.ShouldProceed() && s.String(fieldValidatedCode) != "",
		Warnings: s.StringSlice(fieldValidationWarns),
		Errors:   s.Errors(),
		Err:      s.FirstError(),
	}, nil
}
