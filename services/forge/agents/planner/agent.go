// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package planner turns a free-form user request into a structured
// implementation plan through five reasoning phases: intent analysis,
// requirements engineering, architecture design, implementation
// planning, and quality review. The review gates a bounded refinement
// loop that re-enters the phase it judges at fault; an unapproved plan
// at the cap is still consolidated and returned best-effort.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/forge/parse"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// Agent is the caller-facing facade over the planner pipeline.
//
// Thread Safety: Agent is safe for concurrent use; each CreatePlan call
// builds a fresh state.
type Agent struct {
	client llm.Client
	gen    config.Generation
	policy config.Policy
}

// New creates a planner agent from the shared configuration.
func New(client llm.Client, cfg *config.Config) *Agent {
	return &Agent{client: client, gen: cfg.Generation, policy: cfg.Policy}
}

// Request is the planner's input record.
type Request struct {
	// TaskID identifies the run. Generated when empty.
	TaskID string `json:"task_id"`

	// UserRequest is the task description to plan for.
	UserRequest string `json:"user_request"`
}

// Result is the planner's output record.
type Result struct {
	TaskID string `json:"task_id"`

	// Plan is the consolidated final plan, never nil.
	Plan parse.Record `json:"plan"`

	// Approved reports whether the quality review approved the plan.
	// An unapproved plan is best-effort, not a failure.
	Approved bool `json:"approved"`

	// Iterations counts refinement loop traversals.
	Iterations int `json:"iterations"`

	// Errors is the full ordered error log.
	Errors []string `json:"errors,omitempty"`

	// Err is the first logged error, "" when the run was clean.
	Err string `json:"error,omitempty"`
}

func schema() pipeline.Schema {
	return pipeline.Schema{
		fieldTaskID:         {Class: pipeline.ClassInput},
		fieldUserRequest:    {Class: pipeline.ClassInput},
		fieldIntent:         {Class: pipeline.ClassPhaseOutput, Owner: nodeIntent},
		fieldRequirements:   {Class: pipeline.ClassPhaseOutput, Owner: nodeRequirements},
		fieldArchitecture:   {Class: pipeline.ClassPhaseOutput, Owner: nodeArchitecture},
		fieldImplementation: {Class: pipeline.ClassPhaseOutput, Owner: nodeImplementation},
		fieldReview:         {Class: pipeline.ClassPhaseOutput, Owner: nodeReview},
		fieldApproved:       {Class: pipeline.ClassControl},
		fieldFinalPlan:      {Class: pipeline.ClassFinalOutput, Owner: nodeConsolidation},
	}
}

// buildGraph wires the five phases, the review router, and the
// terminal consolidation node.
func (a *Agent) buildGraph() (*pipeline.Graph, error) {
	g := pipeline.NewGraph("planner", nodeConsolidation)

	phases := []pipeline.Node{
		&recordPhase{name: nodeIntent, field: fieldIntent, client: a.client,
			params: a.gen.Params(intentSystem), prompt: intentPrompt},
		&recordPhase{name: nodeRequirements, field: fieldRequirements, client: a.client,
			params: a.gen.Params(requirementsSystem), prompt: requirementsPrompt},
		&recordPhase{name: nodeArchitecture, field: fieldArchitecture, client: a.client,
			params: a.gen.Params(architectureSystem), prompt: architecturePrompt},
		&recordPhase{name: nodeImplementation, field: fieldImplementation, client: a.client,
			params: a.gen.Params(implementationSystem), prompt: implementationPrompt},
		&reviewPhase{client: a.client, params: a.gen.Params(reviewSystem), threshold: a.policy.ApprovalThreshold},
		pipeline.NewNodeFunc(nodeConsolidation, consolidate),
	}
	for _, p := range phases {
		if err := g.AddNode(p); err != nil {
			return nil, err
		}
	}

	if err := g.AddRouter(nodeReview, a.routeAfterReview); err != nil {
		return nil, err
	}
	return g, nil
}

// routeAfterReview decides refinement vs consolidation.
//
// Description:
//
//	An approved plan consolidates. A rejected plan under the iteration
//	cap re-enters at the review's retry target (default architecture
//	design when absent or invalid), with the counter bumped before
//	re-entry. At the cap the plan consolidates unapproved, best-effort.
func (a *Agent) routeAfterReview(s *pipeline.State) string {
	if s.Bool(fieldApproved) {
		return ""
	}
	if s.Int(pipeline.FieldIterationCount) >= a.policy.PlannerMaxIterations {
		slog.Info("Max refinement iterations reached, consolidating best-effort plan",
			slog.Int("iterations", s.Int(pipeline.FieldIterationCount)),
		)
		return ""
	}
	s.BumpCounter(pipeline.FieldIterationCount)

	target := s.Record(fieldReview).String("retry_phase")
	switch target {
	case nodeRequirements, nodeArchitecture, nodeImplementation:
	default:
		target = nodeArchitecture
	}
	return target
}

// CreatePlan runs the full planning pipeline for one request.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	req - The task to plan. An empty TaskID is generated.
//
// Outputs:
//
//	*Result - The consolidated plan with approval and error metadata.
//	error - Non-nil only on cancellation or a miswired graph.
func (a *Agent) CreatePlan(ctx context.Context, req Request) (*Result, error) {
	taskID := req.TaskID
	if taskID == "" {
		taskID = "task_" + uuid.NewString()[:8]
	}

	g, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build planner graph: %w", err)
	}
	s, err := pipeline.NewState(schema(), map[string]any{
		fieldTaskID:      taskID,
		fieldUserRequest: req.UserRequest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize planner state: %w", err)
	}

	if err := g.Run(ctx, s); err != nil {
		return nil, err
	}

	plan := s.Record(fieldFinalPlan)
	if plan == nil {
		plan = parse.NewRecord()
	}
	return &Result{
		TaskID:     taskID,
		Plan:       plan,
		Approved:   s.Bool(fieldApproved),
		Iterations: s.Int(pipeline.FieldIterationCount),
		Errors:     s.Errors(),
		Err:        s.FirstError(),
	}, nil
}

// ExportJSON writes a plan to disk as indented JSON. A caller-side
// convenience; the pipeline itself persists nothing.
func ExportJSON(plan parse.Record, path string) error {
	if err := os.WriteFile(path, []byte(plan.JSON()), 0o644); err != nil {
		return fmt.Errorf("failed to export plan to %s: %w", path, err)
	}
	return nil
}
