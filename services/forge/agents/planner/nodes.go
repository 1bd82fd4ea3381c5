// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

// Node and field names. Phase-output fields carry the same name as
// their owning node where the output is the node's whole product.
const (
	nodeIntent         = "intent_analysis"
	nodeRequirements   = "requirements_engineering"
	nodeArchitecture   = "architecture_design"
	nodeImplementation = "implementation_planning"
	nodeReview         = "quality_review"
	nodeConsolidation  = "consolidation"

	fieldTaskID         = "task_id"
	fieldUserRequest    = "user_request"
	fieldIntent         = "intent_analysis"
	fieldRequirements   = "requirements"
	fieldArchitecture   = "architecture"
	fieldImplementation = "implementation_plan"
	fieldReview         = "quality_review"
	fieldApproved       = "plan_approved"
	fieldFinalPlan      = "final_plan"
)

// recordPhase is a generative phase whose product is one parsed record.
// All planner phases are advisory: an LLM or parse failure substitutes
// an empty record and logs the error, and the pipeline continues.
type recordPhase struct {
	name   string
	field  string
	client llm.Client
	params llm.GenerationParams
	prompt func(s *pipeline.State) string
}

// Name implements pipeline.Node.
func (p *recordPhase) Name() string { return p.name }

// Run implements pipeline.Node.
func (p *recordPhase) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, p.prompt(s), p.params)
	if err != nil {
		slog.Warn("Phase LLM call failed, degrading",
			slog.String("phase", p.name),
			slog.String("error", err.Error()),
		)
		return res.
			Set(p.field, parse.NewRecord()).
			AddError(fmt.Sprintf("%s: llm call failed: %v", p.name, err)), nil
	}

	rec, ok := parse.Extract(text)
	if !ok {
		rec = parse.Record{"raw_response": text, "error": "unparseable output"}
		return res.
			Set(p.field, rec).
			AddError(fmt.Sprintf("%s: failed to parse structured output", p.name)), nil
	}
	return res.Set(p.field, rec), nil
}

func intentPrompt(s *pipeline.State) string {
	return fmt.Sprintf(`## Task
Analyze the following user request and extract the true intent.

## User Request
%s

## Your Mission
1. Extract the core intent (what problem is being solved)
2. Classify the task type (algorithm, data_processing, api, utility, script)
3. Identify success metrics (how we know it works)
4. Note any assumptions you must make

## Instructions
Think step-by-step in <thinking> tags, then provide your analysis in <output> tags as JSON matching the schema.
`, s.String(fieldUserRequest))
}

func requirementsPrompt(s *pipeline.State) string {
	feedback := refinementSection(s)
	return fmt.Sprintf(`## Task: %s
User Request: %s

## Intent Analysis
%s
%s
## Your Mission
Transform the intent into comprehensive, testable requirements: functional requirements,
non-functional requirements (performance, security, reliability), constraints, and edge cases.

## Instructions
Think through the requirement space in <thinking> tags.
Then provide your requirements in <output> tags as JSON matching the schema.
`, s.String(fieldTaskID), s.String(fieldUserRequest),
		compressPhase("intent_analysis", s.Record(fieldIntent)), feedback)
}

func architecturePrompt(s *pipeline.State) string {
	feedback := refinementSection(s)
	return fmt.Sprintf(`## Task: %s
User Request: %s

## Context
%s

## Requirements to Satisfy
%s
%s
## Your Mission
Design the SIMPLEST architecture that satisfies requirements.

IMPORTANT - Architecture Complexity Guidelines:
- For simple algorithms: usually ONE component (the main function)
- For moderate tasks: 2-3 components maximum
- For complex systems: multiple components with clear separation

DO NOT over-engineer! Avoid factory patterns, abstract classes, or multiple components unless genuinely needed.

## Instructions
Think through design alternatives in <thinking> tags.
Ask yourself: "Is this the SIMPLEST solution that works?"
Then provide your architecture in <output> tags as JSON.
`, s.String(fieldTaskID), s.String(fieldUserRequest),
		compressPhase("intent_analysis", s.Record(fieldIntent)),
		compressPhase("requirements", s.Record(fieldRequirements)), feedback)
}

func implementationPrompt(s *pipeline.State) string {
	feedback := refinementSection(s)
	return fmt.Sprintf(`## Task: %s

## Architecture to Implement
%s

## Requirements Context
%s
%s
## Your Mission
Transform the architecture into step-by-step implementation instructions:
implementation order, atomic steps with code guidance, exact input validation
checks, and documentation requirements.

## Instructions
Think through the build sequence in <thinking> tags.
Then provide your plan in <output> tags as JSON matching the schema.
`, s.String(fieldTaskID),
		compressPhase("architecture", s.Record(fieldArchitecture)),
		compressPhase("requirements", s.Record(fieldRequirements)), feedback)
}

// refinementSection injects the prior review's issues on a refinement
// re-entry, and nothing on the first traversal.
func refinementSection(s *pipeline.State) string {
	if s.Int(pipeline.FieldIterationCount) == 0 {
		return ""
	}
	review := s.Record(fieldReview)
	if review == nil {
		return ""
	}
	return reviewFeedback(review, s.Int(pipeline.FieldIterationCount))
}

// reviewPhase runs the plan quality review and derives the approval
// flag from the completeness score.
type reviewPhase struct {
	client    llm.Client
	params    llm.GenerationParams
	threshold int
}

// Name implements pipeline.Node.
func (p *reviewPhase) Name() string { return nodeReview }

// Run implements pipeline.Node.
//
// Description:
//
//	Compresses the four planning phases into a summary, asks the model
//	for a structured review, and sets plan_approved from the
//	completeness score: score >= threshold with no critical issues
//	approves. A failed call or unparseable review degrades to
//	not-approved so the router can still consolidate best-effort.
func (p *reviewPhase) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	planSummary := parse.Record{
		"intent":         compressPhase("intent_analysis", s.Record(fieldIntent)),
		"requirements":   compressPhase("requirements", s.Record(fieldRequirements)),
		"architecture":   compressPhase("architecture", s.Record(fieldArchitecture)),
		"implementation": compressPhase("implementation", s.Record(fieldImplementation)),
	}

	prompt := fmt.Sprintf(`## Task
Review this complete PLAN for production readiness.

## Complete Plan
%s

## Review Checklist
1. Completeness (Score 0-10): Does it address all requirements?
2. Clarity: Can a coder implement without ambiguity?
3. Robustness: Are error handling strategies well-defined?
4. Feasibility: Are architectural decisions realistic?
5. Readiness: Is this ready for handoff to the coder agent?

## Instructions
Think critically in <thinking> tags about gaps and issues.
Then provide your review in <output> tags as JSON matching the schema.

If you find issues, specify which phase needs revision:
- "requirements_engineering": wrong requirements or missing constraints
- "architecture_design": flawed component design or algorithm choice
- "implementation_planning": completely unclear steps

Remember: You are reviewing the PLAN (not code). The coder agent generates code later and can fill gaps.
`, planSummary.JSON())

	text, err := p.client.Generate(ctx, prompt, p.params)
	if err != nil {
		return res.
			Set(fieldReview, parse.NewRecord()).
			Set(fieldApproved, false).
			AddError(fmt.Sprintf("%s: llm call failed: %v", nodeReview, err)), nil
	}

	review, ok := parse.Extract(text)
	if !ok {
		return res.
			Set(fieldReview, parse.Record{"raw_response": text, "error": "unparseable output"}).
			Set(fieldApproved, false).
			AddError(fmt.Sprintf("%s: failed to parse structured output", nodeReview)), nil
	}

	score := review.Int("completeness_score")
	criticals := 0
	for _, issue := range review.Maps("issues") {
		if issue.String("severity") == "critical" {
			criticals++
		}
	}
	approved := score >= p.threshold && criticals == 0

	slog.Info("Plan quality review",
		slog.Int("score", score),
		slog.Int("critical_issues", criticals),
		slog.Bool("approved", approved),
		slog.Int("iteration", s.Int(pipeline.FieldIterationCount)),
	)
	return res.Set(fieldReview, review).Set(fieldApproved, approved), nil
}

// consolidate assembles the final plan from every available phase
// output. It runs even when the run degraded; missing phases simply
// leave their slot empty, so the caller always receives the richest
// plan the run produced.
func consolidate(_ context.Context, s *pipeline.State) (pipeline.Result, error) {
	finalPlan := parse.Record{
		"task_id":      s.String(fieldTaskID),
		"user_request": s.String(fieldUserRequest),
		"approved":     s.Bool(fieldApproved),
		"iterations":   s.Int(pipeline.FieldIterationCount),
	}
	for slot, field := range map[string]string{
		"intent":         fieldIntent,
		"requirements":   fieldRequirements,
		"architecture":   fieldArchitecture,
		"implementation": fieldImplementation,
		"quality_review": fieldReview,
	} {
		if rec := s.Record(field); rec != nil {
			finalPlan[slot] = map[string]any(rec)
		}
	}
	return pipeline.NewResult().Set(fieldFinalPlan, finalPlan), nil
}
