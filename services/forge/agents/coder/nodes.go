// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coder

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/forge/syntax"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

const (
	nodeInputValidator = "input_validator"
	nodeEdgeCases      = "edge_case_analyzer"
	nodeCoT            = "cot_generator"
	nodeGenerator      = "code_generator"
	nodeCodeValidator  = "code_validator"
	nodeOptimizer      = "code_optimizer"
	nodeConsolidation  = "consolidation"

	fieldTaskID            = "task_id"
	fieldSignature         = "signature"
	fieldPlan              = "plan"
	fieldCriticFeedback    = "critic_feedback"
	fieldExecSummary       = "exec_summary"
	fieldInputErrors       = "input_validation_errors"
	fieldEdgeCases         = "edge_cases"
	fieldCoT               = "cot_reasoning"
	fieldRawCode           = "raw_code"
	fieldValidatedCode     = "validated_code"
	fieldValidationWarns   = "validation_warnings"
	fieldOptimizedCode     = "optimized_code"
	fieldOptimizationNotes = "optimization_notes"
	fieldCode              = "code"
)

const minPlanLength = 20

var funcNameRe = regexp.MustCompile(`def\s+\w+\s*\(`)

// validateSignature checks the Python function signature shape.
func validateSignature(signature string) []string {
	var errs []string
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return []string{"Signature cannot be empty"}
	}
	if !strings.HasPrefix(sig, "def ") {
		errs = append(errs, "Signature must start with 'def'")
	}
	if !funcNameRe.MatchString(sig) {
		errs = append(errs, "Invalid function name or missing parentheses")
	}
	if !strings.HasSuffix(sig, ":") {
		errs = append(errs, "Signature must end with ':'")
	}
	return errs
}

// validatePlan checks the implementation plan is substantive.
func validatePlan(plan string) []string {
	p := strings.TrimSpace(plan)
	if p == "" {
		return []string{"Plan cannot be empty"}
	}
	if len(p) < minPlanLength {
		return []string{"Plan seems too brief (< 20 characters) - needs more detail"}
	}
	return nil
}

// inputValidator is the blocking gate at the head of the pipeline. Any
// defect in the signature, plan, or required fields halts everything
// downstream; consolidation then reports the first defect as the
// primary error.
type inputValidator struct{}

// Name implements pipeline.Node.
func (inputValidator) Name() string { return nodeInputValidator }

// Run implements pipeline.Node.
func (inputValidator) Run(_ context.Context, s *pipeline.State) (pipeline.Result, error) {
	var errs []string
	errs = append(errs, validateSignature(s.String(fieldSignature))...)
	errs = append(errs, validatePlan(s.String(fieldPlan))...)
	if s.String(fieldTaskID) == "" {
		errs = append(errs, "task_id is required")
	}

	res := pipeline.NewResult().
		Set(fieldInputErrors, errs).
		Set(pipeline.FieldShouldProceed, len(errs) == 0)
	for _, e := range errs {
		res = res.AddError(nodeInputValidator + ": " + e)
	}
	return res, nil
}

// edgeCaseAnalyzer asks the model for boundary conditions, seeded with
// type hints pulled from the signature. Advisory; an empty list flows
// downstream on failure.
type edgeCaseAnalyzer struct {
	client llm.Client
	params llm.GenerationParams
}

// Name implements pipeline.Node.
func (p *edgeCaseAnalyzer) Name() string { return nodeEdgeCases }

// Run implements pipeline.Node.
func (p *edgeCaseAnalyzer) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, edgeCasePrompt(s), p.params)
	if err != nil {
		return res.
			Set(fieldEdgeCases, []string{}).
			AddError(fmt.Sprintf("%s: llm call failed: %v", nodeEdgeCases, err)), nil
	}

	var cases []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cases = append(cases, strings.TrimLeft(line, "-* "))
	}
	return res.Set(fieldEdgeCases, cases), nil
}

// cotGenerator produces free-text chain-of-thought reasoning that
// structures the generation phase. Advisory.
type cotGenerator struct {
	client llm.Client
	params llm.GenerationParams
}

// Name implements pipeline.Node.
func (p *cotGenerator) Name() string { return nodeCoT }

// Run implements pipeline.Node.
func (p *cotGenerator) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, cotPrompt(s), p.params)
	if err != nil {
		return res.
			Set(fieldCoT, "").
			AddError(fmt.Sprintf("%s: llm call failed: %v", nodeCoT, err)), nil
	}
	return res.Set(fieldCoT, strings.TrimSpace(text)), nil
}

// codeGenerator produces the raw implementation. Advisory: downstream
// validation turns an empty product into the blocking condition.
type codeGenerator struct {
	client llm.Client
	params llm.GenerationParams
}

// Name implements pipeline.Node.
func (p *codeGenerator) Name() string { return nodeGenerator }

// Run implements pipeline.Node.
func (p *codeGenerator) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, generatePrompt(s), p.params)
	if err != nil {
		return res.
			Set(fieldRawCode, "").
			AddError(fmt.Sprintf("%s: llm call failed: %v", nodeGenerator, err)), nil
	}

	code := parse.ExtractPythonCode(text)
	if code == "" {
		return res.
			Set(fieldRawCode, "").
			AddError(nodeGenerator + ": failed to extract Python code from generation output"), nil
	}
	return res.Set(fieldRawCode, code), nil
}

// codeValidator is the second blocking gate: generated code that does
// not parse stops the pipeline, leaving validated_code unset so
// consolidation reports the syntax error as primary.
type codeValidator struct{}

// Name implements pipeline.Node.
func (codeValidator) Name() string { return nodeCodeValidator }

// Run implements pipeline.Node.
func (codeValidator) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	raw := s.String(fieldRawCode)
	if raw == "" {
		return res.
			Set(pipeline.FieldShouldProceed, false).
			AddError(nodeCodeValidator + ": no code to validate"), nil
	}

	report, err := syntax.ValidatePython(ctx, raw)
	if err != nil {
		return res.
			Set(pipeline.FieldShouldProceed, false).
			AddError(fmt.Sprintf("%s: %v", nodeCodeValidator, err)), nil
	}
	if !report.Valid {
		return res.
			Set(pipeline.FieldShouldProceed, false).
			AddError(nodeCodeValidator + ": " + report.Summary()), nil
	}
	return res.
		Set(fieldValidatedCode, raw).
		Set(fieldValidationWarns, report.Warnings), nil
}

// codeOptimizer polishes validated code. Its output goes through the
// same syntax gate as generation output; any regression falls back to
// the validated code, so optimization can never lose a working result.
type codeOptimizer struct {
	client llm.Client
	params llm.GenerationParams
}

// Name implements pipeline.Node.
func (p *codeOptimizer) Name() string { return nodeOptimizer }

// Run implements pipeline.Node.
func (p *codeOptimizer) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	validated := s.String(fieldValidatedCode)
	if validated == "" {
		return res.Set(fieldOptimizedCode, ""), nil
	}

	text, err := p.client.Generate(ctx, optimizePrompt(s), p.params)
	if err != nil {
		return res.
			Set(fieldOptimizedCode, validated).
			AddError(fmt.Sprintf("%s: llm call failed, keeping unoptimized code: %v", nodeOptimizer, err)), nil
	}

	optimized := parse.ExtractPythonCode(text)
	if optimized == "" {
		return res.
			Set(fieldOptimizedCode, validated).
			AddError(nodeOptimizer + ": empty optimizer output, keeping unoptimized code"), nil
	}

	report, err := syntax.ValidatePython(ctx, optimized)
	if err != nil || !report.Valid {
		return res.
			Set(fieldOptimizedCode, validated).
			AddError(nodeOptimizer + ": optimized code failed syntax validation, keeping unoptimized code"), nil
	}
	return res.
		Set(fieldOptimizedCode, optimized).
		Set(fieldOptimizationNotes, report.Warnings), nil
}

// consolidate picks the best available code: optimized, else validated,
// else raw. A blocked run leaves the final code empty with the blocking
// defect first in the error log.
func consolidate(_ context.Context, s *pipeline.State) (pipeline.Result, error) {
	code := s.String(fieldOptimizedCode)
	if code == "" {
		code = s.String(fieldValidatedCode)
	}
	if code == "" {
		code = s.String(fieldRawCode)
	}
	return pipeline.NewResult().Set(fieldCode, code), nil
}
