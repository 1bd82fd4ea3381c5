// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package single

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

const (
	nodeAnalyze       = "analyze"
	nodePlan          = "plan"
	nodeGenerate      = "generate"
	nodeReview        = "review"
	nodeConsolidation = "consolidation"

	fieldTaskID         = "task_id"
	fieldSignature      = "signature"
	fieldDocstring      = "docstring"
	fieldExecSummary    = "exec_summary"
	fieldQualityMetrics = "quality_metrics"
	fieldAnalysis       = "analysis"
	fieldPlan           = "plan"
	fieldDraftCode      = "draft_code"
	fieldReview         = "review"
	fieldCode           = "code"
)

// textPhase is one plain-text LLM pass. Advisory; a failed call leaves
// the field empty and the run continues.
type textPhase struct {
	name   string
	field  string
	client llm.Client
	params llm.GenerationParams
	prompt func(*pipeline.State) string
}

// Name implements pipeline.Node.
func (p *textPhase) Name() string { return p.name }

// Run implements pipeline.Node.
func (p *textPhase) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, p.prompt(s), p.params)
	if err != nil {
		return res.
			Set(p.field, "").
			AddError(fmt.Sprintf("%s: llm call failed: %v", p.name, err)), nil
	}
	return res.Set(p.field, strings.TrimSpace(text)), nil
}

// generatePhase produces the draft implementation, on refinement passes
// regenerating from the previous draft and its review.
type generatePhase struct {
	client llm.Client
	params llm.GenerationParams
}

// Name implements pipeline.Node.
func (p *generatePhase) Name() string { return nodeGenerate }

// Run implements pipeline.Node.
func (p *generatePhase) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, generatePrompt(s), p.params)
	if err != nil {
		return res.
			Set(fieldDraftCode, "").
			AddError(fmt.Sprintf("%s: llm call failed: %v", nodeGenerate, err)), nil
	}

	code := parse.ExtractPythonCode(text)
	if code == "" {
		return res.
			Set(fieldDraftCode, "").
			AddError(nodeGenerate + ": failed to extract Python code from generation output"), nil
	}
	return res.Set(fieldDraftCode, code), nil
}

// verdictIsCorrect decides acceptance from the review text. The review
// prompt demands the verdict as the final line; a model that buries it
// mid-text is still honored as long as the rejection sentence is absent.
func verdictIsCorrect(review string) bool {
	lines := strings.Split(strings.TrimSpace(review), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == verdictCorrect {
		return true
	}
	return strings.Contains(review, verdictCorrect) &&
		!strings.Contains(review, "Code has issues")
}

// consolidate promotes the last draft to the final code field.
func consolidate(_ context.Context, s *pipeline.State) (pipeline.Result, error) {
	return pipeline.NewResult().Set(fieldCode, s.String(fieldDraftCode)), nil
}
