// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package critic

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

const (
	nodeInputValidator = "input_validator"
	nodeCorrectness    = "correctness_analyzer"
	nodeQuality        = "quality_analyzer"
	nodeSynthesis      = "feedback_synthesizer"

	fieldTaskID         = "task_id"
	fieldSignature      = "signature"
	fieldDocstring      = "docstring"
	fieldPlan           = "plan"
	fieldCode           = "code"
	fieldExecSummary    = "exec_summary"
	fieldQualityMetrics = "quality_metrics"
	fieldInputErrors    = "input_validation_errors"
	fieldCorrectness    = "correctness_analysis"
	fieldQuality        = "quality_analysis"
	fieldFeedback       = "feedback"
)

// inputValidator blocks the critique when any required artifact is
// missing; there is nothing useful to review without all three.
type inputValidator struct{}

// Name implements pipeline.Node.
func (inputValidator) Name() string { return nodeInputValidator }

// Run implements pipeline.Node.
func (inputValidator) Run(_ context.Context, s *pipeline.State) (pipeline.Result, error) {
	var errs []string
	if strings.TrimSpace(s.String(fieldCode)) == "" {
		errs = append(errs, "Code is required for critique")
	}
	if strings.TrimSpace(s.String(fieldSignature)) == "" {
		errs = append(errs, "Signature is required for critique")
	}
	if strings.TrimSpace(s.String(fieldPlan)) == "" {
		errs = append(errs, "Plan is required for critique")
	}

	res := pipeline.NewResult().
		Set(fieldInputErrors, errs).
		Set(pipeline.FieldShouldProceed, len(errs) == 0)
	for _, e := range errs {
		res = res.AddError(nodeInputValidator + ": " + e)
	}
	return res, nil
}

// analysisPhase is one LLM-backed review pass producing a structured
// record. Advisory: a failed call or unparseable output leaves the
// field degraded and the run continues.
type analysisPhase struct {
	name   string
	field  string
	client llm.Client
	params llm.GenerationParams
	prompt func(*pipeline.State) string
}

// Name implements pipeline.Node.
func (p *analysisPhase) Name() string { return p.name }

// Run implements pipeline.Node.
func (p *analysisPhase) Run(ctx context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	text, err := p.client.Generate(ctx, p.prompt(s), p.params)
	if err != nil {
		return res.
			Set(p.field, parse.NewRecord()).
			AddError(fmt.Sprintf("%s: llm call failed: %v", p.name, err)), nil
	}

	rec, ok := parse.Extract(text)
	if !ok {
		return res.
			Set(p.field, parse.Record{"raw_response": text, "error": "unparseable output"}).
			AddError(p.name + ": unparseable output"), nil
	}
	return res.Set(p.field, rec), nil
}

// hasBlockingDefects reports whether the correctness analysis found
// anything that makes a style review pointless.
func hasBlockingDefects(rec parse.Record) bool {
	if rec.Has("correct") && !rec.Bool("correct") {
		return true
	}
	for _, d := range rec.Maps("defects") {
		if d.String("severity") == "critical" {
			return true
		}
	}
	return false
}

// synthesize assembles the final feedback text, correctness findings
// first. A blocked run reports the missing inputs; a fully degraded run
// reports the richest analysis that survived.
func synthesize(_ context.Context, s *pipeline.State) (pipeline.Result, error) {
	res := pipeline.NewResult()

	if !s.ShouldProceed() {
		msg := "Critique could not run: " + strings.Join(s.StringSlice(fieldInputErrors), "; ")
		return res.Set(fieldFeedback, msg), nil
	}

	correctness := s.Record(fieldCorrectness)
	quality := s.Record(fieldQuality)

	var b strings.Builder
	if correctness.Has("summary") || len(correctness.Maps("defects")) > 0 {
		b.WriteString("## Correctness\n")
		if sum := correctness.String("summary"); sum != "" {
			b.WriteString(sum)
			b.WriteString("\n")
		}
		for _, d := range correctness.Maps("defects") {
			fmt.Fprintf(&b, "- [%s] %s", d.String("severity"), d.String("description"))
			if rec := d.String("recommendation"); rec != "" {
				fmt.Fprintf(&b, " Recommendation: %s", rec)
			}
			b.WriteString("\n")
		}
	}
	if suggestions := quality.Maps("suggestions"); len(suggestions) > 0 || quality.Has("summary") {
		b.WriteString("\n## Quality\n")
		if sum := quality.String("summary"); sum != "" {
			b.WriteString(sum)
			b.WriteString("\n")
		}
		for _, sg := range suggestions {
			fmt.Fprintf(&b, "- [%s] %s\n", sg.String("category"), sg.String("description"))
		}
	}

	feedback := strings.TrimSpace(b.String())
	if feedback == "" {
		feedback = "No analysis produced."
		if first := s.FirstError(); first != "" {
			feedback += " First failure: " + first
		}
	}
	return res.Set(fieldFeedback, feedback), nil
}
