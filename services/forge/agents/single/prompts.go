// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package single

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
)

const (
	analyzeSystem = `You are an expert Python developer.
Analyze the given task: restate what the function must do, its inputs and
outputs, and the tricky parts. Plain text, concise.`

	planSystem = `You are an expert Python developer.
Write a short step-by-step implementation plan for the task. Plain text,
numbered steps.`

	generateSystem = `You are an expert Python developer.
Implement the function. Respond with a single Python code block and nothing
else. Include the full function definition with the exact signature given.`

	reviewSystem = `You are a rigorous Python code reviewer.
Review the implementation against its signature, docstring, and plan.
Your final line MUST be exactly one of these two sentences:
Code is correct
Code has issues`
)

// verdictCorrect is the exact sentence the review phase must emit to
// accept the implementation and exit the refinement loop.
const verdictCorrect = "Code is correct"

// executionContext renders the optional runtime feedback sections used
// as prompt context only; the loop decision rests on the review verdict.
func executionContext(s *pipeline.State) string {
	var b strings.Builder
	if es := s.String(fieldExecSummary); es != "" {
		b.WriteString("\nExecution result of a previous attempt:\n")
		b.WriteString(es)
		b.WriteString("\n")
	}
	if qm := s.String(fieldQualityMetrics); qm != "" {
		b.WriteString("\nStatic quality metrics of a previous attempt:\n")
		b.WriteString(qm)
		b.WriteString("\n")
	}
	return b.String()
}

func taskHeader(s *pipeline.State) string {
	return fmt.Sprintf("Signature:\n%s\n\nDocstring:\n%s\n",
		s.String(fieldSignature), s.String(fieldDocstring))
}

func analyzePrompt(s *pipeline.State) string {
	return taskHeader(s) + executionContext(s) + "\nAnalyze this task."
}

func planPrompt(s *pipeline.State) string {
	return fmt.Sprintf("%s\nAnalysis:\n%s\n\nWrite the implementation plan.",
		taskHeader(s), s.String(fieldAnalysis))
}

func generatePrompt(s *pipeline.State) string {
	var b strings.Builder
	b.WriteString(taskHeader(s))
	fmt.Fprintf(&b, "\nPlan:\n%s\n", s.String(fieldPlan))

	// On refinement passes the previous attempt and its review drive
	// the regeneration.
	if s.Int(pipeline.FieldIterationCount) > 0 {
		fmt.Fprintf(&b, "\nPrevious attempt:\n```python\n%s\n```\n", s.String(fieldDraftCode))
		fmt.Fprintf(&b, "\nReview of the previous attempt:\n%s\n", s.String(fieldReview))
		b.WriteString("\nFix every issue the review raised.")
	}
	b.WriteString(executionContext(s))
	b.WriteString("\nRespond with only the complete Python code.")
	return b.String()
}

func reviewPrompt(s *pipeline.State) string {
	return fmt.Sprintf("%s\nPlan:\n%s\n\nImplementation:\n```python\n%s\n```\n%s\nReview this implementation.",
		taskHeader(s), s.String(fieldPlan), s.String(fieldDraftCode), executionContext(s))
}
