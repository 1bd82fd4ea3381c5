// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
)

const (
	edgeCaseSystem = `You are an expert Python developer focused on defensive programming.
Given a function signature and implementation plan, enumerate the edge cases
and boundary conditions the implementation must handle.
Respond with one edge case per line. No prose, no numbering.`

	cotSystem = `You are an expert Python developer.
Before writing any code, reason step by step about how to implement the
function: data structures, algorithm, control flow, and how each edge case
is handled. Be concrete and concise.`

	generateSystem = `You are an expert Python developer.
Write a complete, correct, production-quality implementation of the requested
function. Respond with a single Python code block and nothing else.
Include the full function definition with the exact signature given.`

	optimizeSystem = `You are an expert Python developer focused on code quality.
Improve the given working implementation: simplify logic, reduce complexity,
and improve naming, without changing behavior.
Respond with a single Python code block containing the full function.`
)

var (
	paramHintRe  = regexp.MustCompile(`(\w+):\s*(\w+(?:\[[\w\,\s]+\])?)`)
	returnHintRe = regexp.MustCompile(`->\s*(\w+(?:\[[\w\,\s]+\])?)`)
)

// typeHints pulls parameter and return annotations out of a signature
// so the edge case phase can reason about input domains.
func typeHints(signature string) string {
	var b strings.Builder
	for _, m := range paramHintRe.FindAllStringSubmatch(signature, -1) {
		fmt.Fprintf(&b, "- %s: %s\n", m[1], m[2])
	}
	if m := returnHintRe.FindStringSubmatch(signature); m != nil {
		fmt.Fprintf(&b, "- returns: %s\n", m[1])
	}
	if b.Len() == 0 {
		return "No type hints found.\n"
	}
	return b.String()
}

// contextSections renders the optional critic feedback and execution
// summary the caller may have threaded in from a previous attempt.
func contextSections(s *pipeline.State) string {
	var b strings.Builder
	if fb := s.String(fieldCriticFeedback); fb != "" {
		b.WriteString("\n## Feedback From Previous Attempt\n")
		b.WriteString(fb)
		b.WriteString("\n")
	}
	if es := s.String(fieldExecSummary); es != "" {
		b.WriteString("\n## Execution Result of Previous Attempt\n")
		b.WriteString(es)
		b.WriteString("\n")
	}
	return b.String()
}

func edgeCasePrompt(s *pipeline.State) string {
	return fmt.Sprintf(`Function signature:
%s

Type hints:
%s
Implementation plan:
%s
%s
List the edge cases this implementation must handle, one per line.`,
		s.String(fieldSignature), typeHints(s.String(fieldSignature)),
		s.String(fieldPlan), contextSections(s))
}

func cotPrompt(s *pipeline.State) string {
	return fmt.Sprintf(`Function signature:
%s

Implementation plan:
%s

Edge cases to handle:
%s
%s
Think through the implementation step by step.`,
		s.String(fieldSignature), s.String(fieldPlan),
		bulleted(s.StringSlice(fieldEdgeCases)), contextSections(s))
}

func generatePrompt(s *pipeline.State) string {
	return fmt.Sprintf(`Implement this function:
%s

Implementation plan:
%s

Edge cases to handle:
%s
Reasoning:
%s
%s
Respond with only the complete Python code.`,
		s.String(fieldSignature), s.String(fieldPlan),
		bulleted(s.StringSlice(fieldEdgeCases)), s.String(fieldCoT),
		contextSections(s))
}

func optimizePrompt(s *pipeline.State) string {
	return fmt.Sprintf(`This implementation is correct and passes syntax validation:

`+"```python\n%s\n```"+`

Original signature:
%s

Improve its quality without changing behavior. Respond with only the
complete Python code.`,
		s.String(fieldValidatedCode), s.String(fieldSignature))
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "(none identified)\n"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return b.String()
}
