// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package critic

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/pipeline"
)

const outputFormat = `
Respond in exactly this format:
<thinking>
Your analysis here.
</thinking>
<output>
{valid JSON object here}
</output>`

const correctnessSystem = `You are a rigorous code reviewer focused exclusively on CORRECTNESS.
Judge whether the implementation satisfies its signature, docstring, and plan.
Ignore style entirely. A defect is "critical" when the code returns wrong
results, crashes, or violates the contract; "major" when an edge case is
mishandled; "minor" otherwise.

The JSON object must have keys:
  "correct": boolean,
  "defects": [{"severity": "critical|major|minor", "description": str, "recommendation": str}],
  "summary": str` + outputFormat

const qualitySystem = `You are a code reviewer focused on QUALITY: readability, naming,
structure, and maintainability. The code is already judged functionally
correct; do not re-litigate correctness.

The JSON object must have keys:
  "suggestions": [{"category": "readability|structure|performance|naming", "description": str}],
  "summary": str` + outputFormat

func correctnessPrompt(s *pipeline.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Signature:
%s

Docstring:
%s

Plan:
%s

Implementation:
`+"```python\n%s\n```\n",
		s.String(fieldSignature), s.String(fieldDocstring),
		s.String(fieldPlan), s.String(fieldCode))

	if es := s.String(fieldExecSummary); es != "" {
		b.WriteString("\nExecution result:\n")
		b.WriteString(es)
		b.WriteString("\n")
	}
	b.WriteString("\nAnalyze this implementation for correctness defects.")
	return b.String()
}

func qualityPrompt(s *pipeline.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Implementation:
`+"```python\n%s\n```\n", s.String(fieldCode))

	if qm := s.String(fieldQualityMetrics); qm != "" {
		b.WriteString("\nStatic quality metrics:\n")
		b.WriteString(qm)
		b.WriteString("\n")
	}
	b.WriteString("\nSuggest quality improvements.")
	return b.String()
}
