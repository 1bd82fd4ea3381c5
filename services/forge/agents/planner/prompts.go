// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package planner

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
)

// baseSystem is shared by every planning phase. It enforces the
// two-stage <thinking>/<output> format the parser expects.
const baseSystem = `You are an elite software planning agent for production-grade code generation.

CORE PRINCIPLES:
- SPECIFICITY: Be precise and prescriptive, not vague
- PRODUCTION MINDSET: Think like a senior engineer shipping to production
- ACTIONABILITY: Every statement must be implementable

CRITICAL OUTPUT FORMAT (READ THIS CAREFULLY):
You MUST use this exact two-stage format in EVERY response:

1. REASONING (in <thinking> tags): think through the problem step by step.
2. JSON OUTPUT (in <output> tags): your final answer as valid JSON.

EXAMPLE OF REQUIRED FORMAT:
<thinking>
Let me think about this step by step...
</thinking>

<output>
{"key": "value"}
</output>

FAILURE TO USE BOTH TAGS WILL CAUSE PARSING ERRORS!

JSON OUTPUT REQUIREMENTS (CRITICAL):
Inside <output> tags, provide ONLY valid JSON:
- NO markdown code blocks
- NO explanatory text before or after JSON
- NO comments inside JSON
- NO trailing commas
- Exactly match the schema provided

NOTE: You are planning code implementation. The coder agent will implement code only (no tests).
`

const intentSystem = baseSystem + `
YOUR ROLE: Expert requirements analyst specializing in intent extraction.

YOUR TASK: Deeply understand the user's request and extract the true problem being solved.

YOUR OUTPUT SCHEMA:
{
  "intent": "<one-sentence problem statement>",
  "task_type": "<algorithm|data_processing|api|utility|script>",
  "domain": "<domain area>",
  "success_metrics": ["<metric>", ...],
  "assumptions": ["<assumption>", ...],
  "clarifications_needed": ["<question>", ...]
}
`

const requirementsSystem = baseSystem + `
YOUR ROLE: Elite requirements engineer for production systems.

YOUR TASK: Transform intent into comprehensive, testable requirements.

YOUR OUTPUT SCHEMA:
{
  "functional": [
    {"id": <int>, "requirement": "<what it must do>", "inputs": [...], "outputs": [...], "acceptance_criteria": [...]}
  ],
  "non_functional": {
    "performance": {"time_complexity": "<bound>", "space_complexity": "<bound>", "latency": "<requirement>"},
    "security": ["<requirement>", ...],
    "reliability": ["<requirement>", ...]
  },
  "constraints": {"technical": [...], "business": [...]},
  "edge_cases": [{"scenario": "<edge case>", "expected_behavior": "<handling>"}]
}
`

const architectureSystem = baseSystem + `
YOUR ROLE: Principal software architect specializing in clean, scalable design.

YOUR TASK: Design the optimal architecture that satisfies all requirements.

YOUR OUTPUT SCHEMA:
{
  "components": [
    {
      "name": "<component_name>",
      "responsibility": "<single responsibility>",
      "design_pattern": "<pattern: why it fits>",
      "data_structures": ["<structure: complexity for operations>", ...],
      "algorithm": "<approach and complexity analysis>",
      "interfaces": {"inputs": ["<param: type>", ...], "outputs": "<return: type>"}
    }
  ],
  "exception_hierarchy": ["<ExceptionType: when to raise>", ...],
  "validation_strategy": "<how to validate inputs>",
  "dependencies": ["<A depends on B: reason>", ...]
}

ANTI-PATTERNS TO AVOID:
- DON'T suggest "appropriate data structure" (be specific)
- DON'T recommend patterns without justification
- DON'T ignore standard library (prefer built-ins over custom implementations)
`

const implementationSystem = baseSystem + `
YOUR ROLE: Senior developer creating implementation blueprints.

YOUR TASK: Transform architecture into step-by-step implementation instructions.

YOUR OUTPUT SCHEMA:
{
  "implementation_order": ["<component_name>", ...],
  "components": [
    {
      "name": "<component_name>",
      "steps": [
        {
          "step": <int>,
          "action": "<specific implementation task>",
          "code_guidance": "<how to approach it>",
          "validation": [{"check": "<expression>", "exception": "<Type>", "message": "<error message>"}],
          "edge_cases": ["<case: specific handling>", ...]
        }
      ],
      "documentation_template": {"docstring": "<required sections>", "inline_comments": [...]}
    }
  ]
}
`

const reviewSystem = baseSystem + `
YOUR ROLE: Senior planning architect reviewing plan quality before handoff to coder agent.

YOUR TASK: Validate that this plan is comprehensive enough for a developer agent to implement production-grade code without questions.

YOUR OUTPUT SCHEMA:
{
  "completeness_score": <0-10>,
  "issues": [
    {"severity": "<critical|major|minor>", "category": "<requirements|architecture|implementation>", "description": "<problem>", "recommendation": "<fix>", "location": "<component/phase>"}
  ],
  "improvements": [{"area": "<what>", "suggestion": "<improvement>", "impact": "<benefit>"}],
  "approval_status": "<approved|needs_revision>",
  "retry_phase": "<requirements_engineering|architecture_design|implementation_planning|none>",
  "summary": "<2-3 sentence overall assessment>"
}

IMPORTANT: If approval_status is "needs_revision", specify retry_phase.
Remember: You are reviewing the PLAN, not code.
`

// compressPhase reduces a phase record to the essentials embedded in
// downstream prompts, keeping token budgets flat as phases accumulate.
func compressPhase(phaseName string, rec parse.Record) string {
	if len(rec) == 0 || rec.Has("error") {
		return phaseName + ": Error or empty"
	}

	switch phaseName {
	case "intent_analysis":
		return fmt.Sprintf("Intent: %s\nType: %s\nDomain: %s",
			orNA(rec.String("intent")), orNA(rec.String("task_type")), orNA(rec.String("domain")))

	case "requirements":
		perf := rec.Map("non_functional").Map("performance")
		return fmt.Sprintf("Requirements: %d functional reqs\nComplexity: %s\nEdge cases: %d identified",
			len(rec.Slice("functional")), orNA(perf.String("time_complexity")), len(rec.Slice("edge_cases")))

	case "architecture":
		components := rec.Maps("components")
		names := make([]string, 0, 3)
		for i, c := range components {
			if i >= 3 {
				break
			}
			names = append(names, c.String("name"))
		}
		pattern := "N/A"
		if len(components) > 0 {
			pattern = truncate(components[0].String("design_pattern"), 50)
		}
		return fmt.Sprintf("Components: %s\nTotal: %d components\nPatterns: %s",
			strings.Join(names, ", "), len(components), pattern)

	case "implementation":
		components := rec.Maps("components")
		steps := 0
		for _, c := range components {
			steps += len(c.Slice("steps"))
		}
		order := rec.StringSlice("implementation_order")
		if len(order) > 3 {
			order = order[:3]
		}
		return fmt.Sprintf("Implementation: %d components\nTotal steps: %d\nOrder: %s",
			len(components), steps, strings.Join(order, ", "))
	}

	return phaseName + ": Available"
}

// reviewFeedback formats the quality review's issue list for injection
// into a refinement re-run of an upstream phase.
func reviewFeedback(review parse.Record, iteration int) string {
	issues := review.Maps("issues")
	if len(issues) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, issue := range issues {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n",
			issue.String("severity"), issue.String("description"), issue.String("recommendation"))
	}
	return fmt.Sprintf(`

## Quality Review Feedback (Iteration %d)
The previous plan had these issues:
%s
Please address these in your revision.
`, iteration, sb.String())
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if s == "" {
		return "N/A"
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
