// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package exec defines the boundary records an external code executor
// supplies to the pipelines. The executor itself lives outside this
// repository; pipelines only surface these records to prompts as
// refinement context, never parse them for control flow.
package exec

import (
	"fmt"
	"strings"
)

// Result summarizes one prior execution of generated code.
type Result struct {
	Passed            bool     `json:"passed"`
	ErrorType         string   `json:"error_type,omitempty"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	Output            string   `json:"output,omitempty"`
	FunctionExtracted bool     `json:"function_extracted"`
	FunctionNames     []string `json:"function_names,omitempty"`
}

// Summary compresses the result to the short form embedded in prompts.
// Only pass/fail and the error identity are surfaced; captured output
// and test contents are deliberately withheld from the model.
func (r *Result) Summary() string {
	if r == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("passed=%t", r.Passed)}
	if r.ErrorType != "" {
		parts = append(parts, "error_type="+r.ErrorType)
	}
	if r.ErrorMessage != "" {
		parts = append(parts, "error_message="+r.ErrorMessage)
	}
	return strings.Join(parts, ", ")
}

// QualityMetrics carries static-analysis measurements of generated
// code. The formulas are the executor's concern; pipelines treat the
// values as opaque prompt context and never route on them.
type QualityMetrics struct {
	MaintainabilityIndex float64 `json:"maintainability_index"`
	CyclomaticComplexity int     `json:"cyclomatic_complexity"`
	LinesOfCode          int     `json:"lines_of_code,omitempty"`
	HalsteadEffort       float64 `json:"halstead_effort,omitempty"`
}

// Summary renders the metrics for prompt embedding.
func (m *QualityMetrics) Summary() string {
	if m == nil {
		return ""
	}
	parts := []string{
		fmt.Sprintf("maintainability_index=%.1f", m.MaintainabilityIndex),
		fmt.Sprintf("cyclomatic_complexity=%d", m.CyclomaticComplexity),
	}
	if m.LinesOfCode > 0 {
		parts = append(parts, fmt.Sprintf("lines_of_code=%d", m.LinesOfCode))
	}
	if m.HalsteadEffort > 0 {
		parts = append(parts, fmt.Sprintf("halstead_effort=%.1f", m.HalsteadEffort))
	}
	return strings.Join(parts, ", ")
}
