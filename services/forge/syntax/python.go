// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package syntax validates generated Python with tree-sitter. The coder
// pipeline gates on Validate's hard errors; the logic heuristics are
// advisory and only ever produce warnings.
package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	maxErrors = 50
	maxDepth  = 1000
)

// Issue is one syntax defect with its source position.
type Issue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Kind    string `json:"kind"` // "syntax" or "missing"
}

// Report is the outcome of validating one code string.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []Issue  `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Summary renders the report's errors for the pipeline error log.
func (r *Report) Summary() string {
	if r.Valid {
		return "syntax valid"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d syntax error(s):", len(r.Errors)))
	for i, e := range r.Errors {
		if i >= 10 {
			sb.WriteString(fmt.Sprintf(" ... and %d more", len(r.Errors)-10))
			break
		}
		sb.WriteString(fmt.Sprintf(" line %d col %d: %s;", e.Line, e.Column, e.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// ValidatePython parses code with the tree-sitter Python grammar and
// collects ERROR/MISSING nodes plus advisory logic warnings.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	code - Python source to validate.
//
// Outputs:
//
//	*Report - Validation outcome; Valid is false when hard errors exist.
//	error - Non-nil only when the parser itself fails.
func ValidatePython(ctx context.Context, code string) (*Report, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	report := &Report{}
	collectErrors(root, content, &report.Errors, 0)
	report.Valid = len(report.Errors) == 0

	if report.Valid {
		report.Warnings = collectLogicWarnings(root, content)
	}
	return report, nil
}

// collectErrors walks the tree gathering ERROR and MISSING nodes.
func collectErrors(node *sitter.Node, content []byte, errs *[]Issue, depth int) {
	if depth > maxDepth || len(*errs) >= maxErrors {
		return
	}

	if node.IsError() || node.IsMissing() {
		point := node.StartPoint()
		start, end := node.StartByte(), node.EndByte()
		if end > uint32(len(content)) {
			end = uint32(len(content))
		}

		kind := "syntax"
		msg := "syntax error"
		if node.IsMissing() {
			kind = "missing"
			msg = fmt.Sprintf("missing %s", node.Type())
		} else if end > start && end-start < 100 {
			msg = fmt.Sprintf("unexpected: %s", truncate(string(content[start:end]), 50))
		}

		*errs = append(*errs, Issue{
			Line:    int(point.Row) + 1,
			Column:  int(point.Column),
			Message: msg,
			Kind:    kind,
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectErrors(node.Child(i), content, errs, depth+1)
	}
}

// collectLogicWarnings flags common generated-code mistakes the grammar
// cannot catch: infinite while-True loops without a break, and code
// after an unconditional return or raise. Warnings never fail a run.
func collectLogicWarnings(root *sitter.Node, content []byte) []string {
	var warnings []string
	walk(root, 0, func(node *sitter.Node) {
		switch node.Type() {
		case "while_statement":
			if w := checkInfiniteLoop(node); w != "" {
				warnings = append(warnings, w)
			}
		case "block":
			warnings = append(warnings, checkUnreachable(node)...)
		}
	})
	return warnings
}

// walk visits every node depth-first, bounded by maxDepth.
func walk(node *sitter.Node, depth int, visit func(*sitter.Node)) {
	if depth > maxDepth {
		return
	}
	visit(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), depth+1, visit)
	}
}

// checkInfiniteLoop warns on `while True:` bodies with no break.
func checkInfiniteLoop(node *sitter.Node) string {
	cond := node.ChildByFieldName("condition")
	if cond == nil || cond.Type() != "true" {
		return ""
	}
	body := node.ChildByFieldName("body")
	if body == nil || hasDescendant(body, "break_statement", 0) {
		return ""
	}
	return fmt.Sprintf("line %d: 'while True' loop has no break statement", int(node.StartPoint().Row)+1)
}

// hasDescendant reports whether the subtree contains a node of nodeType.
func hasDescendant(node *sitter.Node, nodeType string, depth int) bool {
	if depth > maxDepth {
		return false
	}
	if node.Type() == nodeType {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if hasDescendant(node.Child(i), nodeType, depth+1) {
			return true
		}
	}
	return false
}

// checkUnreachable warns on statements following a return or raise in
// the same block.
func checkUnreachable(block *sitter.Node) []string {
	var warnings []string
	terminated := false
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if terminated && child.Type() != "comment" {
			warnings = append(warnings, fmt.Sprintf(
				"line %d: unreachable code after return/raise", int(child.StartPoint().Row)+1))
			break
		}
		if child.Type() == "return_statement" || child.Type() == "raise_statement" {
			terminated = true
		}
	}
	return warnings
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
