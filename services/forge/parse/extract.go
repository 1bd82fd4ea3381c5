// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	outputTagRe = regexp.MustCompile(`(?s)<output>\s*(.+?)\s*</output>`)
	thinkingRe  = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
	codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

	// Markers some models prefix their JSON answer with.
	markerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)(?:Output|Result|Response):\s*(\{.+\})`),
		regexp.MustCompile(`(?sm)(?:^|\n)(\{[\s\S]*\})\s*(?:$|\n)`),
	}

	// Repair regexes applied per candidate.
	leadingFenceRe  = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFenceRe = regexp.MustCompile("\\s*```$")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	lineCommentRe   = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Last resort: any balanced-looking one-level-nested brace block.
	anyBraceRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// Extract pulls a JSON object out of raw model output.
//
// Description:
//
//	Candidates are tried in priority order: the contents of <output>
//	tags, top-level brace-counted blocks in the thinking-stripped text,
//	fenced code blocks, and text after common answer markers. Each
//	candidate goes through escalating repair (strip fences, drop
//	trailing commas, escape raw newlines, strip comments) before being
//	abandoned. If every strategy fails, Extract returns an empty Record
//	and false. It never returns an error; a parse miss is recorded on
//	the pipeline error log by the caller, not raised.
//
// Inputs:
//
//	text - Raw LLM output, possibly containing reasoning and markup.
//
// Outputs:
//
//	Record - The parsed object, or an empty Record on failure.
//	bool - True when parsing succeeded.
func Extract(text string) (Record, bool) {
	if strings.TrimSpace(text) == "" {
		return NewRecord(), false
	}

	cleanText := strings.TrimSpace(thinkingRe.ReplaceAllString(text, ""))

	candidates := collectCandidates(text, cleanText)
	for _, candidate := range candidates {
		if rec, ok := tryParse(candidate); ok {
			return rec, true
		}
	}

	// Whole cleaned response as-is.
	if rec, ok := decodeObject(cleanText); ok {
		return rec, true
	}

	// Last resort: any brace block in the raw text, commas repaired.
	for _, block := range anyBraceRe.FindAllString(text, -1) {
		cleaned := trailingCommaRe.ReplaceAllString(block, "$1")
		if rec, ok := decodeObject(cleaned); ok {
			return rec, true
		}
	}

	if strings.Contains(text, "<thinking>") && !strings.Contains(text, "<output>") {
		slog.Debug("Model produced <thinking> but no <output> tags, no JSON found")
	} else {
		slog.Debug("Failed to extract JSON from model output",
			slog.Int("candidates", len(candidates)),
		)
	}
	return NewRecord(), false
}

// collectCandidates gathers candidate JSON strings in priority order,
// deduplicated while preserving order.
func collectCandidates(text, cleanText string) []string {
	var candidates []string

	if m := outputTagRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	target := cleanText
	if target == "" {
		target = text
	}
	candidates = append(candidates, topLevelBraceBlocks(target)...)

	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	for _, re := range markerRes {
		if m := re.FindStringSubmatch(target); m != nil {
			candidates = append(candidates, strings.TrimSpace(m[1]))
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// topLevelBraceBlocks scans text for balanced top-level {...} blocks,
// tracking string literals so braces inside strings do not count.
func topLevelBraceBlocks(text string) []string {
	var blocks []string
	depth := 0
	start := -1
	inString := false
	escape := false

	for i, ch := range text {
		switch {
		case ch == '"' && !escape:
			inString = !inString
		case ch == '\\' && inString:
			escape = !escape
			continue
		case !inString && ch == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 && start != -1 {
				blocks = append(blocks, text[start:i+1])
				start = -1
			}
			if depth < 0 {
				depth = 0
			}
		}
		escape = false
	}
	return blocks
}

// tryParse runs the escalating repair chain on a single candidate.
func tryParse(candidate string) (Record, bool) {
	s := strings.TrimSpace(candidate)
	s = leadingFenceRe.ReplaceAllString(s, "")
	s = trailingFenceRe.ReplaceAllString(s, "")
	s = trailingCommaRe.ReplaceAllString(s, "$1")

	if rec, ok := decodeObject(s); ok {
		return rec, true
	}

	// Models often emit raw newlines inside string values.
	fixed := strings.ReplaceAll(s, "\n", "\\n")
	if rec, ok := decodeObject(fixed); ok {
		return rec, true
	}

	// Some emit JSON with // or /* */ comments.
	stripped := lineCommentRe.ReplaceAllString(s, "")
	stripped = blockCommentRe.ReplaceAllString(stripped, "")
	stripped = trailingCommaRe.ReplaceAllString(stripped, "$1")
	if rec, ok := decodeObject(stripped); ok {
		return rec, true
	}

	return nil, false
}

// decodeObject unmarshals s and requires the result to be an object.
// Bare arrays and scalars are rejected; every phase schema is an object.
func decodeObject(s string) (Record, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return Record(m), true
}
