// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Strategies(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantOK  bool
		wantKey string
		wantVal string
	}{
		{
			name:    "output tags",
			input:   "<thinking>\nreasoning here\n</thinking>\n<output>\n{\"intent\": \"sort a list\"}\n</output>",
			wantOK:  true,
			wantKey: "intent",
			wantVal: "sort a list",
		},
		{
			name:    "fenced json block",
			input:   "Here is the plan:\n```json\n{\"intent\": \"parse csv\"}\n```\nDone.",
			wantOK:  true,
			wantKey: "intent",
			wantVal: "parse csv",
		},
		{
			name:    "fence without language tag",
			input:   "```\n{\"intent\": \"dedupe\"}\n```",
			wantOK:  true,
			wantKey: "intent",
			wantVal: "dedupe",
		},
		{
			name:    "bare json",
			input:   `{"intent": "reverse string"}`,
			wantOK:  true,
			wantKey: "intent",
			wantVal: "reverse string",
		},
		{
			name:    "json after prose",
			input:   "Sure, here is my analysis.\n\n{\"intent\": \"binary search\"}",
			wantOK:  true,
			wantKey: "intent",
			wantVal: "binary search",
		},
		{
			name:    "result marker",
			input:   "Result: {\"intent\": \"fizzbuzz\"}",
			wantOK:  true,
			wantKey: "intent",
			wantVal: "fizzbuzz",
		},
		{
			name:    "thinking only, no output",
			input:   "<thinking>I am still thinking about this</thinking>",
			wantOK:  false,
			wantKey: "",
		},
		{
			name:   "no json at all",
			input:  "I cannot produce a plan for this request.",
			wantOK: false,
		},
		{
			name:   "empty input",
			input:  "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Extract(tt.input)
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantKey != "" {
				assert.Equal(t, tt.wantVal, rec.String(tt.wantKey))
			}
			if !tt.wantOK {
				assert.Empty(t, rec)
			}
		})
	}
}

func TestExtract_Repairs(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "trailing comma in object",
			input: `{"intent": "sort", "domain": "algorithms",}`,
		},
		{
			name:  "trailing comma in array",
			input: `{"assumptions": ["ints only", "ascending",], "intent": "sort"}`,
		},
		{
			name:  "fenced inside output tags",
			input: "<output>\n```json\n{\"intent\": \"sort\"}\n```\n</output>",
		},
		{
			name:  "line comments",
			input: "{\"intent\": \"sort\", // primary goal\n\"domain\": \"algorithms\"}",
		},
		{
			name:  "block comments",
			input: `{"intent": "sort" /* confirmed */, "domain": "algorithms"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Extract(tt.input)
			require.True(t, ok, "expected repair to recover the object")
			assert.Equal(t, "sort", rec.String("intent"))
		})
	}
}

func TestExtract_PrefersOutputTags(t *testing.T) {
	input := "```json\n{\"source\": \"fence\"}\n```\n<output>{\"source\": \"tags\"}</output>"
	rec, ok := Extract(input)
	require.True(t, ok)
	assert.Equal(t, "tags", rec.String("source"))
}

func TestExtract_BracesInsideStrings(t *testing.T) {
	input := `prose {"code": "if x { return y }", "lang": "go"} trailing`
	rec, ok := Extract(input)
	require.True(t, ok)
	assert.Equal(t, "if x { return y }", rec.String("code"))
}

func TestExtract_RejectsBareArray(t *testing.T) {
	_, ok := Extract(`[1, 2, 3]`)
	assert.False(t, ok)
}

func TestExtract_NestedObject(t *testing.T) {
	input := `<output>{"non_functional": {"performance": {"time_complexity": "O(log n)"}}, "functional": [{"id": 1}]}</output>`
	rec, ok := Extract(input)
	require.True(t, ok)

	perf := rec.Map("non_functional").Map("performance")
	require.NotNil(t, perf)
	assert.Equal(t, "O(log n)", perf.String("time_complexity"))

	funcs := rec.Maps("functional")
	require.Len(t, funcs, 1)
	assert.Equal(t, 1, funcs[0].Int("id"))
}

func TestExtract_Idempotence(t *testing.T) {
	// A parsed record, re-serialized and re-parsed, must come back
	// identical. Downstream prompts embed Record.JSON() and refinement
	// passes may extract it again.
	input := `<output>{
		"intent": "sort a list",
		"completeness_score": 8,
		"approved": true,
		"issues": [{"severity": "minor", "description": "naming"}],
		"non_functional": {"performance": {"time_complexity": "O(n log n)"}}
	}</output>`

	first, ok := Extract(input)
	require.True(t, ok)

	second, ok := Extract(first.JSON())
	require.True(t, ok)
	assert.Equal(t, first, second)

	// And a third pass is a fixed point too.
	third, ok := Extract(second.JSON())
	require.True(t, ok)
	assert.Equal(t, second, third)
}

func TestRecord_Accessors(t *testing.T) {
	rec := Record{
		"score":   float64(8),
		"ratio":   0.5,
		"passed":  true,
		"name":    "reviewer",
		"tags":    []any{"a", "b", float64(3)},
		"details": map[string]any{"k": "v"},
	}

	assert.Equal(t, 8, rec.Int("score"))
	assert.Equal(t, 0.5, rec.Float("ratio"))
	assert.True(t, rec.Bool("passed"))
	assert.Equal(t, "reviewer", rec.String("name"))
	assert.Equal(t, []string{"a", "b"}, rec.StringSlice("tags"))
	assert.Equal(t, "v", rec.Map("details").String("k"))

	// Missing and mistyped keys give zero values.
	assert.Equal(t, 0, rec.Int("missing"))
	assert.Equal(t, "", rec.String("score"))
	assert.False(t, rec.Bool("name"))
	assert.Nil(t, rec.Slice("name"))
	assert.Nil(t, rec.Map("tags"))
	assert.False(t, rec.Has("missing"))
	assert.True(t, rec.Has("score"))
}
