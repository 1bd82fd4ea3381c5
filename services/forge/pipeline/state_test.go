// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
)

func testSchema() Schema {
	return Schema{
		"task_id":     {Class: ClassInput},
		"request":     {Class: ClassInput},
		"analysis":    {Class: ClassPhaseOutput, Owner: "analyze"},
		"draft":       {Class: ClassPhaseOutput, Owner: "generate"},
		"approved":    {Class: ClassControl},
		"final_plan":  {Class: ClassFinalOutput, Owner: "consolidate"},
		"retry_count": {Class: ClassControl},
	}
}

func TestNewState(t *testing.T) {
	s, err := NewState(testSchema(), map[string]any{
		"task_id": "t1",
		"request": "sort a list",
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", s.String("task_id"))
	assert.True(t, s.ShouldProceed())
	assert.Equal(t, 0, s.Int(FieldIterationCount))
	assert.Empty(t, s.Errors())
}

func TestNewState_RejectsUndeclaredInput(t *testing.T) {
	_, err := NewState(testSchema(), map[string]any{"unknown": 1})
	assert.ErrorIs(t, err, ErrFieldNotRegistered)
}

func TestNewState_RejectsNonInputInitialValue(t *testing.T) {
	_, err := NewState(testSchema(), map[string]any{"analysis": "preset"})
	assert.Error(t, err)
}

func TestApply_OwnershipEnforcement(t *testing.T) {
	tests := []struct {
		name     string
		writer   string
		field    string
		accepted bool
	}{
		{"owner writes own output", "analyze", "analysis", true},
		{"owner may rewrite on refinement", "analyze", "analysis", true},
		{"other phase writes foreign output", "generate", "analysis", false},
		{"any phase writes control", "generate", "approved", true},
		{"phase writes input field", "analyze", "task_id", false},
		{"phase writes unregistered field", "analyze", "bogus", false},
		{"terminal writes final output", "consolidate", "final_plan", true},
		{"non-terminal writes final output", "analyze", "final_plan", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewState(testSchema(), map[string]any{"task_id": "t1"})
			require.NoError(t, err)

			s.apply(tt.writer, NewResult().Set(tt.field, "value"))

			if tt.accepted {
				assert.Equal(t, "value", s.Get(tt.field))
				assert.Empty(t, s.Errors())
			} else {
				if tt.field != "task_id" {
					assert.False(t, s.Has(tt.field))
				} else {
					assert.Equal(t, "t1", s.String("task_id"), "input value must survive")
				}
				require.NotEmpty(t, s.Errors())
				assert.Contains(t, s.Errors()[0], tt.field)
			}
		})
	}
}

func TestApply_AppendsResultErrors(t *testing.T) {
	s, err := NewState(testSchema(), nil)
	require.NoError(t, err)

	s.apply("analyze", NewResult().AddError("llm call failed").AddError("parse failed"))
	s.apply("generate", NewResult().AddError("degraded"))

	assert.Equal(t, []string{"llm call failed", "parse failed", "degraded"}, s.Errors())
	assert.Equal(t, "llm call failed", s.FirstError())
}

func TestState_ControlHelpers(t *testing.T) {
	s, err := NewState(testSchema(), nil)
	require.NoError(t, err)

	require.NoError(t, s.SetControl(FieldShouldProceed, false))
	assert.False(t, s.ShouldProceed())

	assert.Equal(t, 1, s.BumpCounter("retry_count"))
	assert.Equal(t, 2, s.BumpCounter("retry_count"))
	assert.Equal(t, 2, s.Int("retry_count"))

	assert.Error(t, s.SetControl("analysis", true), "phase-output field is not control")
	assert.Error(t, s.SetControl("nope", true))
}

func TestState_Accessors(t *testing.T) {
	s, err := NewState(Schema{
		"text":   {Class: ClassInput},
		"num":    {Class: ClassInput},
		"truthy": {Class: ClassInput},
		"items":  {Class: ClassInput},
		"rec":    {Class: ClassInput},
	}, map[string]any{
		"text":   "hello",
		"num":    float64(7),
		"truthy": true,
		"items":  []any{"a", "b"},
		"rec":    map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", s.String("text"))
	assert.Equal(t, 7, s.Int("num"))
	assert.Equal(t, 7.0, s.Float("num"))
	assert.True(t, s.Bool("truthy"))
	assert.Equal(t, []string{"a", "b"}, s.StringSlice("items"))
	assert.Equal(t, "v", s.Record("rec").String("k"))

	// Absent fields read as zero values.
	assert.Equal(t, "", s.String("missing"))
	assert.Equal(t, 0, s.Int("missing"))
	assert.False(t, s.Bool("missing"))
	assert.Nil(t, s.Record("missing"))
	assert.True(t, s.ShouldProceed())
}

func TestState_RecordFromParseType(t *testing.T) {
	s, err := NewState(Schema{"rec": {Class: ClassInput}}, map[string]any{
		"rec": parse.Record{"score": float64(8)},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, s.Record("rec").Int("score"))
}
