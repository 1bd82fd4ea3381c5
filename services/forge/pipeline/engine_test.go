// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNode tracks how often it ran and applies a fixed result.
type recordingNode struct {
	name string
	runs int
	res  func(s *State) Result
}

func (n *recordingNode) Name() string { return n.name }

func (n *recordingNode) Run(_ context.Context, s *State) (Result, error) {
	n.runs++
	if n.res != nil {
		return n.res(s), nil
	}
	return NewResult(), nil
}

func linearSchema() Schema {
	return Schema{
		"task_id": {Class: ClassInput},
		"a_out":   {Class: ClassPhaseOutput, Owner: "a"},
		"b_out":   {Class: ClassPhaseOutput, Owner: "b"},
		"final":   {Class: ClassFinalOutput, Owner: "end"},
	}
}

func buildLinearGraph(t *testing.T, a, b, end Node) *Graph {
	t.Helper()
	g := NewGraph("test", "end")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	require.NoError(t, g.AddNode(end))
	return g
}

func TestRun_LinearOrder(t *testing.T) {
	a := &recordingNode{name: "a", res: func(*State) Result { return NewResult().Set("a_out", "A") }}
	b := &recordingNode{name: "b", res: func(*State) Result { return NewResult().Set("b_out", "B") }}
	end := &recordingNode{name: "end", res: func(s *State) Result {
		return NewResult().Set("final", s.String("a_out")+s.String("b_out"))
	}}
	g := buildLinearGraph(t, a, b, end)

	s, err := NewState(linearSchema(), map[string]any{"task_id": "t1"})
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, 1, a.runs)
	assert.Equal(t, 1, b.runs)
	assert.Equal(t, 1, end.runs)
	assert.Equal(t, "AB", s.String("final"))
	assert.Empty(t, s.Errors())
}

func TestRun_BlockingShortCircuit(t *testing.T) {
	a := &recordingNode{name: "a", res: func(*State) Result {
		return NewResult().
			Set(FieldShouldProceed, false).
			AddError("a: required field missing")
	}}
	b := &recordingNode{name: "b", res: func(*State) Result { return NewResult().Set("b_out", "B") }}
	end := &recordingNode{name: "end"}
	g := buildLinearGraph(t, a, b, end)

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, 1, a.runs)
	assert.Equal(t, 0, b.runs, "blocked run must skip non-terminal nodes")
	assert.Equal(t, 1, end.runs, "terminal node always runs")
	assert.False(t, s.Has("b_out"), "skipped node's output stays unset")
	assert.Equal(t, "a: required field missing", s.FirstError())
}

func TestRun_NodeErrorDegrades(t *testing.T) {
	a := &recordingNode{name: "a"}
	bErr := NewNodeFunc("b", func(context.Context, *State) (Result, error) {
		return Result{}, errors.New("unexpected phase failure")
	})
	end := &recordingNode{name: "end"}
	g := buildLinearGraph(t, a, bErr, end)

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), s), "phase errors must not abort the run")

	assert.Equal(t, 1, end.runs)
	require.NotEmpty(t, s.Errors())
	assert.Contains(t, s.FirstError(), "unexpected phase failure")
}

func TestRun_RefinementLoopBounded(t *testing.T) {
	const cap = 2

	a := &recordingNode{name: "a"}
	review := &recordingNode{name: "b", res: func(*State) Result {
		// Review never approves.
		return NewResult().Set("b_out", "rejected")
	}}
	end := &recordingNode{name: "end"}
	g := buildLinearGraph(t, a, review, end)

	require.NoError(t, g.AddRouter("b", func(s *State) string {
		if s.Int(FieldIterationCount) < cap {
			s.BumpCounter(FieldIterationCount)
			return "a"
		}
		return "end"
	}))

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, cap+1, a.runs, "refinement target re-runs once per traversal")
	assert.Equal(t, cap+1, review.runs)
	assert.Equal(t, 1, end.runs)
	assert.Equal(t, cap, s.Int(FieldIterationCount))
}

func TestRun_RouterEarlyExit(t *testing.T) {
	a := &recordingNode{name: "a"}
	b := &recordingNode{name: "b"}
	end := &recordingNode{name: "end"}
	g := buildLinearGraph(t, a, b, end)

	require.NoError(t, g.AddRouter("a", func(*State) string { return "end" }))

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, 0, b.runs)
	assert.Equal(t, 1, end.runs)
}

func TestRun_UnknownRouterLabelConsolidates(t *testing.T) {
	a := &recordingNode{name: "a"}
	b := &recordingNode{name: "b"}
	end := &recordingNode{name: "end"}
	g := buildLinearGraph(t, a, b, end)

	require.NoError(t, g.AddRouter("a", func(*State) string { return "nonexistent" }))

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), s))

	assert.Equal(t, 0, b.runs)
	assert.Equal(t, 1, end.runs)
	assert.Contains(t, s.FirstError(), "unknown node")
}

func TestRun_StepBudget(t *testing.T) {
	a := &recordingNode{name: "a"}
	b := &recordingNode{name: "b"}
	end := &recordingNode{name: "end"}
	g := NewGraph("test", "end", WithMaxSteps(5))
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	require.NoError(t, g.AddNode(end))

	// Buggy router without a counter check.
	require.NoError(t, g.AddRouter("b", func(*State) string { return "a" }))

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	err = g.Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrStepBudgetExceeded)
}

func TestRun_ContextCancellation(t *testing.T) {
	a := &recordingNode{name: "a"}
	b := &recordingNode{name: "b"}
	end := &recordingNode{name: "end"}
	g := buildLinearGraph(t, a, b, end)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	err = g.Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.runs)
}

func TestRun_MissingTerminal(t *testing.T) {
	g := NewGraph("test", "end")
	require.NoError(t, g.AddNode(&recordingNode{name: "a"}))

	s, err := NewState(linearSchema(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, g.Run(context.Background(), s), ErrNoTerminalNode)
}

func TestAddNode_RejectsDuplicates(t *testing.T) {
	g := NewGraph("test", "end")
	require.NoError(t, g.AddNode(&recordingNode{name: "a"}))
	assert.ErrorIs(t, g.AddNode(&recordingNode{name: "a"}), ErrDuplicateNode)
}
