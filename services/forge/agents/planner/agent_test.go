// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianForge/services/forge/config"
	"github.com/AleutianAI/AleutianForge/services/llm"
)

func newTestAgent(client llm.Client) *Agent {
	return New(client, config.Default())
}

// planResponder answers each phase with a minimal valid record and the
// review with the given score and retry phase.
func planResponder(score int, retryPhase string) func(prompt string, params llm.GenerationParams) (string, error) {
	return func(prompt string, params llm.GenerationParams) (string, error) {
		if strings.Contains(prompt, "Review this complete PLAN") {
			status := "needs_revision"
			if score >= 8 {
				status = "approved"
			}
			return `<output>{"completeness_score": ` + itoa(score) + `,
				"issues": [{"severity": "major", "category": "architecture",
				"description": "missing overflow handling", "recommendation": "use safe midpoint"}],
				"approval_status": "` + status + `",
				"retry_phase": "` + retryPhase + `",
				"summary": "review summary"}</output>`, nil
		}
		return `<output>{"intent": "solve the task", "task_type": "algorithm",
			"components": [{"name": "main", "responsibility": "solve"}],
			"functional": [{"id": 1}]}</output>`, nil
	}
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestCreatePlan_Approved(t *testing.T) {
	mock := llm.NewMockClient().SetResponseFunc(planResponder(9, "none"))
	agent := newTestAgent(mock)

	res, err := agent.CreatePlan(context.Background(), Request{
		TaskID:      "t1",
		UserRequest: "implement binary search",
	})
	require.NoError(t, err)

	assert.True(t, res.Approved)
	assert.Equal(t, 0, res.Iterations)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "t1", res.Plan.String("task_id"))
	assert.Equal(t, "implement binary search", res.Plan.String("user_request"))
	assert.NotNil(t, res.Plan.Map("intent"))
	assert.NotNil(t, res.Plan.Map("architecture"))
	assert.True(t, res.Plan.Bool("approved"))

	// One call per phase, no refinement.
	assert.Equal(t, 5, mock.CallCount())
}

func TestCreatePlan_RefinementLoop(t *testing.T) {
	// Scenario: review scores 6 every time, targeting architecture.
	mock := llm.NewMockClient().SetResponseFunc(planResponder(6, "architecture_design"))
	agent := newTestAgent(mock)

	res, err := agent.CreatePlan(context.Background(), Request{
		TaskID:      "t2",
		UserRequest: "implement binary search",
	})
	require.NoError(t, err)

	assert.False(t, res.Approved, "score below threshold never approves")
	assert.Equal(t, 2, res.Iterations, "loop is capped at two traversals")
	assert.NotEmpty(t, res.Plan, "best-effort plan is still consolidated")
	assert.False(t, res.Plan.Bool("approved"))

	// Count per-phase calls via the system prompt each phase carries.
	counts := map[string]int{}
	for _, call := range mock.Calls() {
		counts[call.Params.System]++
	}
	assert.Equal(t, 1, counts[intentSystem], "intent runs once, refinement targets architecture")
	assert.Equal(t, 1, counts[requirementsSystem])
	assert.Equal(t, 3, counts[architectureSystem], "initial run plus two refinements")
	assert.Equal(t, 3, counts[implementationSystem])
	assert.Equal(t, 3, counts[reviewSystem])
}

func TestCreatePlan_RefinementInjectsReviewIssues(t *testing.T) {
	mock := llm.NewMockClient().SetResponseFunc(planResponder(6, "architecture_design"))
	agent := newTestAgent(mock)

	_, err := agent.CreatePlan(context.Background(), Request{TaskID: "t3", UserRequest: "sort"})
	require.NoError(t, err)

	var refinedArchPrompts []string
	for _, call := range mock.Calls() {
		if call.Params.System == architectureSystem && strings.Contains(call.Prompt, "Quality Review Feedback") {
			refinedArchPrompts = append(refinedArchPrompts, call.Prompt)
		}
	}
	require.Len(t, refinedArchPrompts, 2, "both refinement re-runs carry the issue list")
	assert.Contains(t, refinedArchPrompts[0], "missing overflow handling")
}

func TestCreatePlan_InvalidRetryPhaseDefaultsToArchitecture(t *testing.T) {
	mock := llm.NewMockClient().SetResponseFunc(planResponder(6, "nonsense_phase"))
	agent := newTestAgent(mock)

	res, err := agent.CreatePlan(context.Background(), Request{TaskID: "t4", UserRequest: "sort"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)

	counts := map[string]int{}
	for _, call := range mock.Calls() {
		counts[call.Params.System]++
	}
	assert.Equal(t, 3, counts[architectureSystem], "invalid retry target falls back to architecture")
}

func TestCreatePlan_DegradesOnLLMFailure(t *testing.T) {
	mock := llm.NewMockClient().SetError(llm.ErrUnavailable)
	agent := newTestAgent(mock)

	res, err := agent.CreatePlan(context.Background(), Request{TaskID: "t5", UserRequest: "sort"})
	require.NoError(t, err, "phase failures degrade, they never abort the run")

	assert.False(t, res.Approved)
	assert.NotEmpty(t, res.Errors)
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, "t5", res.Plan.String("task_id"), "consolidation still assembles a plan")
}

func TestCreatePlan_GeneratesTaskID(t *testing.T) {
	mock := llm.NewMockClient().SetResponseFunc(planResponder(9, "none"))
	agent := newTestAgent(mock)

	res, err := agent.CreatePlan(context.Background(), Request{UserRequest: "sort"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.TaskID, "task_"))
}
