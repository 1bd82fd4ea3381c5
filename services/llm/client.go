// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the LLM client boundary for the Forge pipelines.
//
// Every reasoning phase funnels its model calls through the Client
// interface defined here. Implementations exist for Ollama (the default
// local backend), OpenAI, and langchaingo-wrapped providers. A MockClient
// supports deterministic testing of phase and pipeline behavior.
//
// Clients return the raw response text or an error; they never interpret
// model output. Interpretation (JSON extraction, verdict matching) belongs
// to the callers in services/forge.
package llm

import (
	"context"
	"errors"
)

// GenerationParams carries sampling options for a single generation call.
// Pointer fields distinguish "not set" from zero values; backends apply
// their own defaults for unset fields.
type GenerationParams struct {
	// System is the system prompt establishing the agent identity.
	// Empty means the backend default.
	System string `json:"system,omitempty"`

	Temperature   *float32 `json:"temperature,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

// Client defines the standard interface for any LLM backend.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Generate sends a prompt and returns the raw response text.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout.
	//   prompt - The user prompt.
	//   params - Sampling options for this call.
	//
	// Outputs:
	//   string - The raw model output.
	//   error - Non-nil if the backend failed after retries.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Name returns the provider name (e.g. "ollama", "openai").
	Name() string

	// Model returns the model identifier in use.
	Model() string
}

// Sentinel errors for the llm package.
var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("llm backend unavailable")

	// ErrEmptyResponse indicates the backend returned no content.
	ErrEmptyResponse = errors.New("llm returned empty response")
)

// Float32Ptr returns a pointer to v. Convenience for GenerationParams.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr returns a pointer to v. Convenience for GenerationParams.
func IntPtr(v int) *int { return &v }
