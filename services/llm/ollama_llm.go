// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("forge.llm.ollama")

// Default sampling values applied when GenerationParams leaves a field unset.
// Generation phases want deterministic output, so temperature defaults to 0.
const (
	defaultTemperature   = float32(0.0)
	defaultTopK          = 20
	defaultTopP          = float32(0.9)
	defaultMaxTokens     = 8192
	defaultRepeatPenalty = float32(1.1)
)

// OllamaClient talks to a local Ollama server over HTTP.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) {
		o.httpClient = c
	}
}

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n int) OllamaOption {
	return func(o *OllamaClient) {
		o.maxRetries = n
	}
}

// WithRetryDelay sets the pause between retry attempts.
func WithRetryDelay(d time.Duration) OllamaOption {
	return func(o *OllamaClient) {
		o.retryDelay = d
	}
}

// NewOllamaClient creates a client for the given base URL and model.
//
// Inputs:
//
//	baseURL - The Ollama server address, e.g. "http://localhost:11434".
//	model - The default model tag, e.g. "qwen2.5-coder:7b-instruct".
//	opts - Optional configuration.
//
// Outputs:
//
//	*OllamaClient - The configured client.
//	error - Non-nil if baseURL or model is empty.
func NewOllamaClient(baseURL, model string, opts ...OllamaOption) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ollama base URL must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model must not be empty")
	}

	c := &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		maxRetries: 2,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	slog.Info("Initializing Ollama client",
		slog.String("base_url", c.baseURL),
		slog.String("model", c.model),
	)
	return c, nil
}

// Name implements Client.
func (o *OllamaClient) Name() string { return "ollama" }

// Model implements Client.
func (o *OllamaClient) Model() string { return o.model }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message   ollamaMessage `json:"message"`
	CreatedAt string        `json:"created_at"`
	Done      bool          `json:"done"`
}

// Generate implements Client.
//
// Description:
//
//	Sends a system+user chat request to /api/chat and returns the
//	assistant message content. Transient failures are retried up to
//	maxRetries times with a fixed delay; the last error is returned
//	if all attempts fail.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.prompt_len", len(prompt)),
	)

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying Ollama call",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, ctx.Err().Error())
				return "", ctx.Err()
			case <-time.After(o.retryDelay):
			}
		}

		text, err := o.chat(ctx, prompt, params)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.response_len", len(text)))
			return text, nil
		}
		lastErr = err
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	slog.Error("Ollama call failed after retries",
		slog.Int("retries", o.maxRetries),
		slog.String("error", lastErr.Error()),
	)
	return "", lastErr
}

// chat performs a single /api/chat round trip.
func (o *OllamaClient) chat(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	messages := make([]ollamaMessage, 0, 2)
	if params.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: params.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt})

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Options:  buildOptions(params),
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request to Ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode Ollama response: %w", err)
	}
	if chatResp.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return chatResp.Message.Content, nil
}

// buildOptions maps GenerationParams onto Ollama's options object,
// filling defaults for unset fields.
func buildOptions(params GenerationParams) map[string]any {
	options := make(map[string]any)

	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	} else {
		options["temperature"] = defaultTemperature
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	} else {
		options["top_k"] = defaultTopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	} else {
		options["top_p"] = defaultTopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	} else {
		options["num_predict"] = defaultMaxTokens
	}
	if params.RepeatPenalty != nil {
		options["repeat_penalty"] = *params.RepeatPenalty
	} else {
		options["repeat_penalty"] = defaultRepeatPenalty
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	return options
}
