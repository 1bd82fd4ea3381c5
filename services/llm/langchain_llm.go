// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChainClient adapts any langchaingo llms.Model to the Client
// interface. This gives access to the provider matrix langchaingo
// maintains without each provider needing a bespoke client here.
type LangChainClient struct {
	model     llms.Model
	provider  string
	modelName string
}

// NewLangChainOllama creates a LangChainClient backed by the langchaingo
// Ollama integration.
//
// Inputs:
//
//	serverURL - The Ollama server address.
//	modelName - The model tag to run.
//
// Outputs:
//
//	*LangChainClient - The configured client.
//	error - Non-nil if the langchaingo backend could not be constructed.
func NewLangChainOllama(serverURL, modelName string) (*LangChainClient, error) {
	model, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchaingo ollama backend: %w", err)
	}
	slog.Info("Initializing langchaingo Ollama client",
		slog.String("server_url", serverURL),
		slog.String("model", modelName),
	)
	return &LangChainClient{model: model, provider: "langchain-ollama", modelName: modelName}, nil
}

// NewLangChainClient wraps an already-constructed langchaingo model.
func NewLangChainClient(model llms.Model, provider, modelName string) *LangChainClient {
	return &LangChainClient{model: model, provider: provider, modelName: modelName}
}

// Name implements Client.
func (c *LangChainClient) Name() string { return c.provider }

// Model implements Client.
func (c *LangChainClient) Model() string { return c.modelName }

// Generate implements Client.
func (c *LangChainClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if params.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, params.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	opts := make([]llms.CallOption, 0, 6)
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.TopK != nil {
		opts = append(opts, llms.WithTopK(*params.TopK))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.RepeatPenalty != nil {
		opts = append(opts, llms.WithRepetitionPenalty(float64(*params.RepeatPenalty)))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		slog.Error("langchaingo call failed", "provider", c.provider, "error", err)
		return "", fmt.Errorf("langchaingo %s call failed: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
