// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"sync"
	"time"
)

// MockClient is a mock LLM client for testing.
//
// Responses can be queued in order, generated dynamically from the
// prompt, or forced to fail. All calls are recorded for assertions.
//
// Thread Safety: MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	name  string
	model string

	// responses are queued responses returned in order.
	responses []string

	// defaultResponse is returned when no queued responses remain.
	defaultResponse string

	// responseFunc allows dynamic response generation. Takes precedence
	// over queued responses when set.
	responseFunc func(prompt string, params GenerationParams) (string, error)

	// errorToReturn causes Generate to return this error.
	errorToReturn error

	// delay adds artificial latency to responses.
	delay time.Duration

	// calls records all calls made to Generate.
	calls []MockCall
}

// MockCall records a call to Generate.
type MockCall struct {
	Prompt    string
	Params    GenerationParams
	Timestamp time.Time
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{
		name:  "mock",
		model: "mock-model",
	}
}

// QueueResponse appends a response to the queue.
func (m *MockClient) QueueResponse(text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, text)
	return m
}

// SetDefaultResponse sets the response returned when the queue is empty.
func (m *MockClient) SetDefaultResponse(text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResponse = text
	return m
}

// SetResponseFunc sets a dynamic response generator.
func (m *MockClient) SetResponseFunc(fn func(prompt string, params GenerationParams) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFunc = fn
	return m
}

// SetError forces Generate to return err on every call.
func (m *MockClient) SetError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorToReturn = err
	return m
}

// SetDelay adds artificial latency to each call.
func (m *MockClient) SetDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns a copy of all recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Generate calls made.
func (m *MockClient) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// Name implements Client.
func (m *MockClient) Name() string { return m.name }

// Model implements Client.
func (m *MockClient) Model() string { return m.model }

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Params: params, Timestamp: time.Now()})
	fn := m.responseFunc
	errToReturn := m.errorToReturn
	delay := m.delay

	var queued string
	var hasQueued bool
	if fn == nil && errToReturn == nil && len(m.responses) > 0 {
		queued = m.responses[0]
		m.responses = m.responses[1:]
		hasQueued = true
	}
	defaultResp := m.defaultResponse
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if errToReturn != nil {
		return "", errToReturn
	}
	if fn != nil {
		return fn(prompt, params)
	}
	if hasQueued {
		return queued, nil
	}
	if defaultResp != "" {
		return defaultResp, nil
	}
	return "", ErrEmptyResponse
}
