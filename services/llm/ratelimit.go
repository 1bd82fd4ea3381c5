// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token-bucket rate limiter.
// Batch runs fan many pipelines at one local model; the limiter keeps
// the backend from being flooded with concurrent generations.
//
// Thread Safety: RateLimitedClient is safe for concurrent use.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner, allowing callsPerSecond sustained
// calls with the given burst.
func NewRateLimitedClient(inner Client, callsPerSecond float64, burst int) *RateLimitedClient {
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst),
	}
}

// Name implements Client.
func (c *RateLimitedClient) Name() string { return c.inner.Name() }

// Model implements Client.
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Generate implements Client. It blocks until the limiter grants a slot
// or the context is canceled.
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Generate(ctx, prompt, params)
}
