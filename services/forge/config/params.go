// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import "github.com/AleutianAI/AleutianForge/services/llm"

// Params converts the configured generation defaults into the
// per-call parameter struct, with the given system prompt attached.
func (g Generation) Params(system string) llm.GenerationParams {
	return llm.GenerationParams{
		System:        system,
		Temperature:   llm.Float32Ptr(g.Temperature),
		TopK:          llm.IntPtr(g.TopK),
		TopP:          llm.Float32Ptr(g.TopP),
		MaxTokens:     llm.IntPtr(g.MaxTokens),
		RepeatPenalty: llm.Float32Ptr(g.RepeatPenalty),
	}
}
