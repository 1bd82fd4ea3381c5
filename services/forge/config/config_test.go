// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ollama", cfg.Backend.Type)
	assert.Equal(t, 8, cfg.Policy.ApprovalThreshold)
	assert.Equal(t, 2, cfg.Policy.PlannerMaxIterations)
	assert.Equal(t, 3, cfg.Policy.RefineMaxIterations)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Backend.Model, cfg.Backend.Model)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backend:\n" +
		"  type: ollama\n" +
		"  base_url: http://ollama:11434\n" +
		"  model: llama3.1:8b\n" +
		"policy:\n" +
		"  approval_threshold: 7\n" +
		"  planner_max_iterations: 1\n" +
		"  refine_max_iterations: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", cfg.Backend.Model)
	assert.Equal(t, 7, cfg.Policy.ApprovalThreshold)
	assert.Equal(t, 1, cfg.Policy.PlannerMaxIterations)
	// Untouched sections keep defaults.
	assert.Equal(t, Default().Generation.MaxTokens, cfg.Generation.MaxTokens)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORGE_MODEL", "env-model")
	t.Setenv("OLLAMA_BASE_URL", "http://env-host:11434")
	t.Setenv("FORGE_PORT", "9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Backend.Model)
	assert.Equal(t, "http://env-host:11434", cfg.Backend.BaseURL)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(*Config) {}, false},
		{"bad backend type", func(c *Config) { c.Backend.Type = "magic" }, true},
		{"threshold above ten", func(c *Config) { c.Policy.ApprovalThreshold = 11 }, true},
		{"missing model", func(c *Config) { c.Backend.Model = "" }, true},
		{"zero max tokens", func(c *Config) { c.Generation.MaxTokens = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
