// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds the runtime configuration for forge pipelines:
// model backend, generation defaults, and the policy knobs that gate
// refinement loops. Thresholds and iteration caps are configurable, but
// the defaults are the tuned values and should rarely change.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Policy gates the refinement loops.
type Policy struct {
	// ApprovalThreshold is the minimum quality-review score (out of 10)
	// that approves a plan.
	ApprovalThreshold int `yaml:"approval_threshold" validate:"min=0,max=10"`

	// PlannerMaxIterations caps planner refinement loop traversals.
	PlannerMaxIterations int `yaml:"planner_max_iterations" validate:"min=0,max=10"`

	// RefineMaxIterations caps single-agent self-refinement cycles.
	RefineMaxIterations int `yaml:"refine_max_iterations" validate:"min=0,max=10"`
}

// Generation holds default sampling parameters passed to the model.
type Generation struct {
	Temperature   float32 `yaml:"temperature" validate:"min=0,max=2"`
	TopK          int     `yaml:"top_k" validate:"min=0"`
	TopP          float32 `yaml:"top_p" validate:"min=0,max=1"`
	MaxTokens     int     `yaml:"max_tokens" validate:"min=1"`
	RepeatPenalty float32 `yaml:"repeat_penalty" validate:"min=0"`
}

// Backend selects and addresses the LLM provider.
type Backend struct {
	// Type is "ollama", "openai", or "langchain-ollama".
	Type    string `yaml:"type" validate:"oneof=ollama openai langchain-ollama"`
	BaseURL string `yaml:"base_url" validate:"required_unless=Type openai,omitempty,url"`
	Model   string `yaml:"model" validate:"required"`
}

// Server configures the HTTP API.
type Server struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// Batch configures the batch runner.
type Batch struct {
	// Concurrency bounds simultaneous pipeline runs.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=64"`

	// CallsPerSecond rate-limits LLM calls across the batch. Zero
	// disables limiting.
	CallsPerSecond float64 `yaml:"calls_per_second" validate:"min=0"`

	// StorePath is the on-disk result archive location.
	StorePath string `yaml:"store_path"`
}

// Config is the root configuration record.
type Config struct {
	Backend    Backend    `yaml:"backend"`
	Generation Generation `yaml:"generation"`
	Policy     Policy     `yaml:"policy"`
	Server     Server     `yaml:"server"`
	Batch      Batch      `yaml:"batch"`
}

// Default returns the configuration with tuned default values.
func Default() *Config {
	return &Config{
		Backend: Backend{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5-coder:7b-instruct",
		},
		Generation: Generation{
			Temperature:   0.0,
			TopK:          20,
			TopP:          0.9,
			MaxTokens:     8192,
			RepeatPenalty: 1.1,
		},
		Policy: Policy{
			ApprovalThreshold:    8,
			PlannerMaxIterations: 2,
			RefineMaxIterations:  3,
		},
		Server: Server{Port: 8091},
		Batch: Batch{
			Concurrency:    4,
			CallsPerSecond: 0,
			StorePath:      "forge-results",
		},
	}
}

// Load reads path (YAML), applies environment overrides, and validates.
// A missing file is not an error; defaults plus environment apply.
//
// Inputs:
//
//	path - Config file location, may be "".
//
// Outputs:
//
//	*Config - The effective configuration.
//	error - Non-nil on unreadable file, bad YAML, or failed validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments adjust the backend
// without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORGE_BACKEND"); v != "" {
		cfg.Backend.Type = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("FORGE_MODEL"); v != "" {
		cfg.Backend.Model = v
	}
	if v := os.Getenv("FORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}
