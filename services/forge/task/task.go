// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package task loads coding task definitions from JSON or YAML files.
// A task carries the function contract the pipelines implement against;
// batch runs load a whole directory of them.
package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Task is one coding problem.
type Task struct {
	// ID identifies the task. The "task_id" key is accepted as an
	// alias in source files.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Signature is the Python function signature to implement.
	Signature string `json:"signature" yaml:"signature" validate:"required"`

	// Docstring describes the expected behavior.
	Docstring string `json:"docstring" yaml:"docstring" validate:"required"`

	// Examples optionally lists input/output examples as free text.
	Examples []string `json:"examples,omitempty" yaml:"examples,omitempty"`

	// Difficulty is an optional label such as "easy" or "hard".
	Difficulty string `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// rawTask tolerates the task_id alias before validation.
type rawTask struct {
	Task   `yaml:",inline"`
	TaskID string `json:"task_id" yaml:"task_id"`
}

var validate = validator.New()

// Load reads and validates one task file, format chosen by extension
// (.json, .yaml, .yml).
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file %s: %w", path, err)
	}

	var raw rawTask
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported task file extension %q", ext)
	}

	t := raw.Task
	if t.ID == "" {
		t.ID = raw.TaskID
	}
	if err := validate.Struct(&t); err != nil {
		return nil, fmt.Errorf("invalid task file %s: %w", path, err)
	}
	return &t, nil
}

// LoadDir loads every task file in a directory, sorted by ID. Files
// with unrecognized extensions are skipped; a malformed task file fails
// the whole load so a batch never silently shrinks.
func LoadDir(dir string) ([]*Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read task directory %s: %w", dir, err)
	}

	var tasks []*Task
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		t, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no task files found in %s", dir)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}
