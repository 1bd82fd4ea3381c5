// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "t1.json", `{
		"id": "binary_search",
		"signature": "def binary_search(arr: List[int], target: int) -> int:",
		"docstring": "Return the index of target, -1 when absent.",
		"examples": ["binary_search([1,2,3], 2) == 1"],
		"difficulty": "easy"
	}`)

	task, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "binary_search", task.ID)
	assert.Equal(t, "easy", task.Difficulty)
	assert.Len(t, task.Examples, 1)
}

func TestLoad_YAMLWithTaskIDAlias(t *testing.T) {
	path := writeFile(t, t.TempDir(), "t1.yaml", `
task_id: fib
signature: "def fib(n: int) -> int:"
docstring: Return the nth Fibonacci number.
`)

	task, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fib", task.ID, "task_id is accepted as an alias for id")
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", `{"id": "x", "signature": "def x():"}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Docstring")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "t.txt", "whatever")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported task file extension")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"id": "b", "signature": "def b():", "docstring": "B."}`)
	writeFile(t, dir, "a.yaml", "id: a\nsignature: 'def a():'\ndocstring: A.\n")
	writeFile(t, dir, "notes.txt", "ignored")

	tasks, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID, "tasks come back sorted by ID")
	assert.Equal(t, "b", tasks[1].ID)
}

func TestLoadDir_FailsOnMalformedTask(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", `{"id": "g", "signature": "def g():", "docstring": "G."}`)
	writeFile(t, dir, "bad.json", `{"id": "bad"}`)

	_, err := LoadDir(dir)
	assert.Error(t, err, "one malformed task fails the whole load")
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no task files found")
}
