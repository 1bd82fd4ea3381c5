// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianForge/services/forge/task"
)

func makeTasks(n int) []*task.Task {
	tasks := make([]*task.Task, n)
	for i := range tasks {
		tasks[i] = &task.Task{
			ID:        fmt.Sprintf("task_%02d", i),
			Signature: "def f():",
			Docstring: "Do nothing.",
		}
	}
	return tasks
}

func TestRunner_RunsAllTasks(t *testing.T) {
	var ran atomic.Int32
	run := func(_ context.Context, tk *task.Task) *Outcome {
		ran.Add(1)
		return &Outcome{TaskID: tk.ID, Code: "pass", Success: true}
	}
	runner := NewRunner(run, nil, 3)

	outcomes, summary, err := runner.Run(context.Background(), makeTasks(7))
	require.NoError(t, err)

	assert.Equal(t, int32(7), ran.Load())
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	require.Len(t, outcomes, 7)
	assert.Equal(t, "task_03", outcomes[3].TaskID, "outcomes keep task order")
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	run := func(_ context.Context, tk *task.Task) *Outcome {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return &Outcome{TaskID: tk.ID, Success: true}
	}
	runner := NewRunner(run, nil, 2)

	_, _, err := runner.Run(context.Background(), makeTasks(8))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestRunner_FailedTaskDoesNotStopBatch(t *testing.T) {
	run := func(_ context.Context, tk *task.Task) *Outcome {
		if tk.ID == "task_02" {
			return &Outcome{TaskID: tk.ID, Errors: []string{"model unavailable"}}
		}
		return &Outcome{TaskID: tk.ID, Success: true}
	}
	runner := NewRunner(run, nil, 2)

	outcomes, summary, err := runner.Run(context.Background(), makeTasks(5))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, outcomes[2].Success)
}

func TestRunner_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	run := func(ctx context.Context, tk *task.Task) *Outcome {
		cancel()
		<-ctx.Done()
		return &Outcome{TaskID: tk.ID}
	}
	runner := NewRunner(run, nil, 1)

	_, _, err := runner.Run(ctx, makeTasks(4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_ArchivesAndResumes(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	var ran atomic.Int32
	run := func(_ context.Context, tk *task.Task) *Outcome {
		ran.Add(1)
		return &Outcome{TaskID: tk.ID, Code: "pass", Success: true}
	}

	tasks := makeTasks(3)
	_, _, err = NewRunner(run, store, 2).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ran.Load())

	ids, err := store.List()
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	// A resumed run skips everything already archived.
	outcomes, summary, err := NewRunner(run, store, 2, WithResume()).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ran.Load(), "no task ran twice")
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, "pass", outcomes[0].Code, "skipped outcomes come from the archive")
}

func TestRunner_ResumeLookupFailureDrainsWorkers(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	var startOnce sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Int32
	run := func(_ context.Context, tk *task.Task) *Outcome {
		startOnce.Do(func() { close(started) })
		<-release
		finished.Add(1)
		return &Outcome{TaskID: tk.ID, Success: true}
	}

	// Close the store while the first task is in flight; the next
	// resume lookup then fails against the closed database.
	go func() {
		<-started
		store.Close()
		close(release)
	}()

	_, _, err = NewRunner(run, store, 1, WithResume()).Run(context.Background(), makeTasks(2))
	require.Error(t, err)
	assert.GreaterOrEqual(t, finished.Load(), int32(1),
		"in-flight work drained before Run returned")
}

func TestStore_RoundTrip(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := &Outcome{TaskID: "t1", Code: "def f(): pass", Success: true, Errors: []string{"w"}}
	require.NoError(t, store.Put(want))

	got, ok, err := store.Get("t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
