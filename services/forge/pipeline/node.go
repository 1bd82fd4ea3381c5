// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "context"

// Result is the partial update a node returns. Fields merge into the
// state shallowly, last write wins. Errs append to the run's error log.
type Result struct {
	Fields map[string]any
	Errs   []string
}

// NewResult returns an empty Result.
func NewResult() Result {
	return Result{Fields: make(map[string]any)}
}

// Set records a field write and returns the Result for chaining.
func (r Result) Set(key string, value any) Result {
	r.Fields[key] = value
	return r
}

// AddError appends an error log entry and returns the Result.
func (r Result) AddError(msg string) Result {
	r.Errs = append(r.Errs, msg)
	return r
}

// Node is one reasoning phase.
//
// Contract: Run may read any state field but must tolerate absent
// optional fields. It must not mutate the state directly; all writes go
// through the returned Result. A node that cannot produce its primary
// output returns the documented default for that field plus an error
// log entry. The returned error is reserved for context cancellation;
// every other failure degrades instead of erroring.
type Node interface {
	Name() string
	Run(ctx context.Context, s *State) (Result, error)
}

// NodeFunc adapts a function to the Node interface. Handy for terse
// consolidation phases and for tests.
type NodeFunc struct {
	name string
	fn   func(ctx context.Context, s *State) (Result, error)
}

// NewNodeFunc wraps fn as a Node with the given name.
func NewNodeFunc(name string, fn func(ctx context.Context, s *State) (Result, error)) NodeFunc {
	return NodeFunc{name: name, fn: fn}
}

// Name implements Node.
func (n NodeFunc) Name() string { return n.name }

// Run implements Node.
func (n NodeFunc) Run(ctx context.Context, s *State) (Result, error) {
	return n.fn(ctx, s)
}

// RouterFunc decides the next node after its attached node runs. It
// returns a node name, or "" to continue to the next node in order.
// Routers that re-enter an earlier node must bump a counter in the
// state and check it against a cap before returning the retry label.
type RouterFunc func(s *State) string
