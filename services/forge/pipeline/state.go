// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline executes a directed graph of reasoning phases over a
// single shared state record. The graph is plain data, a node list plus
// a routing table, stepped by a flat loop with a hard iteration ceiling.
// There is no framework underneath; every cycle is bounded by a counter
// in the state, so a run always terminates.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianForge/services/forge/parse"
)

// FieldClass partitions state fields by who may write them and when.
type FieldClass int

const (
	// ClassInput fields are set once at construction and read-only after.
	ClassInput FieldClass = iota

	// ClassPhaseOutput fields are written only by their owning node.
	// The owner may rewrite its field on a refinement re-entry.
	ClassPhaseOutput

	// ClassControl fields (should_proceed, counters, approval flags) are
	// shared; any node or router may write them.
	ClassControl

	// ClassFinalOutput fields are written only by the terminal node.
	ClassFinalOutput
)

// String implements fmt.Stringer.
func (c FieldClass) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassPhaseOutput:
		return "phase-output"
	case ClassControl:
		return "control"
	case ClassFinalOutput:
		return "final-output"
	default:
		return "unknown"
	}
}

// FieldSpec declares one state field: its mutability class and, for
// phase-output and final-output fields, the node that owns it.
type FieldSpec struct {
	Class FieldClass
	Owner string
}

// Schema maps field names to their specs. A pipeline declares its whole
// state shape up front; writes to undeclared fields are rejected at the
// merge boundary.
type Schema map[string]FieldSpec

// Shared control field names used by every pipeline.
const (
	FieldShouldProceed  = "should_proceed"
	FieldIterationCount = "iteration_count"
)

// baseControlFields are registered in every schema automatically.
func baseControlFields() Schema {
	return Schema{
		FieldShouldProceed:  {Class: ClassControl},
		FieldIterationCount: {Class: ClassControl},
	}
}

// State is the record threaded through one pipeline run. It is created
// fresh per invocation and discarded when the run's result has been
// extracted.
//
// Thread Safety: State is NOT safe for concurrent use. A run has exactly
// one accessor, the stepping loop; separate runs share nothing.
type State struct {
	schema Schema
	fields map[string]any
	errs   []string
}

// NewState builds a State from a schema and the caller's input fields.
//
// Inputs:
//
//	schema - The pipeline's field declarations. The shared control
//	         fields are added automatically.
//	inputs - Initial values. Every key must be declared ClassInput.
//
// Outputs:
//
//	*State - The initialized state with should_proceed=true and
//	         iteration_count=0.
//	error - Non-nil if an input key is undeclared or not an input field.
func NewState(schema Schema, inputs map[string]any) (*State, error) {
	full := make(Schema, len(schema)+2)
	for name, spec := range baseControlFields() {
		full[name] = spec
	}
	for name, spec := range schema {
		full[name] = spec
	}

	s := &State{
		schema: full,
		fields: map[string]any{
			FieldShouldProceed:  true,
			FieldIterationCount: 0,
		},
	}
	for name, value := range inputs {
		spec, ok := full[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotRegistered, name)
		}
		if spec.Class != ClassInput {
			return nil, fmt.Errorf("initial value for non-input field %q (%s)", name, spec.Class)
		}
		s.fields[name] = value
	}
	return s, nil
}

// apply merges a node's partial update, enforcing field ownership.
// Valid fields are written; each violation is skipped and reported on
// the error log so the run still resolves to a terminal state. Keys are
// processed in sorted order to keep the log deterministic.
func (s *State) apply(nodeName string, res Result) {
	keys := make([]string, 0, len(res.Fields))
	for k := range res.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := s.checkWrite(nodeName, key); err != nil {
			s.AddError(fmt.Sprintf("%s: rejected write to %q: %v", nodeName, key, err))
			continue
		}
		s.fields[key] = res.Fields[key]
	}
	for _, e := range res.Errs {
		s.AddError(e)
	}
}

// checkWrite validates one field write against the schema.
func (s *State) checkWrite(nodeName, key string) error {
	spec, ok := s.schema[key]
	if !ok {
		return ErrFieldNotRegistered
	}
	switch spec.Class {
	case ClassInput:
		return ErrImmutableField
	case ClassControl:
		return nil
	case ClassPhaseOutput, ClassFinalOutput:
		if spec.Owner != nodeName {
			return fmt.Errorf("%w: %q belongs to %q", ErrOwnershipViolation, key, spec.Owner)
		}
		return nil
	default:
		return fmt.Errorf("unknown field class %d", spec.Class)
	}
}

// SetControl writes a control field directly. Routers and the engine
// use this for counters and flow flags; it rejects non-control fields.
func (s *State) SetControl(key string, value any) error {
	spec, ok := s.schema[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotRegistered, key)
	}
	if spec.Class != ClassControl {
		return fmt.Errorf("%q is %s, not control", key, spec.Class)
	}
	s.fields[key] = value
	return nil
}

// BumpCounter increments an integer control field and returns the new
// value. Missing counters start at zero.
func (s *State) BumpCounter(key string) int {
	n := s.Int(key) + 1
	// Counters are always declared control fields; a failure here is a
	// schema bug surfaced by tests.
	_ = s.SetControl(key, n)
	return n
}

// AddError appends an entry to the run's ordered error log. The log is
// append-only and never truncated.
func (s *State) AddError(msg string) {
	s.errs = append(s.errs, msg)
}

// Errors returns a copy of the error log.
func (s *State) Errors() []string {
	out := make([]string, len(s.errs))
	copy(out, s.errs)
	return out
}

// FirstError returns the earliest logged error, or "" if none. Only
// this entry is elevated to the caller's top-level error field.
func (s *State) FirstError() string {
	if len(s.errs) == 0 {
		return ""
	}
	return s.errs[0]
}

// ShouldProceed reports the blocking flag. Missing or mistyped values
// read as true so advisory pipelines run unhindered.
func (s *State) ShouldProceed() bool {
	v, ok := s.fields[FieldShouldProceed].(bool)
	if !ok {
		return true
	}
	return v
}

// Has reports whether a field currently holds a value.
func (s *State) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Get returns the raw value at key.
func (s *State) Get(key string) any {
	return s.fields[key]
}

// String returns the field as a string, or "" when absent or mistyped.
func (s *State) String(key string) string {
	if v, ok := s.fields[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the field as an int, tolerating float64 from decoded JSON.
func (s *State) Int(key string) int {
	switch v := s.fields[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the field as a float64.
func (s *State) Float(key string) float64 {
	switch v := s.fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns the field as a bool, or false when absent or mistyped.
func (s *State) Bool(key string) bool {
	if v, ok := s.fields[key].(bool); ok {
		return v
	}
	return false
}

// StringSlice returns the field as a []string, or nil.
func (s *State) StringSlice(key string) []string {
	switch v := s.fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Record returns the field as a parsed record, or nil.
func (s *State) Record(key string) parse.Record {
	switch v := s.fields[key].(type) {
	case parse.Record:
		return v
	case map[string]any:
		return parse.Record(v)
	}
	return nil
}
