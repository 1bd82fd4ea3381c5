// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "errors"

var (
	// ErrFieldNotRegistered indicates a write to a field absent from the
	// state schema.
	ErrFieldNotRegistered = errors.New("field not registered in state schema")

	// ErrOwnershipViolation indicates a node wrote a phase-output field
	// it does not own.
	ErrOwnershipViolation = errors.New("field owned by another node")

	// ErrImmutableField indicates a write to an input field after
	// construction.
	ErrImmutableField = errors.New("input field is immutable after construction")

	// ErrUnknownNode indicates a router returned a label that is not a
	// registered node name.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode indicates the same node name was added twice.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrNoTerminalNode indicates the graph was built without a terminal
	// consolidation node.
	ErrNoTerminalNode = errors.New("graph has no terminal node")

	// ErrStepBudgetExceeded indicates the stepping loop hit its hard
	// ceiling. Routing caps should make this unreachable; it exists so
	// the engine provably terminates even under a routing bug.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
)
