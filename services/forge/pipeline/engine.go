// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("forge.pipeline")

// Graph is a fixed, ordered list of nodes plus a routing table. The
// node order is the default execution order; routers attached to
// specific nodes override it, including jumps back to an earlier node
// for bounded refinement cycles.
type Graph struct {
	name     string
	nodes    []Node
	index    map[string]int
	routers  map[string]RouterFunc
	terminal string
	maxSteps int
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithMaxSteps overrides the stepping-loop hard ceiling. The default,
// 4*len(nodes)+8, comfortably covers every bounded refinement cycle.
func WithMaxSteps(n int) GraphOption {
	return func(g *Graph) {
		g.maxSteps = n
	}
}

// NewGraph creates an empty graph. terminal names the consolidation
// node; it must be added before Run is called.
func NewGraph(name, terminal string, opts ...GraphOption) *Graph {
	g := &Graph{
		name:     name,
		index:    make(map[string]int),
		routers:  make(map[string]RouterFunc),
		terminal: terminal,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the pipeline name.
func (g *Graph) Name() string { return g.name }

// AddNode appends a node to the execution order.
func (g *Graph) AddNode(n Node) error {
	if _, exists := g.index[n.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, n.Name())
	}
	g.index[n.Name()] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// AddRouter attaches a conditional edge evaluated right after nodeName
// runs. The router returns the next node's name, or "" for the default
// order.
func (g *Graph) AddRouter(nodeName string, r RouterFunc) error {
	if _, exists := g.index[nodeName]; !exists {
		return fmt.Errorf("%w: %q", ErrUnknownNode, nodeName)
	}
	g.routers[nodeName] = r
	return nil
}

// Run steps the graph over s until the terminal node completes.
//
// Description:
//
//	Nodes execute strictly sequentially. After each node, the blocking
//	flag is checked: should_proceed=false skips every remaining
//	non-terminal node. A router may redirect the walk, including
//	backward for a refinement cycle; routers own the counter/cap
//	discipline, and the step ceiling backstops them. Node failures
//	degrade onto the error log; the only errors Run returns are context
//	cancellation, a malformed graph, and the step ceiling.
//
// Thread Safety: Run is single-threaded over s. Distinct runs with
// distinct states may proceed in parallel.
func (g *Graph) Run(ctx context.Context, s *State) error {
	terminalIdx, ok := g.index[g.terminal]
	if !ok {
		return fmt.Errorf("%w: terminal %q", ErrNoTerminalNode, g.terminal)
	}
	maxSteps := g.maxSteps
	if maxSteps <= 0 {
		maxSteps = 4*len(g.nodes) + 8
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.name", g.name))

	slog.Info("Starting pipeline run",
		slog.String("pipeline", g.name),
		slog.Int("nodes", len(g.nodes)),
	)

	idx := 0
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		steps++
		if steps > maxSteps {
			s.AddError(fmt.Sprintf("pipeline %s: step budget %d exceeded", g.name, maxSteps))
			span.SetStatus(codes.Error, ErrStepBudgetExceeded.Error())
			return fmt.Errorf("%w: %d steps in pipeline %s", ErrStepBudgetExceeded, maxSteps, g.name)
		}

		node := g.nodes[idx]

		// Blocking short-circuit: jump straight to consolidation.
		if !s.ShouldProceed() && idx != terminalIdx {
			slog.Warn("Pipeline blocked, jumping to terminal node",
				slog.String("pipeline", g.name),
				slog.String("skipped_from", node.Name()),
				slog.String("terminal", g.terminal),
			)
			idx = terminalIdx
			continue
		}

		if err := g.runNode(ctx, node, s, steps); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		if idx == terminalIdx {
			break
		}

		nextIdx, err := g.nextIndex(node, s, idx, terminalIdx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		idx = nextIdx
	}

	outcome := "ok"
	switch {
	case !s.ShouldProceed():
		outcome = "blocked"
	case len(s.Errors()) > 0:
		outcome = "degraded"
	}
	pipelineRuns.WithLabelValues(g.name, outcome).Inc()
	span.SetAttributes(
		attribute.String("pipeline.outcome", outcome),
		attribute.Int("pipeline.steps", steps),
		attribute.Int("pipeline.errors", len(s.Errors())),
	)
	slog.Info("Pipeline run complete",
		slog.String("pipeline", g.name),
		slog.String("outcome", outcome),
		slog.Int("steps", steps),
		slog.Int("errors", len(s.Errors())),
	)
	return nil
}

// runNode executes one node and merges its result. A node error other
// than cancellation degrades onto the error log.
func (g *Graph) runNode(ctx context.Context, node Node, s *State, step int) error {
	nodeCtx, span := tracer.Start(ctx, "pipeline.node."+node.Name())
	defer span.End()

	slog.Info("Executing node",
		slog.String("pipeline", g.name),
		slog.String("node", node.Name()),
		slog.Int("step", step),
	)

	start := time.Now()
	res, err := node.Run(nodeCtx, s)
	nodeDuration.WithLabelValues(g.name, node.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Nodes are expected to degrade rather than error; honor the
		// contract on their behalf if one slips through.
		span.RecordError(err)
		s.AddError(fmt.Sprintf("%s: %v", node.Name(), err))
		phaseErrors.WithLabelValues(g.name, node.Name()).Inc()
		return nil
	}

	errsBefore := len(s.Errors())
	s.apply(node.Name(), res)
	if appended := len(s.Errors()) - errsBefore; appended > 0 {
		phaseErrors.WithLabelValues(g.name, node.Name()).Add(float64(appended))
	}
	return nil
}

// nextIndex resolves the node to execute after node, consulting its
// router if one is attached. An unknown router label degrades the run
// to the terminal node rather than failing it.
func (g *Graph) nextIndex(node Node, s *State, idx, terminalIdx int) (int, error) {
	if router, ok := g.routers[node.Name()]; ok {
		label := router(s)
		if label != "" {
			target, known := g.index[label]
			if !known {
				s.AddError(fmt.Sprintf("%s: router returned unknown node %q", node.Name(), label))
				slog.Error("Router returned unknown node, consolidating",
					slog.String("pipeline", g.name),
					slog.String("node", node.Name()),
					slog.String("label", label),
				)
				return terminalIdx, nil
			}
			if target <= idx {
				refinementLoops.WithLabelValues(g.name, label).Inc()
				slog.Info("Refinement loop",
					slog.String("pipeline", g.name),
					slog.String("from", node.Name()),
					slog.String("target", label),
					slog.Int("iteration", s.Int(FieldIterationCount)),
				)
			}
			return target, nil
		}
	}
	if idx+1 >= len(g.nodes) {
		// Node list exhausted without reaching the terminal; only
		// possible when the terminal is not last in order.
		return terminalIdx, nil
	}
	return idx + 1, nil
}
