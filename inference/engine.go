//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inference implements the fixed-point iteration that drives the analysers. Each
// iteration runs the statement and method analysers over the methods of a cluster (callees first),
// then the field analyser and then the type analyser, until no slot is delayed any more.
package inference

import (
	"context"
	"fmt"

	"go.uber.org/immutaway/analyser/field"
	"go.uber.org/immutaway/analyser/method"
	"go.uber.org/immutaway/analyser/statement"
	"go.uber.org/immutaway/analyser/typeanalysis"
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/depgraph"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/value"
	"go.uber.org/zap"
)

// Iteration is the record of one iteration, kept when history recording is enabled.
type Iteration struct {
	Index    int
	Progress int
	// Delayed lists the slots still delayed at the end of the iteration.
	Delayed []string
	Events  []analysis.Event
}

// Engine runs the fixed-point computation for one cluster of types. The analyses live in reg,
// whose arena records every resolution; diagnostics go to diags.
type Engine struct {
	prog    *program.Program
	reg     *analysis.Registry
	cluster *depgraph.Cluster
	diags   *diagnostic.Engine
	conf    config.Config
	logger  *zap.Logger

	statements *statement.Analyser
	methods    *method.Analyser
	fields     *field.Analyser
	types      *typeanalysis.Analyser

	// resolved holds the statements whose value was decided in some iteration, keyed by method
	// and index.
	resolved   map[string]bool
	history    []Iteration
	iterations int
}

// NewEngine creates the engine of a cluster. The registry must hold the analyses of exactly the
// types of the cluster.
func NewEngine(prog *program.Program, reg *analysis.Registry, graph *depgraph.Graph, cluster *depgraph.Cluster,
	diags *diagnostic.Engine, conf config.Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		prog:       prog,
		reg:        reg,
		cluster:    cluster,
		diags:      diags,
		conf:       conf,
		logger:     logger,
		statements: statement.New(prog, reg, graph, diags, conf, logger),
		methods:    method.New(prog, reg, graph, diags, logger),
		fields:     field.New(prog, reg, diags, logger),
		types:      typeanalysis.New(prog, reg, graph, diags, logger),
		resolved:   make(map[string]bool),
	}
}

// History returns the recorded iterations; it is empty unless RecordHistory is configured.
func (e *Engine) History() []Iteration { return e.history }

// Iterations returns the number of iterations the last Run performed.
func (e *Engine) Iterations() int { return e.iterations }

// Run iterates until every slot of the cluster holds a value. It fails with an
// *IterationLimitError when the configured cap is reached, and with a *NoProgressError when an
// iteration resolves nothing while delays remain. The context is checked between iterations.
func (e *Engine) Run(ctx context.Context) error {
	limit := e.conf.MaxIterations
	if limit <= 0 {
		limit = config.DefaultMaxIterations
	}
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		before := e.reg.Arena.Resolved()
		events, progress := e.iterate(i)
		e.iterations = i + 1
		progress += e.reg.Arena.Resolved() - before
		delayed := e.reg.Arena.Delayed()
		pending := e.pendingMethods()

		e.logger.Debug("iteration",
			zap.Int("iteration", i),
			zap.Int("progress", progress),
			zap.Int("delays", len(delayed)),
			zap.Int("pendingMethods", pending))
		if e.conf.RecordHistory {
			e.history = append(e.history, Iteration{Index: i, Progress: progress, Delayed: delayed, Events: events})
		}

		if len(delayed) == 0 && pending == 0 {
			return nil
		}
		if progress == 0 {
			return &NoProgressError{Iteration: i, Delayed: delayed}
		}
	}
	return &IterationLimitError{Limit: limit, Delayed: e.reg.Arena.Delayed()}
}

// iterate runs every analyser once and returns the events together with the progress not
// visible in the arena: newly decided statement values and methods that became done.
func (e *Engine) iterate(i int) ([]analysis.Event, int) {
	var events []analysis.Event
	progress := 0
	for _, comp := range e.cluster.Components {
		var members []*analysis.MethodAnalysis
		for _, m := range comp.Methods {
			ma := e.reg.Method(m)
			if ma == nil {
				continue
			}
			members = append(members, ma)
			if ma.IsDone() {
				continue
			}
			ma.Status = analysis.InProgress
			for _, ev := range e.statements.Analyse(ma) {
				ev.Iteration = i
				events = append(events, ev)
			}
			progress += e.countResolved(ma)

			ev := e.methods.Analyse(ma)
			ev.Iteration = i
			events = append(events, ev)
			if ma.IsDone() {
				progress++
			}
		}
		if comp.Cyclic {
			e.methods.ResolveCycle(members)
		}
	}

	for _, t := range e.cluster.Types {
		for _, f := range t.Fields {
			if fa := e.reg.Field(f); fa != nil {
				ev := e.fields.Analyse(fa)
				ev.Iteration = i
				events = append(events, ev)
			}
		}
	}
	for _, t := range e.cluster.Types {
		if ta := e.reg.Type(t); ta != nil {
			ev := e.types.Analyse(ta)
			ev.Iteration = i
			events = append(events, ev)
		}
	}
	return events, progress
}

// countResolved marks the statements of the latest pass whose value is decided and returns how
// many of them were not decided before.
func (e *Engine) countResolved(ma *analysis.MethodAnalysis) int {
	n := 0
	prefix := ma.Method.FQN() + "#"
	for _, s := range ma.Statements {
		v := s.ValueOfExpression
		if v == nil || value.IsDelayed(v) {
			continue
		}
		if key := prefix + s.Index; !e.resolved[key] {
			e.resolved[key] = true
			n++
		}
	}
	return n
}

func (e *Engine) pendingMethods() int {
	n := 0
	for _, m := range e.cluster.Methods() {
		if ma := e.reg.Method(m); ma != nil && !ma.IsDone() {
			n++
		}
	}
	return n
}
