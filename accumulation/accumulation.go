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

// Package accumulation coordinates a whole run: it partitions the program into clusters of types
// that do not depend on each other, runs one inference engine per cluster (in parallel, bounded by
// the configured parallelism), and collects the analyses and diagnostics of all clusters.
package accumulation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/depgraph"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/inference"
	"go.uber.org/immutaway/program"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InternalError is a failure of the analyser itself, typically a slot regression, as opposed to a
// finding about the analysed program.
type InternalError struct {
	// Cluster lists the types of the cluster being analysed.
	Cluster []string
	Panic   any
	Stack   string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("INTERNAL PANIC in cluster %v: %v\n%s", e.Cluster, e.Panic, e.Stack)
}

// Unwrap exposes the panic value when it is an error, so that callers can match, for example, a
// *property.RegressionError.
func (e *InternalError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// ClusterResult is the outcome of one cluster.
type ClusterResult struct {
	Types      []*program.Type
	Registry   *analysis.Registry
	Iterations int
	// History holds the recorded iterations when history recording is enabled.
	History []inference.Iteration
}

// Result is the outcome of a run. It is a Provider over the analyses of every cluster.
type Result struct {
	Graph       *depgraph.Graph
	Clusters    []*ClusterResult
	Diagnostics []diagnostic.Diagnostic

	owner map[*program.Type]*analysis.Registry
}

var _ analysis.Provider = (*Result)(nil)

// Method returns the analysis of m, or nil for methods outside the program.
func (r *Result) Method(m *program.Method) *analysis.MethodAnalysis {
	if reg := r.owner[m.Owner]; reg != nil {
		return reg.Method(m)
	}
	return nil
}

// Field returns the analysis of f, or nil for fields outside the program.
func (r *Result) Field(f *program.Field) *analysis.FieldAnalysis {
	if reg := r.owner[f.Owner]; reg != nil {
		return reg.Field(f)
	}
	return nil
}

// Type returns the analysis of t, or nil for types outside the program.
func (r *Result) Type(t *program.Type) *analysis.TypeAnalysis {
	if reg := r.owner[t]; reg != nil {
		return reg.Type(t)
	}
	return nil
}

// Run analyses the program. Library elements are looked up in api. Clusters are independent, so
// the result does not depend on the parallelism. The first failing cluster cancels the others and
// its error is returned; panics inside an analyser come back as *InternalError.
func Run(ctx context.Context, prog *program.Program, api analysis.Provider, conf config.Config,
	logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	graph := depgraph.Build(prog)
	clusters := graph.Clusters()
	res := &Result{
		Graph:    graph,
		Clusters: make([]*ClusterResult, len(clusters)),
		owner:    make(map[*program.Type]*analysis.Registry),
	}
	engines := make([]*diagnostic.Engine, len(clusters))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(conf.Parallelism)
	for i, c := range clusters {
		reg := analysis.NewRegistry(api)
		for _, t := range c.Types {
			reg.Add(t)
			res.owner[t] = reg
		}
		cr := &ClusterResult{Types: c.Types, Registry: reg}
		res.Clusters[i] = cr
		engines[i] = diagnostic.NewEngine()

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &InternalError{Cluster: typeNames(c.Types), Panic: r, Stack: string(debug.Stack())}
				}
			}()
			engine := inference.NewEngine(prog, reg, graph, c, engines[i], conf, logger)
			err = engine.Run(ctx)
			cr.Iterations, cr.History = engine.Iterations(), engine.History()
			if err != nil {
				return fmt.Errorf("cluster %v: %w", typeNames(c.Types), err)
			}
			logger.Info("cluster analysed",
				zap.Strings("types", typeNames(c.Types)),
				zap.Int("iterations", cr.Iterations),
				zap.Int("resolved", reg.Arena.Resolved()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var internal *InternalError
		if errors.As(err, &internal) {
			logger.Error("internal error", zap.Error(err))
		}
		return res, err
	}

	merged := diagnostic.NewEngine()
	for _, e := range engines {
		merged.Merge(e)
	}
	res.Diagnostics = diagnostic.NewSuppressions(prog).Filter(merged.Diagnostics())
	return res, nil
}

func typeNames(types []*program.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.FQN()
	}
	return out
}
