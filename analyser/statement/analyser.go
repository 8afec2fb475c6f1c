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

// Package statement implements the statement analyser. Once per iteration it walks the body of a
// method, evaluates every expression into a symbolic value under the current state, and records
// for each statement the state, the variables and the errors found there. What the pass learns
// about the method as a whole (modifications, context properties, return values, preconditions)
// is collected in an analysis.MethodLevelData for the method analyser.
package statement

import (
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/depgraph"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
	"go.uber.org/zap"
)

// Analyser runs statement passes over the methods of one cluster.
type Analyser struct {
	prog   *program.Program
	reg    analysis.Provider
	graph  *depgraph.Graph
	diags  *diagnostic.Engine
	conf   config.Config
	logger *zap.Logger
}

// New creates a statement analyser. Diagnostics found by the passes go to diags.
func New(prog *program.Program, reg analysis.Provider, graph *depgraph.Graph, diags *diagnostic.Engine,
	conf config.Config, logger *zap.Logger) *Analyser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyser{prog: prog, reg: reg, graph: graph, diags: diags, conf: conf, logger: logger}
}

// Analyse runs one pass over the body of the method and replaces ma.Statements and ma.Level with
// its results. Methods without a body get empty level data. The returned events describe the
// statements of the pass.
func (a *Analyser) Analyse(ma *analysis.MethodAnalysis) []analysis.StatementEvent {
	m := ma.Method
	p := &pass{
		Analyser: a,
		ma:       ma,
		m:        m,
		level:    analysis.NewMethodLevelData(len(m.Params)),
		byIndex:  make(map[string]*analysis.StatementAnalysis),
		env:      newEnv(),
		cond:     value.True,
		state:    value.True,
		ret:      value.Placeholder,
		locals:   make(map[string]*localUse),
		pending:  make(map[string]pendingAssignment),
		loopVars: make(map[string]bool),
	}
	if !m.Static {
		p.this = variable.NewThis(m.Owner)
	}
	p.level.CallsUndeclaredSAM = a.graph != nil && a.graph.CallsUndeclaredSAM(m)
	if m.Body != nil {
		f := p.block(m.Body, "", value.True)
		p.finish(f)
	}
	ma.Statements = p.records
	ma.Level = p.level
	if a.conf.IsDebugTarget(m.Name) || a.conf.IsDebugTarget(m.Owner.Name+"."+m.Name) {
		p.log()
	}
	return p.events()
}

func (p *pass) events() []analysis.StatementEvent {
	name := p.m.Owner.Name + "." + p.m.Name
	out := make([]analysis.StatementEvent, len(p.records))
	for i, rec := range p.records {
		out[i] = analysis.StatementEvent{Method: name, Index: rec.Index, Reachable: rec.Reachable}
		if rec.State != nil {
			out[i].State = rec.State.String()
		}
		if rec.ValueOfExpression != nil {
			out[i].Value = rec.ValueOfExpression.String()
		}
	}
	return out
}

// pass is the state of one walk over a method body. Nothing in it outlives the walk except the
// records and the level data.
type pass struct {
	*Analyser

	ma    *analysis.MethodAnalysis
	m     *program.Method
	this  *variable.This
	level *analysis.MethodLevelData

	records []*analysis.StatementAnalysis
	byIndex map[string]*analysis.StatementAnalysis

	env *env
	// index and record are those of the statement being evaluated.
	index  string
	record *analysis.StatementAnalysis
	// cond is the absolute condition of the enclosing block, state the state within it.
	cond  value.Value
	state value.Value
	// lastState is the state at the end of the most recently completed block.
	lastState value.Value
	ret       value.Value

	loopDepth int
	// loopVars holds the keys of the variables assigned inside an enclosing loop.
	loopVars map[string]bool
	locals   map[string]*localUse
	pending  map[string]pendingAssignment

	exitNotNull  []property.DV
	exits        int
	preDelayed   bool
	thisAccessed bool
}

// localUse tracks whether a local variable is ever read.
type localUse struct {
	decl    *program.LocalVariable
	index   string
	read    bool
	loopVar bool
}

// pendingAssignment is the latest assignment to a local that was not read yet.
type pendingAssignment struct {
	index     string
	block     string
	loopDepth int
}

func (p *pass) delay(cause string) {
	for _, c := range p.level.Delays {
		if c == cause {
			return
		}
	}
	p.level.Delays = append(p.level.Delays, cause)
}

// raise reports a diagnostic on the statement at index, once per kind.
func (p *pass) raise(k diagnostic.Kind, index string, detail string) {
	pos := p.m.Pos
	if rec := p.byIndex[index]; rec != nil {
		if rec.Errors[k] {
			return
		}
		rec.Errors[k] = true
		pos = rec.Pos
	}
	p.diags.Add(diagnostic.Diagnostic{
		Kind:     k,
		Location: diagnostic.AtMethod(p.m, index),
		Detail:   detail,
		Pos:      pos,
	})
}

// recordExit merges the context not-null of the parameters at a point where the method completes.
func (p *pass) recordExit() {
	if p.exitNotNull == nil {
		p.exitNotNull = make([]property.DV, len(p.m.Params))
	}
	for i, param := range p.m.Params {
		nn := property.Nullable
		if vi := p.env.get(variable.NewParameter(param).Key()); vi != nil {
			nn = vi.Prop(property.ContextNotNull)
		}
		if p.exits == 0 {
			p.exitNotNull[i] = nn
		} else {
			p.exitNotNull[i] = property.ContextNotNull.Merge(p.exitNotNull[i], nn)
		}
	}
	p.exits++
}

// finish computes the method-level results once the body has been walked.
func (p *pass) finish(f flow) {
	completes := f&normal != 0 && !value.IsFalse(p.lastState)
	if completes {
		p.recordExit()
		p.level.FinalState = p.lastState
	} else {
		p.level.FinalState = value.False
	}
	for i := range p.m.Params {
		if p.exits > 0 {
			p.level.Params[i].ContextNotNull = p.exitNotNull[i]
		}
	}

	if !p.m.IsVoid() {
		ret := p.ret
		if !completes {
			ret = value.DropPlaceholder(ret)
		}
		if _, none := ret.(*value.ReturnPlaceholder); none {
			ret = value.Unknown
		}
		p.level.ReturnValue = ret
	}

	switch {
	case p.preDelayed:
		p.level.Precondition = value.NewDelayed("precondition of " + p.m.Name)
	case len(p.level.Preconditions) == 0:
		p.level.Precondition = value.True
	default:
		p.level.Precondition = value.NewAnd(p.level.Preconditions...)
	}
	p.level.ThisAccessed = p.thisAccessed

	if completes {
		p.env.vars.OrderedRange(func(_ string, vi *analysis.VariableInfo) bool {
			if fv, ok := vi.Variable.(*variable.Field); ok && fv.IsThisField() && vi.AssignmentID != "" {
				p.level.FieldValues[fv.Field] = vi.Value
			}
			return true
		})
	}

	for _, lu := range p.sortedLocals() {
		if !lu.read && !lu.loopVar {
			p.raise(diagnostic.UnusedLocalVariable, lu.index, lu.decl.Name)
		}
	}
	for key, pa := range p.pending {
		if lu := p.locals[key]; lu != nil && lu.read && pa.loopDepth == 0 {
			p.raise(diagnostic.UselessAssignment, pa.index, lu.decl.Name)
		}
	}
}

func (p *pass) sortedLocals() []*localUse {
	out := make([]*localUse, 0, len(p.locals))
	for _, lu := range p.locals {
		out = append(out, lu)
	}
	sortLocals(out)
	return out
}

func (p *pass) log() {
	name := p.m.Owner.Name + "." + p.m.Name
	for _, rec := range p.records {
		fields := []zap.Field{
			zap.String("method", name),
			zap.String("index", rec.Index),
			zap.String("kind", rec.Kind),
			zap.Bool("reachable", rec.Reachable),
		}
		if rec.State != nil {
			fields = append(fields, zap.Stringer("state", rec.State))
		}
		if rec.ValueOfExpression != nil {
			fields = append(fields, zap.Stringer("value", rec.ValueOfExpression))
		}
		p.logger.Debug("statement", fields...)
	}
	p.logger.Debug("method level",
		zap.String("method", name),
		zap.Strings("delays", p.level.Delays),
		zap.Bool("thisModified", p.level.ThisModified),
		zap.Stringer("precondition", p.level.Precondition),
	)
}

// parentBlock returns the prefix of the block holding the statement at index.
func parentBlock(index string) string {
	for i := len(index) - 1; i >= 0; i-- {
		if index[i:i+1] == config.IndexSeparator {
			return index[:i]
		}
	}
	return ""
}
