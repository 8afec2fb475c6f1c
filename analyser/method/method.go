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

// Package method implements the method analyser. After each statement pass it turns the
// method-level data of the pass into the published properties of the method, its parameters and
// its return value. Every property is published once, as soon as it is final; until then the
// corresponding slot records the cause of the delay.
package method

import (
	"slices"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/depgraph"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
	"go.uber.org/zap"
)

// Analyser grades the methods of one cluster.
type Analyser struct {
	prog   *program.Program
	reg    analysis.Provider
	graph  *depgraph.Graph
	diags  *diagnostic.Engine
	logger *zap.Logger
}

// New creates a method analyser.
func New(prog *program.Program, reg analysis.Provider, graph *depgraph.Graph, diags *diagnostic.Engine,
	logger *zap.Logger) *Analyser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyser{prog: prog, reg: reg, graph: graph, diags: diags, logger: logger}
}

// Analyse publishes what the latest statement pass over the method decided, and moves the method
// to Done when nothing is left to decide.
func (a *Analyser) Analyse(ma *analysis.MethodAnalysis) analysis.MethodEvent {
	m := ma.Method
	if m.Body == nil {
		a.withoutBody(ma)
	} else {
		lvl := ma.Level
		if lvl == nil {
			lvl = analysis.NewMethodLevelData(len(m.Params))
		}
		g := &grader{Analyser: a, ma: ma, m: m, lvl: lvl}
		g.modified()
		g.parameters()
		if !m.IsVoid() {
			g.returnValue()
		}
		g.precondition()
		g.eventual()
		g.checks()
	}
	ma.Status = analysis.DoneThisIteration
	if complete(ma) && (ma.Level == nil || !ma.Level.HasDelays()) {
		ma.Status = analysis.Done
	}
	var delays []string
	if ma.Level != nil {
		delays = slices.Clone(ma.Level.Delays)
	}
	a.logger.Debug("method graded",
		zap.String("method", name(m)),
		zap.Stringer("status", ma.Status),
		zap.Strings("delays", delays))
	return analysis.MethodEvent{Method: name(m), Status: ma.Status, Props: ma.Props.Snapshot(), Delays: delays}
}

func name(m *program.Method) string { return m.Owner.Name + "." + m.Name }

// put publishes v unless the slot already holds a value; a Delay records the cause.
func put(t *property.Table, p property.Property, v property.DV, cause string) {
	if t.IsSet(p) {
		return
	}
	t.Put(p, v, cause)
}

func putSlot[T any](s *property.Slot[T], v T, ok bool, cause string) {
	if s.IsSet() {
		return
	}
	if ok {
		s.Set(v)
	} else {
		s.Delay(cause)
	}
}

// returnProperties are the properties published for the value of a non-void method.
var returnProperties = []property.Property{
	property.NotNullExpression,
	property.Immutable,
	property.Constant,
	property.Identity,
	property.Fluent,
	property.Independent,
}

// complete reports whether every slot of the method holds a value.
func complete(ma *analysis.MethodAnalysis) bool {
	m := ma.Method
	if !m.Constructor && !ma.Props.IsSet(property.Modified) {
		return false
	}
	for _, pa := range ma.Params {
		if !pa.Props.IsSet(property.NotNullParameter) || !pa.Props.IsSet(property.ModifiedVariable) {
			return false
		}
	}
	if !m.IsVoid() {
		for _, p := range returnProperties {
			if !ma.Props.IsSet(p) {
				return false
			}
		}
		if !ma.ReturnValue.IsSet() {
			return false
		}
	}
	return ma.Precondition.IsSet() && ma.Mark.IsSet() && ma.Only.IsSet()
}

// withoutBody publishes the contract of an abstract method from its annotations. Without
// @NotModified an abstract method is taken to modify its object.
func (a *Analyser) withoutBody(ma *analysis.MethodAnalysis) {
	m := ma.Method
	ann := m.Annotations
	if !m.Constructor {
		put(ma.Props, property.Modified, property.Bool(!ann.Has("NotModified")), "")
	}
	for _, pa := range ma.Params {
		nn := property.Nullable
		if pa.Param.Type.IsPrimitive() || pa.Param.Annotations.Has("NotNull") {
			nn = property.EffectivelyNotNull
		}
		put(pa.Props, property.NotNullParameter, nn, "")
		put(pa.Props, property.ModifiedVariable, property.Bool(pa.Param.Annotations.Has("Modified")), "")
	}
	if !m.IsVoid() {
		nn := property.Nullable
		if m.Return.IsPrimitive() || ann.Has("NotNull") {
			nn = property.EffectivelyNotNull
		}
		put(ma.Props, property.NotNullExpression, nn, "")
		imm := analysis.ImmutableOf(a.prog, a.reg, m.Return)
		put(ma.Props, property.Immutable, imm, "immutability of "+m.Return.String())
		put(ma.Props, property.Constant, property.False, "")
		put(ma.Props, property.Identity, property.Bool(ann.Has("Identity")), "")
		put(ma.Props, property.Fluent, property.Bool(ann.Has("Fluent")), "")
		switch {
		case ann.Has("Independent") || property.IsE2(imm):
			put(ma.Props, property.Independent, property.True, "")
		case imm == property.Delay:
			put(ma.Props, property.Independent, property.Delay, "immutability of "+m.Return.String())
		default:
			put(ma.Props, property.Independent, property.False, "")
		}
		putSlot(ma.ReturnValue, value.Value(value.Unknown), true, "")
	}
	putSlot(ma.Precondition, value.Value(value.True), true, "")
	putSlot(ma.Mark, "", true, "")
	putSlot(ma.Only, nil, true, "")
}

// grader publishes the results of one statement pass.
type grader struct {
	*Analyser
	ma  *analysis.MethodAnalysis
	m   *program.Method
	lvl *analysis.MethodLevelData
}

func (g *grader) final() bool { return !g.lvl.HasDelays() }

func (g *grader) cause() string {
	if len(g.lvl.Delays) > 0 {
		return g.lvl.Delays[0]
	}
	if len(g.lvl.CycleCalls) > 0 {
		return "cycle through " + g.lvl.CycleCalls[0].Name
	}
	return "pass"
}

// modified decides whether the method modifies this. Constructors are not graded.
func (g *grader) modified() {
	if g.m.Constructor {
		return
	}
	direct := g.lvl.ThisModified || g.lvl.CallsUndeclaredSAM
	for _, dv := range g.lvl.FieldsModified {
		direct = direct || dv.IsTrue()
	}
	switch {
	case direct:
		put(g.ma.Props, property.Modified, property.True, "")
	case g.final() && !g.lvl.ThisModifiedDelayed:
		put(g.ma.Props, property.Modified, property.False, "")
	default:
		put(g.ma.Props, property.Modified, property.Delay, g.cause())
	}
}

func (g *grader) parameters() {
	for i, pa := range g.ma.Params {
		ctx := g.lvl.Params[i]
		switch {
		case pa.Param.Type.IsPrimitive() || pa.Param.Annotations.Has("NotNull"):
			put(pa.Props, property.NotNullParameter, property.EffectivelyNotNull, "")
		case ctx.ContextNotNull >= property.EffectivelyNotNull && g.final():
			put(pa.Props, property.NotNullParameter, ctx.ContextNotNull, "")
		case g.final():
			put(pa.Props, property.NotNullParameter, property.Nullable, "")
		default:
			put(pa.Props, property.NotNullParameter, property.Delay, g.cause())
		}
		put(pa.Props, property.ModifiedVariable, g.modifiedVariable(pa, ctx), g.cause())
	}
}

// modifiedVariable is TRUE when the body modifies the parameter, or stores it in a field that is
// modified elsewhere.
func (g *grader) modifiedVariable(pa *analysis.ParameterAnalysis, ctx *analysis.ParameterContext) property.DV {
	if ctx.ContextModified.IsTrue() || pa.Param.Annotations.Has("Modified") {
		return property.True
	}
	if pa.Param.Type.IsPrimitive() || pa.Param.Type.IsString() {
		return property.False
	}
	out := property.False
	for _, f := range ctx.LinkedFields {
		fa := g.reg.Field(f)
		if fa == nil {
			continue
		}
		switch fa.Props.Get(property.ModifiedOutsideMethod) {
		case property.True:
			return property.True
		case property.Delay:
			out = property.Delay
		}
	}
	if !g.final() {
		return property.Delay
	}
	return out
}

func (g *grader) returnValue() {
	props := g.ma.Props
	ret := g.m.Return
	cause := g.cause()

	notNull, imm := property.Delay, property.Delay
	if ret.IsPrimitive() {
		notNull = property.EffectivelyNotNull
	}
	if ret.IsPrimitive() || ret.IsString() {
		imm = property.E2
	}
	if g.final() {
		if notNull == property.Delay {
			notNull = g.transfers(property.NotNullExpression, func(t analysis.TransferValue) property.DV {
				return g.refineNotNull(t)
			})
		}
		if imm == property.Delay {
			imm = g.transfers(property.Immutable, func(t analysis.TransferValue) property.DV { return t.Immutable })
		}
	}
	put(props, property.NotNullExpression, notNull, cause)
	put(props, property.Immutable, imm, cause)
	put(props, property.Independent, g.independent(imm), cause)

	if !g.final() {
		for _, p := range []property.Property{property.Constant, property.Identity, property.Fluent} {
			put(props, p, property.Delay, cause)
		}
		putSlot(g.ma.ReturnValue, nil, false, cause)
		return
	}
	rv := g.lvl.ReturnValue
	putSlot(g.ma.ReturnValue, rv, true, "")
	put(props, property.Constant, property.Bool(value.IsConstant(rv)), "")
	put(props, property.Identity, property.Bool(g.allTransfers(func(v value.Value) bool {
		pv, ok := unwrap(v).(*value.VariableValue)
		if !ok {
			return false
		}
		p, ok := pv.Var.(*variable.Parameter)
		return ok && p.Param.Owner == g.m && p.Param.Index == 0
	})), "")
	put(props, property.Fluent, property.Bool(g.allTransfers(func(v value.Value) bool {
		return value.IsThis(unwrap(v))
	})), "")
}

// refineNotNull replaces the nullability a pass computed for a returned parameter, which may be
// delayed because the parameter was not graded yet, by the parameter's published nullability.
func (g *grader) refineNotNull(t analysis.TransferValue) property.DV {
	if t.NotNull != property.Delay {
		return t.NotNull
	}
	if pv, ok := unwrap(t.Value).(*value.VariableValue); ok {
		if p, ok := pv.Var.(*variable.Parameter); ok && p.Param.Owner == g.m {
			return g.ma.Params[p.Param.Index].Props.Get(property.NotNullParameter)
		}
	}
	return property.Delay
}

// transfers merges one property over the return points; a method without return points never
// completes normally and its value is never observed as null.
func (g *grader) transfers(p property.Property, f func(analysis.TransferValue) property.DV) property.DV {
	if len(g.lvl.Transfers) == 0 {
		if p == property.NotNullExpression {
			return property.EffectivelyNotNull
		}
		return analysis.ImmutableOf(g.prog, g.reg, g.m.Return)
	}
	values := make([]property.DV, len(g.lvl.Transfers))
	for i, t := range g.lvl.Transfers {
		values[i] = f(t)
	}
	return p.MergeAll(values...)
}

func (g *grader) allTransfers(f func(value.Value) bool) bool {
	if len(g.lvl.Transfers) == 0 {
		return false
	}
	for _, t := range g.lvl.Transfers {
		if !f(t.Value) {
			return false
		}
	}
	return true
}

// independent decides whether the returned object is independent of the fields of this: it is
// immutable, or shares identity with no field, or only with fields of E2-immutable types.
func (g *grader) independent(imm property.DV) property.DV {
	if property.IsE2(imm) {
		return property.True
	}
	if !g.final() {
		return property.Delay
	}
	out := property.True
	for _, f := range g.lvl.ReturnLinkedFields {
		switch fi := analysis.ImmutableOf(g.prog, g.reg, f.Type); {
		case fi == property.Delay:
			out = property.Delay
		case !property.IsE2(fi):
			return property.False
		}
	}
	return out
}

func (g *grader) precondition() {
	pre := g.lvl.Precondition
	if !g.final() || pre == nil || value.IsDelayed(pre) {
		putSlot(g.ma.Precondition, nil, false, g.cause())
		return
	}
	putSlot(g.ma.Precondition, pre, true, "")
}

// eventual decides @Mark and @Only. A precondition on a single boolean field f of the type makes
// the method a mark of f when it assigns f, and restricts it to before (precondition !f) or after
// (precondition f) the mark otherwise.
func (g *grader) eventual() {
	pre, ok := g.ma.Precondition.Get()
	if !ok {
		putSlot(g.ma.Mark, "", false, "precondition")
		putSlot(g.ma.Only, nil, false, "precondition")
		return
	}
	f, positive := flipField(g.m.Owner, pre)
	switch {
	case f == nil:
		putSlot(g.ma.Mark, "", true, "")
		putSlot(g.ma.Only, nil, true, "")
	case len(g.lvl.FieldsAssigned[f]) > 0:
		putSlot(g.ma.Mark, f.Name, true, "")
		putSlot(g.ma.Only, nil, true, "")
	default:
		putSlot(g.ma.Mark, "", true, "")
		putSlot(g.ma.Only, &analysis.Only{Field: f.Name, After: positive}, true, "")
	}
}

// flipField returns the field when the precondition is "f" or "!f" for a boolean field f of the
// type, and whether it is the positive form.
func flipField(t *program.Type, pre value.Value) (*program.Field, bool) {
	positive := true
	pre = unwrap(pre)
	if n, ok := pre.(*value.Negation); ok {
		pre, positive = unwrap(n.X), false
	}
	vv, ok := pre.(*value.VariableValue)
	if !ok {
		return nil, false
	}
	fv, ok := vv.Var.(*variable.Field)
	if !ok || !fv.IsThisField() || fv.Field.Owner != t || !fv.Field.Type.IsBoolean() {
		return nil, false
	}
	return fv.Field, positive
}

// checks raises the method-level diagnostics once the pass is final.
func (g *grader) checks() {
	if !g.final() || g.m.Synthetic {
		return
	}
	if !g.m.Static && !g.m.Constructor && !g.m.Abstract && !g.m.Overrides && !g.lvl.ThisAccessed {
		g.diags.Add(diagnostic.Diagnostic{
			Kind:     diagnostic.MethodShouldBeMarkedStatic,
			Location: diagnostic.AtMethod(g.m, ""),
			Detail:   g.m.Name,
			Pos:      g.m.Pos,
		})
	}
	if g.m.Overrides || g.m.Abstract {
		return
	}
	for i, p := range g.m.Params {
		if p.Annotations.Has("NotModified") && g.lvl.Params[i].ContextModified.IsTrue() {
			g.diags.Add(diagnostic.Diagnostic{
				Kind:     diagnostic.ModificationNotAllowed,
				Location: diagnostic.AtParameter(p),
				Detail:   p.Name,
				Pos:      p.Pos,
			})
		}
		if !g.lvl.Params[i].Read {
			g.diags.Add(diagnostic.Diagnostic{
				Kind:     diagnostic.UnusedParameter,
				Location: diagnostic.AtParameter(p),
				Detail:   p.Name,
				Pos:      p.Pos,
			})
		}
	}
}

func unwrap(v value.Value) value.Value {
	for {
		w, ok := v.(*value.PropertyWrapper)
		if !ok {
			return v
		}
		v = w.X
	}
}
