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

// Package field implements the field analyser. It combines the method-level data of the latest
// passes over the methods of the owning type into the properties of each field: finality, the
// effective value, nullability, modification outside constructors and immutability.
package field

import (
	"slices"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
	"go.uber.org/zap"
)

// Analyser grades the fields of one cluster.
type Analyser struct {
	prog   *program.Program
	reg    analysis.Provider
	diags  *diagnostic.Engine
	logger *zap.Logger
}

// New creates a field analyser.
func New(prog *program.Program, reg analysis.Provider, diags *diagnostic.Engine, logger *zap.Logger) *Analyser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyser{prog: prog, reg: reg, diags: diags, logger: logger}
}

// Analyse publishes whatever can be decided about the field from the latest passes over the
// methods of its type.
func (a *Analyser) Analyse(fa *analysis.FieldAnalysis) analysis.FieldEvent {
	f := fa.Field
	g := &grader{Analyser: a, fa: fa, f: f}
	for _, m := range f.Owner.Methods {
		ma := a.reg.Method(m)
		if ma == nil {
			continue
		}
		if ma.Level == nil {
			g.missing = true
		}
		if m.Constructor {
			g.ctors = append(g.ctors, ma)
		} else {
			g.methods = append(g.methods, ma)
		}
	}

	g.final()
	g.effectiveValue()
	g.externalNotNull()
	g.modifiedOutsideMethod()
	g.immutable()
	g.linked()
	g.read()
	if f.Type.Dims == 0 {
		if t := a.prog.LookupType(f.Type.Name); t != nil && t.IsFunctional() {
			g.sam(t)
		}
	}

	name := f.Owner.Name + "." + f.Name
	a.logger.Debug("field graded", zap.String("field", name), zap.Bool("waiting", g.missing))
	return analysis.FieldEvent{Field: name, Props: fa.Props.Snapshot()}
}

type grader struct {
	*Analyser
	fa *analysis.FieldAnalysis
	f  *program.Field

	ctors   []*analysis.MethodAnalysis
	methods []*analysis.MethodAnalysis
	// missing is set when a method of the type has not been walked yet.
	missing bool
}

func put(t *property.Table, p property.Property, v property.DV, cause string) {
	if t.IsSet(p) {
		return
	}
	t.Put(p, v, cause)
}

func (g *grader) cause(what string) string { return what + " of " + g.f.Name }

// settled reports whether the passes over the methods are final.
func settled(mas []*analysis.MethodAnalysis) bool {
	for _, ma := range mas {
		if ma.Level == nil || ma.Level.HasDelays() {
			return false
		}
	}
	return true
}

// final decides finality syntactically: a field assigned outside constructors and initialisers is
// not final.
func (g *grader) final() {
	if g.fa.Props.IsSet(property.Final) {
		return
	}
	final := g.f.Final
	if !final {
		final = true
		for _, m := range g.f.Owner.Methods {
			if m.Constructor || m.Body == nil {
				continue
			}
			if assigns(m.Body, g.f) {
				final = false
				break
			}
		}
	}
	g.fa.Props.Set(property.Final, property.Bool(final))
	if !final && g.f.Access != program.Private && !g.f.Static {
		g.diags.Add(diagnostic.Diagnostic{
			Kind:     diagnostic.NonPrivateFieldNotFinal,
			Location: diagnostic.AtField(g.f),
			Detail:   g.f.Name,
			Pos:      g.f.Pos,
		})
	}
}

func assigns(n program.Node, f *program.Field) bool {
	for _, t := range program.AssignedIn(n) {
		switch t := t.(type) {
		case *program.Name:
			if t.Field == f {
				return true
			}
		case *program.FieldAccess:
			if t.Field == f {
				return true
			}
		}
	}
	return false
}

// initialValue is the value of the field before any constructor runs.
func (g *grader) initialValue() value.Value {
	switch e := g.f.Init.(type) {
	case nil:
		switch {
		case g.f.Type.IsBoolean():
			return value.False
		case g.f.Type.IsPrimitive():
			return value.NewInt(0)
		default:
			return value.Null
		}
	case *program.IntLit:
		return value.NewInt(e.Value)
	case *program.BoolLit:
		return value.NewBool(e.Value)
	case *program.StringLit:
		return value.NewString(e.Value)
	case *program.NullLit:
		return value.Null
	case *program.New:
		return value.NewNewObject(e.TypeName, nil)
	case *program.NewArray:
		return value.NewNewArray(e.Elem, value.Unknown)
	case *program.Lambda, *program.MethodRef:
		return value.NewInstance(g.f.Type, "init", true)
	}
	return value.Unknown
}

// constructionValues returns the values the field holds at the end of each constructor, with the
// initial value for a constructor that does not assign it. A type without constructors has the
// initial value only.
func (g *grader) constructionValues() []value.Value {
	if g.f.Static || len(g.ctors) == 0 {
		return []value.Value{g.initialValue()}
	}
	out := make([]value.Value, 0, len(g.ctors))
	for _, ma := range g.ctors {
		v, ok := ma.Level.FieldValues[g.f]
		if !ok {
			v = g.initialValue()
		}
		out = append(out, v)
	}
	return out
}

// effectiveValue publishes the single value of a final field across all constructors.
func (g *grader) effectiveValue() {
	props := g.fa.Props
	if g.fa.EffectiveValue.IsSet() {
		return
	}
	if props.Get(property.Final).IsFalse() {
		g.fa.EffectiveValue.Set(value.Unknown)
		put(props, property.Constant, property.False, "")
		return
	}
	if g.missing || !settled(g.ctors) {
		g.fa.EffectiveValue.Delay(g.cause("constructors"))
		put(props, property.Constant, property.Delay, g.cause("constructors"))
		return
	}
	values := g.constructionValues()
	ev := values[0]
	for _, v := range values[1:] {
		if !value.Equal(v, ev) {
			ev = value.Unknown
			break
		}
	}
	g.fa.EffectiveValue.Set(ev)
	put(props, property.Constant, property.Bool(value.IsConstant(ev)), "")
}

// assignedValues lists every value the field may hold: the values at the end of construction and
// every assignment in the other methods.
func (g *grader) assignedValues() []value.Value {
	values := g.constructionValues()
	for _, ma := range g.methods {
		values = append(values, ma.Level.FieldsAssigned[g.f]...)
	}
	return values
}

func (g *grader) externalNotNull() {
	props := g.fa.Props
	if props.IsSet(property.ExternalNotNull) {
		return
	}
	if g.f.Type.IsPrimitive() {
		props.Set(property.ExternalNotNull, property.EffectivelyNotNull)
		return
	}
	if g.missing || !settled(g.ctors) || !settled(g.methods) {
		props.Put(property.ExternalNotNull, property.Delay, g.cause("assignments"))
		return
	}
	values := g.assignedValues()
	levels := make([]property.DV, len(values))
	for i, v := range values {
		levels[i] = g.notNull(v)
	}
	put(props, property.ExternalNotNull, property.ExternalNotNull.MergeAll(levels...), g.cause("nullability of values"))
}

// notNull is the nullability of an assigned value outside any evaluation context.
func (g *grader) notNull(v value.Value) property.DV {
	if dv := value.PropertyOutsideContext(v, property.NotNullExpression); dv != property.Delay {
		return dv
	}
	switch x := v.(type) {
	case *value.Conditional:
		return property.NotNullExpression.MergeAll(g.notNull(x.Then), g.notNull(x.Else))
	case *value.PropertyWrapper:
		return g.notNull(x.X)
	case *value.VariableValue:
		switch y := x.Var.(type) {
		case *variable.Parameter:
			if ma := g.reg.Method(y.Param.Owner); ma != nil && y.Param.Index < len(ma.Params) {
				return ma.Params[y.Param.Index].Props.Get(property.NotNullParameter)
			}
		case *variable.Field:
			if y.Field == g.f {
				return g.notNull(g.initialValue())
			}
			if fa := g.reg.Field(y.Field); fa != nil {
				return fa.Props.Get(property.ExternalNotNull)
			}
		}
	case *value.MethodCallValue:
		if ma := g.reg.Method(x.Method); ma != nil {
			return ma.Props.Get(property.NotNullExpression)
		}
	case *value.Delayed:
		return property.Delay
	}
	return property.Nullable
}

// modifiedOutsideMethod is TRUE when a method other than a constructor modifies the object held
// by the field.
func (g *grader) modifiedOutsideMethod() {
	props := g.fa.Props
	if props.IsSet(property.ModifiedOutsideMethod) {
		return
	}
	for _, ma := range g.methods {
		if ma.Level != nil && ma.Level.FieldsModified[g.f].IsTrue() {
			props.Set(property.ModifiedOutsideMethod, property.True)
			return
		}
	}
	if g.missing || !settled(g.methods) {
		props.Put(property.ModifiedOutsideMethod, property.Delay, g.cause("modification"))
		return
	}
	props.Set(property.ModifiedOutsideMethod, property.False)
}

// immutable is the immutability of the field's declared type, raised to the least immutable of
// the values assigned to it when those are all more immutable than the type.
func (g *grader) immutable() {
	props := g.fa.Props
	if props.IsSet(property.Immutable) {
		return
	}
	declared := analysis.ImmutableOf(g.prog, g.reg, g.f.Type)
	if declared == property.Delay || g.missing || !settled(g.ctors) || !settled(g.methods) {
		props.Put(property.Immutable, property.Delay, g.cause("immutability"))
		return
	}
	if props.Get(property.Final).IsFalse() {
		props.Set(property.Immutable, declared)
		return
	}
	values := g.assignedValues()
	levels := make([]property.DV, 0, len(values))
	for _, v := range values {
		if _, isNull := v.(*value.NullConstant); isNull {
			continue
		}
		levels = append(levels, g.immutableOf(v))
	}
	dynamic := property.Immutable.MergeAll(levels...)
	switch {
	case len(levels) == 0:
		props.Set(property.Immutable, declared)
	case dynamic == property.Delay:
		props.Put(property.Immutable, property.Delay, g.cause("immutability of values"))
	default:
		props.Set(property.Immutable, max(declared, dynamic))
	}
}

func (g *grader) immutableOf(v value.Value) property.DV {
	if dv := value.PropertyOutsideContext(v, property.Immutable); dv != property.Delay {
		return dv
	}
	switch x := v.(type) {
	case *value.Conditional:
		return property.Immutable.MergeAll(g.immutableOf(x.Then), g.immutableOf(x.Else))
	case *value.PropertyWrapper:
		return g.immutableOf(x.X)
	case *value.VariableValue:
		return analysis.ImmutableOf(g.prog, g.reg, x.Var.Type())
	case *value.Instance:
		return analysis.ImmutableOf(g.prog, g.reg, x.Type)
	case *value.NewObject:
		return analysis.ImmutableOf(g.prog, g.reg, program.TypeRef{Name: x.Type})
	case *value.MethodCallValue:
		if ma := g.reg.Method(x.Method); ma != nil {
			return ma.Props.Get(property.Immutable)
		}
	case *value.Delayed:
		return property.Delay
	}
	return property.Mutable
}

// linked publishes the names of the constructor parameters assigned into the field.
func (g *grader) linked() {
	if g.fa.Linked.IsSet() {
		return
	}
	if g.missing {
		g.fa.Linked.Delay(g.cause("constructors"))
		return
	}
	var names []string
	for _, ma := range g.ctors {
		for i, ctx := range ma.Level.Params {
			if slices.Contains(ctx.LinkedFields, g.f) && !slices.Contains(names, ma.Params[i].Param.Name) {
				names = append(names, ma.Params[i].Param.Name)
			}
		}
	}
	slices.Sort(names)
	g.fa.Linked.Set(names)
}

// read publishes whether any method of the type reads the field, and flags private fields that are
// never read.
func (g *grader) read() {
	props := g.fa.Props
	if props.IsSet(property.Read) || g.missing {
		return
	}
	read := false
	for _, ma := range append(slices.Clone(g.ctors), g.methods...) {
		read = read || ma.Level.FieldsRead[g.f]
	}
	props.Set(property.Read, property.Bool(read))
	if !read && g.f.Access == program.Private {
		g.diags.Add(diagnostic.Diagnostic{
			Kind:     diagnostic.PrivateFieldNotRead,
			Location: diagnostic.AtField(g.f),
			Detail:   g.f.Name,
			Pos:      g.f.Pos,
		})
	}
}

// sam publishes the modification status of the functional interface held by the field: that of
// the lambda or the method referred to when the field is only ever assigned those, otherwise that
// of the interface's method.
func (g *grader) sam(iface *program.Type) {
	props := g.fa.Props
	if props.IsSet(property.Modified) {
		return
	}
	sources := g.functionalSources()
	if len(sources) == 0 {
		sources = []*program.Method{iface.SAM()}
	}
	levels := make([]property.DV, 0, len(sources))
	for _, m := range sources {
		ma := g.reg.Method(m)
		if ma == nil {
			levels = append(levels, property.True)
			continue
		}
		levels = append(levels, ma.Props.Get(property.Modified))
	}
	put(props, property.Modified, property.Modified.MergeAll(levels...), g.cause("functional value"))
}

// functionalSources returns the lambda methods and method reference targets assigned to the field,
// or nil when some assignment is neither.
func (g *grader) functionalSources() []*program.Method {
	var out []*program.Method
	add := func(e program.Expr) bool {
		switch e := e.(type) {
		case *program.Lambda:
			if e.Method != nil {
				out = append(out, e.Method)
				return true
			}
		case *program.MethodRef:
			if e.Method != nil {
				out = append(out, e.Method)
				return true
			}
		}
		return false
	}
	if g.f.Init != nil && !add(g.f.Init) {
		return nil
	}
	ok := true
	for _, m := range g.f.Owner.Methods {
		if m.Body == nil {
			continue
		}
		program.Inspect(m.Body, func(n program.Node) bool {
			as, isAssign := n.(*program.Assign)
			if !isAssign || !ok {
				return ok
			}
			var target *program.Field
			switch t := as.Target.(type) {
			case *program.Name:
				target = t.Field
			case *program.FieldAccess:
				target = t.Field
			}
			if target == g.f && !add(as.Value) {
				ok = false
			}
			return ok
		})
	}
	if !ok {
		return nil
	}
	return out
}
