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

// Package typeanalysis implements the type analyser. It runs after the methods and fields of a
// type were graded in an iteration, and derives the type-level results: the approved
// preconditions of its flip fields, its immutability level, whether it is a container, and which
// program types its methods modify.
package typeanalysis

import (
	"slices"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/depgraph"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/zap"
)

// Analyser grades the types of one cluster.
type Analyser struct {
	prog   *program.Program
	reg    analysis.Provider
	graph  *depgraph.Graph
	diags  *diagnostic.Engine
	logger *zap.Logger
}

// New creates a type analyser.
func New(prog *program.Program, reg analysis.Provider, graph *depgraph.Graph, diags *diagnostic.Engine,
	logger *zap.Logger) *Analyser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyser{prog: prog, reg: reg, graph: graph, diags: diags, logger: logger}
}

// Analyse publishes whatever can be decided about the type from the current state of its methods
// and fields.
func (a *Analyser) Analyse(ta *analysis.TypeAnalysis) analysis.TypeEvent {
	t := ta.Type
	a.circular(ta)
	if t.Interface {
		a.contract(ta)
	} else {
		g := &grader{Analyser: a, ta: ta, t: t}
		for _, m := range t.Methods {
			ma := a.reg.Method(m)
			if ma == nil {
				continue
			}
			if m.Constructor {
				g.ctors = append(g.ctors, ma)
			} else {
				g.methods = append(g.methods, ma)
			}
		}
		g.approved()
		g.immutable()
		g.container()
		g.typesModified()
	}

	ev := analysis.TypeEvent{Type: t.Name, Props: ta.Props.Snapshot()}
	if approved, ok := ta.ApprovedPreconditions.Get(); ok {
		ev.Approved = analysis.FormatApproved(approved)
	}
	a.logger.Debug("type graded",
		zap.String("type", t.Name),
		zap.String("immutable", property.Immutable.Format(ta.Props.Get(property.Immutable))),
		zap.String("approved", ev.Approved))
	return ev
}

// circular records the circular group of the type, once, and reports it.
func (a *Analyser) circular(ta *analysis.TypeAnalysis) {
	if ta.CircularDependencies != nil || a.graph == nil {
		return
	}
	group := a.graph.CircularGroup(ta.Type)
	if len(group) < 2 {
		ta.CircularDependencies = []string{}
		return
	}
	deps := make([]string, 0, len(group)-1)
	for _, other := range group {
		if other != ta.Type {
			deps = append(deps, other.FQN())
		}
	}
	slices.Sort(deps)
	ta.CircularDependencies = deps
	a.diags.Add(diagnostic.Diagnostic{
		Kind:     diagnostic.CircularTypeDependency,
		Location: diagnostic.AtType(ta.Type),
		Detail:   ta.Type.Name,
		Pos:      ta.Type.Pos,
	})
}

// contract grades an interface from its annotations; its methods have no bodies to learn from.
func (a *Analyser) contract(ta *analysis.TypeAnalysis) {
	ann := ta.Type.Annotations
	put(ta.Props, property.Immutable, annotatedapi.ContractImmutable(ann), "")
	put(ta.Props, property.Container, property.Bool(annotatedapi.ContractContainer(ann)), "")
	if !ta.ApprovedPreconditions.IsSet() {
		ta.ApprovedPreconditions.Set(map[string]value.Value{})
	}
	if !ta.TypesModified.IsSet() {
		ta.TypesModified.Set([]string{})
	}
}

func put(t *property.Table, p property.Property, v property.DV, cause string) {
	if t.IsSet(p) {
		return
	}
	t.Put(p, v, cause)
}

type grader struct {
	*Analyser
	ta *analysis.TypeAnalysis
	t  *program.Type

	ctors   []*analysis.MethodAnalysis
	methods []*analysis.MethodAnalysis
}

func (g *grader) cause(what string) string { return what + " of " + g.t.Name }

// approved collects, for every flip field of the type, the precondition of its mark method. A flip
// field is a private boolean that construction leaves at one constant and every other assignment
// sets to the opposite one.
func (g *grader) approved() {
	slot := g.ta.ApprovedPreconditions
	if slot.IsSet() {
		return
	}
	out := make(map[string]value.Value)
	for _, ma := range g.methods {
		mark, ok := ma.Mark.Get()
		if !ok {
			slot.Delay("mark of " + ma.Method.Name)
			return
		}
		if mark == "" {
			continue
		}
		f := g.t.Field(mark)
		approvable, decided := g.flips(f)
		if !decided {
			slot.Delay(g.cause("assignments to " + mark))
			return
		}
		if approvable {
			out[mark] = ma.Precondition.MustGet()
		}
	}
	slot.Set(out)
}

// flips reports whether f is assigned exactly one constant c outside construction and holds the
// negation of c after every constructor. The second result is false while some pass is missing.
func (g *grader) flips(f *program.Field) (approvable, decided bool) {
	if f == nil || f.Static || f.Access != program.Private || !f.Type.IsBoolean() {
		return false, true
	}
	var assigned *value.BoolConstant
	for _, ma := range g.methods {
		if ma.Level == nil {
			return false, false
		}
		for _, v := range ma.Level.FieldsAssigned[f] {
			b, ok := v.(*value.BoolConstant)
			if !ok || (assigned != nil && b.V != assigned.V) {
				return false, true
			}
			assigned = b
		}
	}
	if assigned == nil {
		return false, true
	}
	initial, ok := initialBool(f)
	if !ok {
		return false, true
	}
	for _, ma := range g.ctors {
		if ma.Level == nil {
			return false, false
		}
		v, ok := ma.Level.FieldValues[f]
		if !ok {
			if initial == assigned.V {
				return false, true
			}
			continue
		}
		if b, ok := v.(*value.BoolConstant); !ok || b.V == assigned.V {
			return false, true
		}
	}
	if len(g.ctors) == 0 && initial == assigned.V {
		return false, true
	}
	return true, true
}

func initialBool(f *program.Field) (bool, bool) {
	switch e := f.Init.(type) {
	case nil:
		return false, true
	case *program.BoolLit:
		return e.Value, true
	}
	return false, false
}

// eventuallyGuarded reports whether the method may only run before or after the mark of an
// approved flip field, or is such a mark.
func (g *grader) eventuallyGuarded(ma *analysis.MethodAnalysis, approved map[string]value.Value) bool {
	if mark, ok := ma.Mark.Get(); ok && mark != "" {
		_, ok := approved[mark]
		return ok
	}
	if only, ok := ma.Only.Get(); ok && only != nil {
		_, ok := approved[only.Field]
		return ok
	}
	return false
}

// immutable grades the type. Level one holds when every field is final, or eventually so when
// the only non-final fields are approved flip fields. Level two further needs every field of a
// type that is not itself level two to be neither modified, nor handed in by a constructor, nor
// handed out by a method. Modifications restricted to one side of a mark only weaken the result
// to eventual.
func (g *grader) immutable() {
	props := g.ta.Props
	if props.IsSet(property.Immutable) {
		return
	}
	approved, haveApproved := g.ta.ApprovedPreconditions.Get()

	level1 := property.E1
	var fields []*program.Field
	for _, f := range g.t.Fields {
		if f.Static {
			continue
		}
		fields = append(fields, f)
		fa := g.reg.Field(f)
		switch fa.Props.Get(property.Final) {
		case property.Delay:
			props.Put(property.Immutable, property.Delay, "finality of "+f.Name)
			return
		case property.False:
			if !haveApproved {
				props.Put(property.Immutable, property.Delay, g.cause("approved preconditions"))
				return
			}
			if _, ok := approved[f.Name]; !ok {
				props.Set(property.Immutable, property.Mutable)
				return
			}
			level1 = property.EventuallyE1
		}
	}

	eventual := level1 == property.EventuallyE1
	for _, f := range fields {
		switch ok, ev, cause := g.level2(f, approved); {
		case cause != "":
			props.Put(property.Immutable, property.Delay, cause)
			return
		case !ok:
			props.Set(property.Immutable, level1)
			return
		case ev:
			eventual = true
		}
	}
	if eventual {
		props.Set(property.Immutable, property.EventuallyE2)
	} else {
		props.Set(property.Immutable, property.E2)
	}
}

// level2 checks one field for level two. It returns whether the field passes, whether it only
// passes eventually, and the cause when it cannot be decided yet. A field whose type is level two
// passes outright. A field typed by a member of the circular group has no decided immutability to
// rely on, so it is held to the same rules as a field of a mutable type.
func (g *grader) level2(f *program.Field, approved map[string]value.Value) (ok, eventual bool, cause string) {
	fa := g.reg.Field(f)
	if !g.sameGroup(f.Type) {
		switch imm := fa.Props.Get(property.Immutable); {
		case imm == property.Delay:
			return false, false, "immutability of " + f.Name
		case imm == property.EventuallyE2:
			return true, true, ""
		case property.IsE2(imm):
			return true, false, ""
		}
	}
	if f.Access != program.Private {
		return false, false, ""
	}

	switch fa.Props.Get(property.ModifiedOutsideMethod) {
	case property.Delay:
		return false, false, "modification of " + f.Name
	case property.True:
		if approved == nil {
			return false, false, g.cause("approved preconditions")
		}
		for _, ma := range g.methods {
			if ma.Level == nil || !ma.Level.FieldsModified[f].IsTrue() {
				continue
			}
			if !g.eventuallyGuarded(ma, approved) {
				return false, false, ""
			}
			eventual = true
		}
	}

	linked, set := fa.Linked.Get()
	if !set {
		return false, false, "linking of " + f.Name
	}
	if len(linked) > 0 {
		return false, false, ""
	}

	for _, ma := range g.methods {
		if ma.Method.Access == program.Private || ma.Level == nil {
			continue
		}
		if !slices.Contains(ma.Level.ReturnLinkedFields, f) {
			continue
		}
		switch ma.Props.Get(property.Independent) {
		case property.Delay:
			return false, false, "independence of " + ma.Method.Name
		case property.False:
			return false, false, ""
		}
	}
	return true, eventual, ""
}

// sameGroup reports whether the type reference names this type or a member of its circular group.
func (g *grader) sameGroup(ref program.TypeRef) bool {
	if ref.IsArray() || ref.IsPrimitive() {
		return false
	}
	t := g.prog.LookupType(ref.Name)
	if t == nil {
		return false
	}
	return t == g.t || g.ta.InCircularGroup(t.FQN())
}

// container holds when no non-private method or constructor modifies any of its parameters.
func (g *grader) container() {
	props := g.ta.Props
	if props.IsSet(property.Container) {
		return
	}
	out := property.True
	for _, ma := range append(slices.Clone(g.ctors), g.methods...) {
		if ma.Method.Access == program.Private || ma.Method.Synthetic {
			continue
		}
		for _, pa := range ma.Params {
			switch pa.Props.Get(property.ModifiedVariable) {
			case property.True:
				props.Set(property.Container, property.False)
				return
			case property.Delay:
				out = property.Delay
			}
		}
	}
	props.Put(property.Container, out, g.cause("parameter modification"))
}

// typesModified merges the modified types over the methods of the circular group of the type, or
// of the type alone, once all of them are done.
func (g *grader) typesModified() {
	slot := g.ta.TypesModified
	if slot.IsSet() {
		return
	}
	group := []*program.Type{g.t}
	if g.graph != nil {
		if cg := g.graph.CircularGroup(g.t); len(cg) > 0 {
			group = cg
		}
	}
	var names []string
	for _, t := range group {
		for _, m := range t.Methods {
			ma := g.reg.Method(m)
			if ma == nil {
				continue
			}
			if !ma.IsDone() || ma.Level == nil {
				slot.Delay("types modified by " + m.Name)
				return
			}
			for mt, modified := range ma.Level.TypesModified {
				if modified && !slices.Contains(names, mt.FQN()) {
					names = append(names, mt.FQN())
				}
			}
		}
	}
	slices.Sort(names)
	if names == nil {
		names = []string{}
	}
	slot.Set(names)
}
