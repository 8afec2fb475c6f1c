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

package statement

import (
	"slices"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
)

// info returns the entry of the variable in the current environment, creating it with the value
// the variable has on entry of the method.
func (p *pass) info(v variable.Variable) *analysis.VariableInfo {
	if vi := p.env.get(v.Key()); vi != nil {
		return vi
	}
	vi := &analysis.VariableInfo{
		Variable: v,
		Value:    p.initialValue(v),
		Props:    make(map[property.Property]property.DV),
	}
	p.env.put(vi)
	return vi
}

func (p *pass) initialValue(v variable.Variable) value.Value {
	switch x := v.(type) {
	case *variable.Parameter:
		if x.Param.Annotations.Has("NotNull") {
			return value.Wrap(value.NewVariable(v), map[property.Property]property.DV{
				property.NotNullExpression: property.EffectivelyNotNull,
			})
		}
	case *variable.Field:
		if x.IsThisField() {
			return p.fieldValue(x)
		}
	}
	return value.NewVariable(v)
}

// fieldValue is the value of a field of this read before any assignment in the method. Outside
// constructors a final field with a constant value is that constant; whether it is final must be
// known first.
func (p *pass) fieldValue(fv *variable.Field) value.Value {
	f := fv.Field
	if p.m.Constructor && f.Owner == p.m.Owner && !f.Static {
		return value.NewVariable(fv)
	}
	fa := p.reg.Field(f)
	if fa == nil || f.Owner.Library {
		return value.NewVariable(fv)
	}
	final := fa.Props.Get(property.Final)
	if final == property.Delay {
		p.delay("final of field " + f.Name)
		return value.NewDelayed("final of field " + f.Name)
	}
	if final.IsTrue() {
		ev, ok := fa.EffectiveValue.Get()
		if !ok {
			p.delay("value of field " + f.Name)
			return value.NewDelayed("value of field " + f.Name)
		}
		if value.IsConstant(ev) {
			return ev
		}
	}
	if nn := fa.Props.Get(property.ExternalNotNull); nn >= property.EffectivelyNotNull && !f.Type.IsPrimitive() {
		return value.Wrap(value.NewVariable(fv), map[property.Property]property.DV{property.NotNullExpression: nn})
	}
	return value.NewVariable(fv)
}

// declare registers a local variable declared by the statement at index.
func (p *pass) declare(decl *program.LocalVariable, index string, loopVar bool) {
	p.locals[variable.NewLocal(decl).Key()] = &localUse{decl: decl, index: index, loopVar: loopVar}
}

// read returns the current value of the variable and records the read.
func (p *pass) read(v variable.Variable) value.Value {
	vi := p.info(v)
	vi.ReadID = p.index
	switch x := v.(type) {
	case *variable.Local:
		if lu := p.locals[x.Key()]; lu != nil {
			lu.read = true
		}
		delete(p.pending, x.Key())
	case *variable.Parameter:
		if x.Param.Owner == p.m {
			p.level.Params[x.Param.Index].Read = true
		}
	case *variable.Field:
		if x.IsThisField() && x.Field.Owner == p.m.Owner {
			p.level.FieldsRead[x.Field] = true
		}
	}
	return vi.Value
}

// assign gives the variable a new value in the current statement.
func (p *pass) assign(v variable.Variable, val value.Value) {
	vi := p.info(v)
	vi.Value = val
	vi.AssignmentID = p.index + config.AssignmentSuffix
	vi.Linked = p.linkedKeys(val)
	delete(vi.Props, property.ContextNotNull)
	vi.Eventual = analysis.EventualUnknown
	if _, ok := unwrap(val).(*value.NewObject); ok {
		vi.Eventual = analysis.BeforeMark
	}

	switch x := v.(type) {
	case *variable.Local:
		key := x.Key()
		if prev, ok := p.pending[key]; ok && prev.loopDepth == 0 && p.loopDepth == 0 && prev.block == parentBlock(p.index) &&
			prev.index != p.index {
			p.raise(diagnostic.UselessAssignment, prev.index, x.Name())
		}
		p.pending[key] = pendingAssignment{index: p.index, block: parentBlock(p.index), loopDepth: p.loopDepth}
	case *variable.Parameter:
		p.raise(diagnostic.ParameterShouldNotBeAssignedTo, p.index, x.Name())
		if x.Param.Owner == p.m {
			p.level.Params[x.Param.Index].Assigned = true
		}
	case *variable.Field:
		if !x.IsThisField() {
			p.modify(x.Scope)
			break
		}
		if x.Field.Owner != p.m.Owner {
			break
		}
		p.thisAccessed = p.thisAccessed || !x.Field.Static
		p.level.FieldsAssigned[x.Field] = append(p.level.FieldsAssigned[x.Field], val)
		if !p.m.Constructor {
			p.level.ThisModified = true
		}
		for _, lv := range value.LinkedVariables(val) {
			if pv, ok := lv.(*variable.Parameter); ok && pv.Param.Owner == p.m {
				pc := p.level.Params[pv.Param.Index]
				if !slices.Contains(pc.LinkedFields, x.Field) {
					pc.LinkedFields = append(pc.LinkedFields, x.Field)
				}
			}
		}
	case *variable.Dependent:
		vi.Linked = append(vi.Linked, x.Array.Key())
		p.modify(x.Array)
	}
}

// linkedKeys returns the keys of the variables a value may share object identity with, following
// the links already known for them.
func (p *pass) linkedKeys(v value.Value) []string {
	var out []string
	var add func(key string)
	add = func(key string) {
		if slices.Contains(out, key) {
			return
		}
		out = append(out, key)
		if vi := p.env.get(key); vi != nil {
			for _, l := range vi.Linked {
				add(l)
			}
		}
	}
	for _, lv := range value.LinkedVariables(v) {
		add(lv.Key())
	}
	return out
}

// modify records that the object held by the variable is modified, together with every variable
// linked to it.
func (p *pass) modify(v variable.Variable) {
	p.modifyOnce(v, map[string]bool{})
}

func (p *pass) modifyOnce(v variable.Variable, seen map[string]bool) {
	if v == nil || seen[v.Key()] {
		return
	}
	seen[v.Key()] = true
	vi := p.info(v)
	vi.Props[property.ContextModified] = property.True

	switch x := v.(type) {
	case *variable.Parameter:
		if x.Param.Owner == p.m {
			p.level.Params[x.Param.Index].ContextModified = property.True
		}
	case *variable.This:
		if !p.m.Constructor {
			p.level.ThisModified = true
		}
	case *variable.Field:
		if x.IsThisField() {
			if x.Field.Owner == p.m.Owner {
				p.level.FieldsModified[x.Field] = property.True
			}
			if !p.m.Constructor {
				p.level.ThisModified = true
			}
		} else {
			p.modifyOnce(x.Scope, seen)
		}
	case *variable.Dependent:
		p.modifyOnce(x.Array, seen)
	}
	if _, isThis := v.(*variable.This); !isThis {
		if t := p.prog.LookupType(v.Type().Name); t != nil && !t.Library && v.Type().Dims == 0 {
			p.level.TypesModified[t] = true
		}
	}
	for _, l := range vi.Linked {
		if lvi := p.env.get(l); lvi != nil {
			p.modifyOnce(lvi.Variable, seen)
		}
	}
}

// contextNotNull records that the variable must not be null at this point.
func (p *pass) contextNotNull(v variable.Variable) {
	p.info(v).Props[property.ContextNotNull] = property.EffectivelyNotNull
}

// deref handles the use of a value as the object of a call, a field access, an element access or
// an iteration.
func (p *pass) deref(v value.Value, src program.Expr) {
	if v == nil || isUndecided(v) {
		return
	}
	if _, isNull := unwrap(v).(*value.NullConstant); isNull {
		p.raise(diagnostic.NullPointerException, p.index, render(src))
		return
	}
	if hasNullAlternative(v) {
		p.raise(diagnostic.PotentialNullPointerException, p.index, render(src))
		return
	}
	vv, ok := unwrap(v).(*value.VariableValue)
	if !ok || value.IsNotNullIntrinsic(v) || p.provenNotNull(v) {
		return
	}
	p.contextNotNull(vv.Var)
}

// provenNotNull reports whether the state excludes that v is null.
func (p *pass) provenNotNull(v value.Value) bool {
	abs := value.NewAnd(p.cond, p.state)
	return value.IsFalse(value.NewAnd(abs, value.NewEquals(v, value.Null)))
}

// hasNullAlternative reports whether v is a conditional with null as one of its outcomes.
func hasNullAlternative(v value.Value) bool {
	c, ok := unwrap(v).(*value.Conditional)
	if !ok {
		return false
	}
	for _, alt := range []value.Value{c.Then, c.Else} {
		if _, isNull := unwrap(alt).(*value.NullConstant); isNull || hasNullAlternative(alt) {
			return true
		}
	}
	return false
}

func render(e program.Expr) string {
	switch e := e.(type) {
	case *program.Name:
		return e.Ident
	case *program.FieldAccess:
		return e.Name
	case *program.This:
		return "this"
	case *program.NullLit:
		return "null"
	}
	return ""
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

// notNull is the nullability of a value outside the state, resolving variables and method calls
// through their analyses. Delay means it cannot be known yet.
func (p *pass) notNull(v value.Value) property.DV {
	if p.provenNotNull(v) {
		return property.EffectivelyNotNull
	}
	return p.notNullOutside(v)
}

func (p *pass) notNullOutside(v value.Value) property.DV {
	switch x := v.(type) {
	case *value.Conditional:
		return property.NotNullExpression.MergeAll(p.notNullOutside(x.Then), p.notNullOutside(x.Else))
	case *value.PropertyWrapper:
		if dv, ok := x.Props[property.NotNullExpression]; ok {
			return dv
		}
		return p.notNullOutside(x.X)
	}
	if dv := value.PropertyOutsideContext(v, property.NotNullExpression); dv != property.Delay {
		return dv
	}
	switch x := v.(type) {
	case *value.VariableValue:
		switch y := x.Var.(type) {
		case *variable.Parameter:
			if y.Param.Owner == p.m {
				return p.ma.Params[y.Param.Index].Props.Get(property.NotNullParameter)
			}
		case *variable.Field:
			if fa := p.reg.Field(y.Field); fa != nil && y.IsThisField() && !y.Field.Owner.Library {
				return fa.Props.Get(property.ExternalNotNull)
			}
		}
	case *value.MethodCallValue:
		if cma := p.reg.Method(x.Method); cma != nil {
			return cma.Props.Get(property.NotNullExpression)
		}
	case *value.Delayed:
		return property.Delay
	}
	return property.Nullable
}

// immutable is the immutability of a value, from its shape or from the type analysis of its type.
func (p *pass) immutable(v value.Value) property.DV {
	switch x := v.(type) {
	case *value.Conditional:
		return property.Immutable.MergeAll(p.immutable(x.Then), p.immutable(x.Else))
	case *value.PropertyWrapper:
		if dv, ok := x.Props[property.Immutable]; ok {
			return dv
		}
		return p.immutable(x.X)
	}
	if dv := value.PropertyOutsideContext(v, property.Immutable); dv != property.Delay {
		return dv
	}
	switch x := v.(type) {
	case *value.VariableValue:
		return p.typeImmutable(x.Var.Type())
	case *value.MethodCallValue:
		if cma := p.reg.Method(x.Method); cma != nil {
			return cma.Props.Get(property.Immutable)
		}
	case *value.Instance:
		return p.typeImmutable(x.Type)
	case *value.NewObject:
		return p.typeImmutable(program.TypeRef{Name: x.Type})
	case *value.Delayed:
		return property.Delay
	case *value.NoValue:
		return property.Mutable
	}
	return property.Mutable
}

// typeImmutable is the immutability of a declared type; Delay while the type is being analysed.
func (p *pass) typeImmutable(ref program.TypeRef) property.DV {
	return analysis.ImmutableOf(p.prog, p.reg, ref)
}

// linkReturn records the fields of this the returned value may share object identity with.
func (p *pass) linkReturn(v value.Value) {
	for _, key := range p.linkedKeys(v) {
		vi := p.env.get(key)
		if vi == nil {
			continue
		}
		if fv, ok := vi.Variable.(*variable.Field); ok && fv.IsThisField() && fv.Field.Owner == p.m.Owner &&
			!slices.Contains(p.level.ReturnLinkedFields, fv.Field) {
			p.level.ReturnLinkedFields = append(p.level.ReturnLinkedFields, fv.Field)
		}
	}
}
