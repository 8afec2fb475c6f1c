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
	"errors"
	"strings"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
)

// eval evaluates an expression in the current environment and state, applying its side effects.
func (p *pass) eval(e program.Expr) value.Value {
	switch e := e.(type) {
	case *program.IntLit:
		return value.NewInt(e.Value)
	case *program.BoolLit:
		return value.NewBool(e.Value)
	case *program.StringLit:
		return value.NewString(e.Value)
	case *program.NullLit:
		return value.Null
	case *program.This:
		return p.read(p.thisVariable())
	case *program.Name:
		if v := p.variableOf(e); v != nil {
			return p.read(v)
		}
		return value.Unknown
	case *program.FieldAccess:
		if e.ArrayLength {
			arr := p.eval(e.X)
			p.deref(arr, e.X)
			return value.NewArrayLength(arr)
		}
		if v := p.variableOf(e); v != nil {
			return p.read(v)
		}
		return value.NewInstance(e.Field.Type, p.index, false)
	case *program.ArrayAccess:
		if v := p.variableOf(e); v != nil {
			return p.read(v)
		}
		return p.unknownElement(e)
	case *program.Binary:
		return p.binary(e)
	case *program.Unary:
		return p.unary(e)
	case *program.Conditional:
		return p.conditional(e)
	case *program.Assign:
		return p.assignment(e)
	case *program.Call:
		return p.call(e)
	case *program.New:
		return p.newObject(e)
	case *program.NewArray:
		return value.NewNewArray(e.Elem, p.eval(e.Len))
	case *program.Lambda:
		p.capture(e.Body)
		return value.NewInstance(p.prog.TypeOf(e), p.index, true)
	case *program.MethodRef:
		switch x := e.X.(type) {
		case *program.This:
			p.thisAccessed = true
		case *program.Name:
			if x.Type == nil {
				p.deref(p.eval(x), x)
			}
		default:
			p.deref(p.eval(x), x)
		}
		return value.NewInstance(p.prog.TypeOf(e), p.index, true)
	}
	return value.Unknown
}

func (p *pass) thisVariable() variable.Variable {
	p.thisAccessed = true
	if p.this == nil {
		return variable.NewThis(p.m.Owner)
	}
	return p.this
}

// unknownElement is the value of an element of an array that is not held by a variable.
func (p *pass) unknownElement(e *program.ArrayAccess) value.Value {
	arr := p.eval(e.X)
	p.deref(arr, e.X)
	idx := p.eval(e.Index)
	if isUndecided(idx) {
		return idx
	}
	return value.NewInstance(p.prog.TypeOf(e), p.index, false)
}

// variableOf returns the variable an expression denotes, evaluating (and dereferencing) the scopes
// on the way, or nil when the expression is not a variable.
func (p *pass) variableOf(e program.Expr) variable.Variable {
	switch e := e.(type) {
	case *program.This:
		return p.thisVariable()
	case *program.Name:
		switch {
		case e.Local != nil:
			return variable.NewLocal(e.Local)
		case e.Param != nil:
			return variable.NewParameter(e.Param)
		case e.Field != nil:
			return p.ownField(e.Field)
		}
	case *program.FieldAccess:
		if e.ArrayLength || e.Field == nil {
			return nil
		}
		if e.Field.Static {
			return variable.NewField(e.Field, nil)
		}
		if _, ok := e.X.(*program.This); ok {
			return p.ownField(e.Field)
		}
		sv := p.variableOf(e.X)
		var scope value.Value
		if sv != nil {
			scope = p.read(sv)
		} else {
			scope = p.eval(e.X)
		}
		p.deref(scope, e.X)
		if sv == nil {
			return nil
		}
		return variable.NewField(e.Field, sv)
	case *program.ArrayAccess:
		av := p.variableOf(e.X)
		if av == nil {
			return nil
		}
		arr := p.read(av)
		p.deref(arr, e.X)
		idx := p.eval(e.Index)
		if isUndecided(idx) {
			return nil
		}
		return variable.NewDependent(av, idx.String(), p.indexSuffix(idx))
	}
	return nil
}

// syntacticVariable is variableOf without evaluation; element accesses are not resolved.
func (p *pass) syntacticVariable(e program.Expr) variable.Variable {
	switch e := e.(type) {
	case *program.Name:
		switch {
		case e.Local != nil:
			return variable.NewLocal(e.Local)
		case e.Param != nil:
			return variable.NewParameter(e.Param)
		case e.Field != nil:
			return variable.NewField(e.Field, p.this)
		}
	case *program.FieldAccess:
		if e.ArrayLength || e.Field == nil {
			return nil
		}
		if _, ok := e.X.(*program.This); ok || e.Field.Static {
			return variable.NewField(e.Field, p.this)
		}
		if sv := p.syntacticVariable(e.X); sv != nil {
			return variable.NewField(e.Field, sv)
		}
	}
	return nil
}

func (p *pass) ownField(f *program.Field) variable.Variable {
	if f.Static {
		return variable.NewField(f, nil)
	}
	p.thisAccessed = true
	return variable.NewField(f, p.this)
}

// indexSuffix distinguishes the elements selected by an index that refers to variables assigned in
// a loop: the suffix is their current assignment id.
func (p *pass) indexSuffix(idx value.Value) string {
	var parts []string
	for _, v := range value.Variables(idx) {
		if !p.loopVars[v.Key()] {
			continue
		}
		if vi := p.env.get(v.Key()); vi != nil && vi.AssignmentID != "" {
			parts = append(parts, vi.AssignmentID)
		}
	}
	return strings.Join(parts, ",")
}

func (p *pass) binary(e *program.Binary) value.Value {
	switch e.Op {
	case "&&", "||":
		l := p.eval(e.X)
		save := p.state
		if e.Op == "&&" {
			p.state = value.NewAnd(p.state, l)
		} else {
			p.state = value.NewAnd(p.state, value.Not(l))
		}
		r := p.eval(e.Y)
		p.state = save
		if e.Op == "&&" {
			return value.NewAnd(l, r)
		}
		return value.NewOr(l, r)
	}
	l, r := p.eval(e.X), p.eval(e.Y)
	xt, yt := p.prog.TypeOf(e.X), p.prog.TypeOf(e.Y)
	integral := xt.IsIntegral() && yt.IsIntegral()
	long := xt.Name == "long" || yt.Name == "long"
	return p.operate(e.Op, l, r, integral, long, p.prog.TypeOf(e).IsString())
}

// operate combines two values with a binary operator. Constant results of int arithmetic wrap
// around at 32 bits.
func (p *pass) operate(op string, l, r value.Value, integral, long, str bool) value.Value {
	v := p.combine(op, l, r, integral, str)
	if integral && !long {
		return value.ToInt32(v)
	}
	return v
}

func (p *pass) combine(op string, l, r value.Value, integral, str bool) value.Value {
	switch op {
	case "==":
		return value.NewEquals(l, r)
	case "!=":
		return value.Not(value.NewEquals(l, r))
	case "<", "<=", ">", ">=":
		if integral {
			return value.NewCompare(op, l, r)
		}
	case "+":
		if integral && !str {
			return value.NewSum(l, r)
		}
	case "-":
		if integral {
			return value.NewSubtract(l, r)
		}
	case "*":
		if integral {
			return value.NewProduct(l, r)
		}
	case "/", "%":
		if integral {
			divide := value.NewDivide
			if op == "%" {
				divide = value.NewRemainder
			}
			if p.zeroUnderState(r) {
				p.raise(diagnostic.DivisionByZero, p.index, "")
				return value.Unknown
			}
			v, err := divide(l, r)
			if errors.Is(err, value.ErrDivisionByZero) {
				p.raise(diagnostic.DivisionByZero, p.index, "")
			}
			return v
		}
	}
	return value.NewBinaryOp(op, l, r)
}

// zeroUnderState reports whether a divisor that is not a constant can only be zero in the current
// state, as in the then-branch of if (i == 0).
func (p *pass) zeroUnderState(r value.Value) bool {
	if value.IsConstant(r) || isUndecided(r) {
		return false
	}
	abs := value.NewAnd(p.cond, p.state)
	if isUndecided(abs) || value.IsFalse(abs) {
		return false
	}
	return value.IsFalse(value.NewAnd(abs, value.Not(value.NewEquals(r, value.NewInt(0)))))
}

func (p *pass) unary(e *program.Unary) value.Value {
	switch e.Op {
	case "!":
		return value.Not(p.eval(e.X))
	case "-":
		v := value.NewNegate(p.eval(e.X))
		if p.prog.TypeOf(e.X).Name != "long" {
			v = value.ToInt32(v)
		}
		return v
	case "+":
		return p.eval(e.X)
	case "++", "--":
		target := p.variableOf(e.X)
		if target == nil {
			return value.Unknown
		}
		old := p.read(target)
		delta := value.NewInt(1)
		if e.Op == "--" {
			delta = value.NewInt(-1)
		}
		nv := value.NewSum(old, delta)
		if target.Type().Name != "long" {
			nv = value.ToInt32(nv)
		}
		p.assign(target, nv)
		if e.Postfix {
			return old
		}
		return nv
	}
	return value.NewBinaryOp(e.Op, p.eval(e.X), value.Unknown)
}

// conditional evaluates a ternary. A condition that is constant under the state selects its branch
// and makes the other unreachable.
func (p *pass) conditional(e *program.Conditional) value.Value {
	c := p.eval(e.Cond)
	abs := value.NewAnd(p.cond, p.state)
	if !isUndecided(c) && !isUndecided(abs) && !value.IsFalse(abs) {
		always := value.IsTrue(c) || value.IsFalse(value.NewAnd(abs, value.Not(c)))
		never := value.IsFalse(c) || value.IsFalse(value.NewAnd(abs, c))
		if always || never {
			p.raise(diagnostic.UnreachableStatement, p.index, c.String())
			if always {
				return p.eval(e.Then)
			}
			return p.eval(e.Else)
		}
	}
	save := p.state
	p.state = value.NewAnd(save, c)
	t := p.eval(e.Then)
	p.state = value.NewAnd(save, value.Not(c))
	f := p.eval(e.Else)
	p.state = save
	return value.NewConditional(c, t, f)
}

func (p *pass) assignment(e *program.Assign) value.Value {
	target := p.variableOf(e.Target)
	rhs := p.eval(e.Value)
	if op := strings.TrimSuffix(e.Op, "="); op != "" && e.Op != "=" {
		if target == nil {
			return value.Unknown
		}
		cur := p.read(target)
		integral := target.Type().IsIntegral() && p.prog.TypeOf(e.Value).IsIntegral()
		rhs = p.operate(op, cur, rhs, integral, target.Type().Name == "long", target.Type().IsString())
	} else if target != nil {
		if src := p.syntacticVariable(e.Value); src != nil && src.Key() == target.Key() {
			p.raise(diagnostic.AssignmentToSelf, p.index, target.Name())
		}
	}
	if target != nil {
		p.assign(target, rhs)
	}
	return rhs
}

// capture marks the variables of the enclosing method that a lambda body reads.
func (p *pass) capture(body program.Expr) {
	program.Inspect(body, func(n program.Node) bool {
		switch n := n.(type) {
		case *program.This:
			p.thisAccessed = true
		case *program.Name:
			switch {
			case n.Local != nil && n.Local.Owner == p.m:
				p.read(variable.NewLocal(n.Local))
			case n.Param != nil && n.Param.Owner == p.m:
				p.read(variable.NewParameter(n.Param))
			case n.Field != nil && !n.Field.Static:
				p.thisAccessed = true
			}
		case *program.Call:
			if n.X == nil && n.Method != nil && !n.Method.Static {
				p.thisAccessed = true
			}
		}
		return true
	})
}

func (p *pass) newObject(e *program.New) value.Value {
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = p.eval(a)
	}
	if e.Ctor != nil {
		if cma := p.reg.Method(e.Ctor); cma != nil {
			for i, arg := range args {
				p.passArgument(e.Ctor, cma, i, arg, e.Args[i])
			}
		}
	}
	return value.NewNewObject(e.TypeName, args)
}

func (p *pass) call(e *program.Call) value.Value {
	m := e.Method
	var (
		obj    value.Value
		objVar variable.Variable
	)
	switch x := e.X.(type) {
	case nil:
		if !m.Static {
			objVar = p.thisVariable()
			obj = p.read(objVar)
		}
	case *program.Name:
		if x.Type == nil {
			obj, objVar = p.scope(x)
		}
	default:
		obj, objVar = p.scope(x)
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = p.eval(a)
	}

	cma := p.reg.Method(m)
	if cma == nil {
		// Without a contract the callee may modify its object.
		if objVar != nil {
			p.modify(objVar)
		}
		if m.IsVoid() {
			return value.Unknown
		}
		return value.NewInstance(m.Return, p.index, false)
	}
	modified := p.calleeModification(m, cma, objVar)
	if modified == property.Delay {
		if !p.sameCycle(m) {
			if p.isThisOrOwnField(objVar) {
				p.level.ThisModifiedDelayed = true
			}
			p.delay("modification of " + m.Name)
			return value.NewDelayed("modification of " + m.Name)
		}
		if p.isThisOrOwnField(objVar) {
			p.level.CycleCalls = append(p.level.CycleCalls, m)
		}
	}
	for i, arg := range args {
		p.passArgument(m, cma, i, arg, e.Args[i])
	}
	p.eventualCall(m, cma, objVar)
	if modified.IsTrue() && objVar != nil {
		p.modify(objVar)
		if p.typeImmutable(objVar.Type()) == property.E2 {
			p.raise(diagnostic.CallingModifyingMethodOnE2Immutable, p.index, m.Name)
		}
	}
	if (e.X == nil || isThisExpr(e.X)) && !m.Static && m.Owner == p.m.Owner {
		p.calleePrecondition(m, cma)
	}
	return p.callValue(m, cma, modified, obj, args)
}

// eventualCall checks a call on an eventually immutable object against the side of the mark the
// object is known to be on, and moves the object past the mark when the callee is a mark method.
// Calls on this are covered by the preconditions of the type's own methods.
func (p *pass) eventualCall(m *program.Method, cma *analysis.MethodAnalysis, objVar variable.Variable) {
	if objVar == nil || m.Static || m.Constructor {
		return
	}
	if _, ok := objVar.(*variable.This); ok {
		return
	}
	vi := p.info(objVar)
	mark, markSet := cma.Mark.Get()
	only, onlySet := cma.Only.Get()
	if !markSet || !onlySet {
		if vi.Eventual != analysis.EventualUnknown && !p.sameCycle(m) {
			p.delay("eventual guard of " + m.Name)
		}
		return
	}
	switch {
	case mark != "" || (only != nil && !only.After):
		if vi.Eventual == analysis.AfterMark {
			p.raise(diagnostic.EventualBeforeRequired, p.index, m.Name)
		}
	case only != nil:
		if vi.Eventual == analysis.BeforeMark {
			p.raise(diagnostic.EventualAfterRequired, p.index, m.Name)
		}
	}
	if mark != "" {
		vi.Eventual = analysis.AfterMark
	}
}

// scope evaluates and dereferences the object of a call.
func (p *pass) scope(x program.Expr) (value.Value, variable.Variable) {
	v := p.variableOf(x)
	var obj value.Value
	if v != nil {
		obj = p.read(v)
	} else {
		obj = p.eval(x)
	}
	p.deref(obj, x)
	return obj, v
}

// calleeModification is the Modified property of the callee, or of the functional interface held
// in a field when the call goes through one.
func (p *pass) calleeModification(m *program.Method, cma *analysis.MethodAnalysis, objVar variable.Variable) property.DV {
	if fv, ok := objVar.(*variable.Field); ok && m.Abstract && m.Owner.IsFunctional() {
		if fa := p.reg.Field(fv.Field); fa != nil && !fv.Field.Owner.Library {
			return fa.Props.Get(property.Modified)
		}
	}
	return cma.Props.Get(property.Modified)
}

func (p *pass) sameCycle(m *program.Method) bool {
	return p.graph != nil && p.graph.SameCycle(p.m, m)
}

func (p *pass) isThisOrOwnField(v variable.Variable) bool {
	switch v := v.(type) {
	case *variable.This:
		return true
	case *variable.Field:
		return v.IsThisField()
	}
	return false
}

// passArgument applies the contract of a callee parameter to the argument: a not-null parameter
// dereferences it, a modified parameter modifies it.
func (p *pass) passArgument(m *program.Method, cma *analysis.MethodAnalysis, i int, arg value.Value, src program.Expr) {
	if i >= len(cma.Params) {
		return
	}
	pa := cma.Params[i]
	av := argumentVariable(arg)

	nn := pa.Props.Get(property.NotNullParameter)
	switch {
	case nn == property.Delay:
		if av != nil && !p.sameCycle(m) {
			p.delay("not-null of parameter " + pa.Param.Name + " of " + m.Name)
		}
	case nn >= property.EffectivelyNotNull:
		p.deref(arg, src)
	}

	mv := pa.Props.Get(property.ModifiedVariable)
	switch {
	case mv == property.Delay:
		if av != nil && !p.sameCycle(m) {
			p.delay("modification of parameter " + pa.Param.Name + " of " + m.Name)
		}
	case mv.IsTrue() && av != nil:
		p.modify(av)
	}
}

func argumentVariable(v value.Value) variable.Variable {
	if vv, ok := unwrap(v).(*value.VariableValue); ok {
		return vv.Var
	}
	return nil
}

// calleePrecondition adds the precondition of a method of this type called on this: it must hold
// here too, and holds afterwards.
func (p *pass) calleePrecondition(m *program.Method, cma *analysis.MethodAnalysis) {
	pre, ok := cma.Precondition.Get()
	if !ok {
		if !p.sameCycle(m) && m.Body != nil {
			p.preDelayed = true
			p.delay("precondition of " + m.Name)
		}
		return
	}
	if value.IsTrue(pre) || !p.onlyFields(pre) {
		return
	}
	abs := value.NewAnd(p.cond, p.state)
	contribution := pre
	if !value.IsTrue(abs) {
		contribution = value.NewOr(value.Not(abs), pre)
	}
	p.level.Preconditions = append(p.level.Preconditions, contribution)
	if p.record != nil && p.record.Precondition == nil {
		p.record.Precondition = contribution
	}
	p.state = value.NewAnd(p.state, pre)
}

func (p *pass) onlyFields(v value.Value) bool {
	for _, x := range value.Variables(v) {
		if fv, ok := x.(*variable.Field); !ok || !fv.IsThisField() {
			return false
		}
	}
	return true
}

// callValue is the value of a call once the callee's properties are known.
func (p *pass) callValue(m *program.Method, cma *analysis.MethodAnalysis, modified property.DV, obj value.Value,
	args []value.Value) value.Value {
	if m.IsVoid() {
		return value.Unknown
	}
	nn := cma.Props.Get(property.NotNullExpression)
	if modified.IsTrue() {
		return value.NewInstance(m.Return, p.index, nn >= property.EffectivelyNotNull)
	}
	constant := cma.Props.Get(property.Constant)
	identity := cma.Props.Get(property.Identity)
	fluent := cma.Props.Get(property.Fluent)
	if constant == property.Delay || identity == property.Delay || fluent == property.Delay {
		if !p.sameCycle(m) {
			p.delay("return value of " + m.Name)
			return value.NewDelayed("return value of " + m.Name)
		}
	}
	if constant.IsTrue() {
		if rv, ok := cma.ReturnValue.Get(); ok && value.IsConstant(rv) {
			return rv
		}
	}
	if identity.IsTrue() && len(args) > 0 {
		return args[0]
	}
	if fluent.IsTrue() && obj != nil {
		return obj
	}
	v := value.NewMethodCall(obj, m, args)
	if nn >= property.EffectivelyNotNull {
		v = value.Wrap(v, map[property.Property]property.DV{property.NotNullExpression: nn})
	}
	return v
}
