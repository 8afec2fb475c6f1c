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

package program

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/immutaway/config"
)

// ResolveError reports a name that could not be bound to a declaration.
type ResolveError struct {
	Pos Pos
	Msg string
}

func (e *ResolveError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

type scope struct {
	parent *scope
	owner  *Type
	// method is set on the scope that introduces a method's parameters.
	method *Method
	static bool
	locals map[string]*LocalVariable
}

func (s *scope) child() *scope {
	return &scope{parent: s, owner: s.owner, static: s.static}
}

func (s *scope) enclosingMethod() *Method {
	for c := s; c != nil; c = c.parent {
		if c.method != nil {
			return c.method
		}
	}
	return nil
}

func (s *scope) lookup(name string) (*LocalVariable, *Parameter) {
	for c := s; c != nil; c = c.parent {
		if l, ok := c.locals[name]; ok {
			return l, nil
		}
		if c.method != nil {
			for _, p := range c.method.Params {
				if p.Name == name {
					return nil, p
				}
			}
		}
	}
	return nil, nil
}

func (s *scope) declare(l *LocalVariable) {
	if s.locals == nil {
		s.locals = make(map[string]*LocalVariable)
	}
	m := s.enclosingMethod()
	l.Owner = m
	if m != nil {
		l.ID = len(m.Locals)
		m.Locals = append(m.Locals, l)
	}
	s.locals[l.Name] = l
}

type resolver struct {
	prog *Program
	errs []error
}

// Resolve binds every name of the analysed types to its declaration, types the expressions far
// enough to find the callees, and turns lambdas into synthetic methods of their enclosing type.
func Resolve(p *Program) error {
	r := &resolver{prog: p}
	for _, t := range p.Types {
		r.resolveType(t)
	}
	return errors.Join(r.errs...)
}

func (r *resolver) errorf(pos Pos, format string, args ...any) {
	r.errs = append(r.errs, &ResolveError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (r *resolver) resolveType(t *Type) {
	for _, f := range t.Fields {
		f.Owner = t
		if f.Init != nil {
			r.expr(&scope{owner: t, static: f.Static}, f.Init, f.Type)
		}
	}
	// Lambdas append synthetic methods while we iterate; those are resolved when created.
	methods := t.Methods
	for _, m := range methods {
		m.Owner = t
		for i, p := range m.Params {
			p.Owner = m
			p.Index = i
		}
		if m.Body != nil {
			r.block(&scope{owner: t, method: m, static: m.Static}, m.Body)
		}
	}
}

func (r *resolver) block(s *scope, b *Block) {
	inner := s.child()
	for _, st := range b.Stmts {
		r.stmt(inner, st)
	}
}

func (r *resolver) optBlock(s *scope, b *Block) {
	if b != nil {
		r.block(s, b)
	}
}

func (r *resolver) stmt(s *scope, st Stmt) {
	switch st := st.(type) {
	case *Block:
		r.block(s, st)
	case *ExprStmt:
		r.expr(s, st.X, TypeRef{})
	case *LocalVar:
		if st.Init != nil {
			r.expr(s, st.Init, st.Var.Type)
		}
		s.declare(st.Var)
	case *If:
		r.expr(s, st.Cond, Boolean)
		r.block(s, st.Then)
		r.optBlock(s, st.Else)
	case *While:
		r.expr(s, st.Cond, Boolean)
		r.block(s, st.Body)
	case *For:
		inner := s.child()
		for _, i := range st.Init {
			r.stmt(inner, i)
		}
		if st.Cond != nil {
			r.expr(inner, st.Cond, Boolean)
		}
		for _, u := range st.Update {
			r.expr(inner, u, TypeRef{})
		}
		r.block(inner, st.Body)
	case *ForEach:
		r.expr(s, st.Iterable, TypeRef{})
		inner := s.child()
		inner.declare(st.Var)
		r.block(inner, st.Body)
	case *Switch:
		sel := r.expr(s, st.Selector, TypeRef{})
		for _, c := range st.Cases {
			for _, l := range c.Labels {
				r.expr(s, l, sel)
			}
			r.block(s, c.Body)
		}
	case *Return:
		if st.X != nil {
			var expected TypeRef
			if m := s.enclosingMethod(); m != nil {
				expected = m.Return
			}
			r.expr(s, st.X, expected)
		}
	case *Throw:
		r.expr(s, st.X, TypeRef{})
	case *Assert:
		r.expr(s, st.Cond, Boolean)
	case *Break, *Continue:
	default:
		r.errorf(st.Position(), "unsupported statement %T", st)
	}
}

// expr resolves e, records and returns its static type. expected is the target type, needed for
// lambdas and method references; it is empty when unknown.
func (r *resolver) expr(s *scope, e Expr, expected TypeRef) TypeRef {
	t := r.exprType(s, e, expected)
	r.prog.exprTypes[e] = t
	return t
}

func (r *resolver) exprType(s *scope, e Expr, expected TypeRef) TypeRef {
	switch e := e.(type) {
	case *IntLit:
		return Int
	case *BoolLit:
		return Boolean
	case *StringLit:
		return String
	case *NullLit:
		return Null
	case *This:
		return TypeRef{Name: s.owner.FQN()}
	case *Name:
		return r.name(s, e)
	case *FieldAccess:
		return r.fieldAccess(s, e)
	case *ArrayAccess:
		arr := r.expr(s, e.X, TypeRef{})
		r.expr(s, e.Index, Int)
		if !arr.IsArray() {
			r.errorf(e.Position(), "indexing a non-array of type %s", arr)
			return TypeRef{}
		}
		return arr.Elem()
	case *Binary:
		x := r.expr(s, e.X, TypeRef{})
		y := r.expr(s, e.Y, TypeRef{})
		switch e.Op {
		case "&&", "||", "==", "!=", "<", "<=", ">", ">=":
			return Boolean
		case "+":
			if x.IsString() || y.IsString() {
				return String
			}
		}
		if x.IsPrimitive() {
			return x
		}
		return Int
	case *Unary:
		x := r.expr(s, e.X, TypeRef{})
		if e.Op == "!" {
			return Boolean
		}
		return x
	case *Conditional:
		r.expr(s, e.Cond, Boolean)
		t := r.expr(s, e.Then, expected)
		f := r.expr(s, e.Else, expected)
		if t == Null {
			return f
		}
		return t
	case *Assign:
		target := r.expr(s, e.Target, TypeRef{})
		r.expr(s, e.Value, target)
		return target
	case *Call:
		return r.call(s, e)
	case *New:
		return r.newObject(s, e)
	case *NewArray:
		r.expr(s, e.Len, Int)
		return TypeRef{Name: e.Elem.Name, Dims: e.Elem.Dims + 1}
	case *Lambda:
		r.lambda(s, e, expected)
		return expected
	case *MethodRef:
		r.methodRef(s, e, expected)
		return expected
	}
	r.errorf(e.Position(), "unsupported expression %T", e)
	return TypeRef{}
}

func (r *resolver) name(s *scope, e *Name) TypeRef {
	if l, p := s.lookup(e.Ident); l != nil {
		e.Local = l
		return l.Type
	} else if p != nil {
		e.Param = p
		return p.Type
	}
	if f := s.owner.Field(e.Ident); f != nil {
		e.Field = f
		return f.Type
	}
	if t := r.prog.LookupType(e.Ident); t != nil {
		e.Type = t
		return TypeRef{Name: t.FQN()}
	}
	r.errorf(e.Position(), "cannot resolve %q", e.Ident)
	return TypeRef{}
}

func (r *resolver) fieldAccess(s *scope, e *FieldAccess) TypeRef {
	scopeType := r.expr(s, e.X, TypeRef{})
	if scopeType.IsArray() && e.Name == "length" {
		e.ArrayLength = true
		return Int
	}
	t := r.prog.LookupType(scopeType.Name)
	if t == nil {
		r.errorf(e.Position(), "unknown type %q for field %s", scopeType, e.Name)
		return TypeRef{}
	}
	f := t.Field(e.Name)
	if f == nil {
		r.errorf(e.Position(), "type %s has no field %s", t, e.Name)
		return TypeRef{}
	}
	e.Field = f
	return f.Type
}

func (r *resolver) call(s *scope, e *Call) TypeRef {
	var owner *Type
	if e.X == nil {
		owner = s.owner
	} else {
		scopeType := r.expr(s, e.X, TypeRef{})
		owner = r.prog.LookupType(scopeType.Name)
		if owner == nil {
			r.errorf(e.Position(), "unknown type %q for call to %s", scopeType, e.Name)
			return TypeRef{}
		}
	}
	m := r.findMethod(owner, e.Name, len(e.Args), map[*Type]bool{})
	if m == nil {
		r.errorf(e.Position(), "type %s has no method %s with %d argument(s)", owner, e.Name, len(e.Args))
		return TypeRef{}
	}
	e.Method = m
	for i, a := range e.Args {
		r.expr(s, a, m.Params[i].Type)
	}
	return m.Return
}

func (r *resolver) findMethod(t *Type, name string, args int, seen map[*Type]bool) *Method {
	if t == nil || seen[t] {
		return nil
	}
	seen[t] = true
	for _, m := range t.Methods {
		if !m.Constructor && m.Name == name && len(m.Params) == args {
			return m
		}
	}
	for _, super := range t.Supertypes {
		if m := r.findMethod(r.prog.LookupType(super), name, args, seen); m != nil {
			return m
		}
	}
	return nil
}

func (r *resolver) newObject(s *scope, e *New) TypeRef {
	t := r.prog.LookupType(e.TypeName)
	if t == nil {
		r.errorf(e.Position(), "unknown type %q", e.TypeName)
		return TypeRef{}
	}
	e.Class = t
	for _, c := range t.Constructors() {
		if len(c.Params) == len(e.Args) {
			e.Ctor = c
			break
		}
	}
	for i, a := range e.Args {
		expected := TypeRef{}
		if e.Ctor != nil {
			expected = e.Ctor.Params[i].Type
		}
		r.expr(s, a, expected)
	}
	return TypeRef{Name: t.FQN()}
}

func (r *resolver) samOf(pos Pos, expected TypeRef) (*Type, *Method) {
	iface := r.prog.LookupType(expected.Name)
	if iface == nil {
		r.errorf(pos, "cannot infer the functional interface of %q", expected)
		return nil, nil
	}
	sam := iface.SAM()
	if sam == nil {
		r.errorf(pos, "%s is not a functional interface", iface)
		return nil, nil
	}
	return iface, sam
}

func (r *resolver) lambda(s *scope, e *Lambda, expected TypeRef) {
	iface, sam := r.samOf(e.Position(), expected)
	if sam == nil {
		return
	}
	if len(sam.Params) != len(e.Params) {
		r.errorf(e.Position(), "lambda has %d parameter(s), %s.%s expects %d", len(e.Params), iface, sam.Name, len(sam.Params))
		return
	}
	owner := s.owner
	owner.lambdas++
	m := &Method{
		Owner:     owner,
		Name:      config.LambdaPrefix + strconv.Itoa(owner.lambdas),
		Return:    sam.Return,
		Access:    Private,
		Static:    s.static,
		Synthetic: true,
		Interface: iface,
		Pos:       e.Position(),
	}
	for i, name := range e.Params {
		m.Params = append(m.Params, &Parameter{Owner: m, Index: i, Name: name, Type: sam.Params[i].Type, Pos: e.Position()})
	}
	var body Stmt
	if sam.IsVoid() {
		body = &ExprStmt{node: node{P: e.Body.Position()}, X: e.Body}
	} else {
		body = &Return{node: node{P: e.Body.Position()}, X: e.Body}
	}
	m.Body = &Block{node: node{P: e.Position()}, Stmts: []Stmt{body}}
	owner.Methods = append(owner.Methods, m)
	e.Method = m

	r.block(&scope{parent: s, owner: owner, method: m, static: s.static}, m.Body)
}

func (r *resolver) methodRef(s *scope, e *MethodRef, expected TypeRef) {
	var target *Type
	switch x := e.X.(type) {
	case *This:
		target = s.owner
	case *Name:
		if l, p := s.lookup(x.Ident); l != nil || p != nil || s.owner.Field(x.Ident) != nil {
			ref := r.expr(s, x, TypeRef{})
			target = r.prog.LookupType(ref.Name)
		} else {
			target = r.prog.LookupType(x.Ident)
			x.Type = target
		}
	default:
		ref := r.expr(s, e.X, TypeRef{})
		target = r.prog.LookupType(ref.Name)
	}
	if target == nil {
		r.errorf(e.Position(), "cannot resolve the target of method reference ::%s", e.Name)
		return
	}
	want := -1
	if !expected.IsVoid() {
		if _, sam := r.samOf(e.Position(), expected); sam != nil {
			want = len(sam.Params)
		}
	}
	for _, m := range target.Methods {
		if m.Name != e.Name || m.Constructor {
			continue
		}
		if want < 0 || len(m.Params) == want || (!m.Static && len(m.Params) == want-1) {
			e.Method = m
			return
		}
	}
	r.errorf(e.Position(), "type %s has no method %s matching the method reference", target, e.Name)
}
