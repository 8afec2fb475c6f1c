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

// Package variable defines the storage locations tracked by the statement analyser: locals,
// parameters, field references, this, array elements and the synthetic return variable.
package variable

import (
	"go.uber.org/immutaway/program"
)

// Kind distinguishes the variable implementations.
type Kind int

// The kinds of variables.
const (
	KindLocal Kind = iota
	KindParameter
	KindField
	KindThis
	KindDependent
	KindReturn
)

// Variable is a named, typed storage location. Two variables are the same when their keys are
// equal.
type Variable interface {
	// Key is the fully qualified identity of the variable.
	Key() string
	// Name is the rendering of the variable inside values.
	Name() string
	Kind() Kind
	Type() program.TypeRef
}

// Local is a local variable of a method.
type Local struct {
	Decl *program.LocalVariable
}

// NewLocal wraps a local variable declaration.
func NewLocal(decl *program.LocalVariable) *Local { return &Local{Decl: decl} }

func (l *Local) Key() string           { return l.Decl.FQN() }
func (l *Local) Name() string          { return l.Decl.Name }
func (l *Local) Kind() Kind            { return KindLocal }
func (l *Local) Type() program.TypeRef { return l.Decl.Type }

// Parameter is a formal parameter of a method.
type Parameter struct {
	Param *program.Parameter
}

// NewParameter wraps a parameter.
func NewParameter(p *program.Parameter) *Parameter { return &Parameter{Param: p} }

func (p *Parameter) Key() string           { return p.Param.FQN() }
func (p *Parameter) Name() string          { return p.Param.Name }
func (p *Parameter) Kind() Kind            { return KindParameter }
func (p *Parameter) Type() program.TypeRef { return p.Param.Type }

// This is the this reference of a type.
type This struct {
	Owner *program.Type
}

// NewThis returns the this variable of the type.
func NewThis(t *program.Type) *This { return &This{Owner: t} }

func (t *This) Key() string           { return t.Owner.FQN() + ".this" }
func (t *This) Name() string          { return "this" }
func (t *This) Kind() Kind            { return KindThis }
func (t *This) Type() program.TypeRef { return program.TypeRef{Name: t.Owner.FQN()} }

// Field is a field reached through a scope. A nil Scope is the implicit this, or the type itself
// for static fields.
type Field struct {
	Field *program.Field
	Scope Variable
}

// NewField returns the field reference; scope may be nil.
func NewField(f *program.Field, scope Variable) *Field { return &Field{Field: f, Scope: scope} }

func (f *Field) Key() string {
	if f.IsThisField() {
		return f.Field.FQN()
	}
	return f.Scope.Key() + "." + f.Field.FQN()
}

func (f *Field) Name() string {
	if f.IsThisField() {
		return f.Field.Name
	}
	return f.Scope.Name() + "." + f.Field.Name
}

func (f *Field) Kind() Kind            { return KindField }
func (f *Field) Type() program.TypeRef { return f.Field.Type }

// IsThisField reports whether the field is reached through this (or statically).
func (f *Field) IsThisField() bool {
	if f.Scope == nil {
		return true
	}
	_, ok := f.Scope.(*This)
	return ok
}

// Dependent is one element of an array. It is identified by the array variable and the canonical
// rendering of the evaluated index, never by the index's source text.
type Dependent struct {
	Array Variable
	Index string
	// Suffix distinguishes elements whose index is not invariant, e.g. a loop variable that is
	// re-assigned; it is the assignment id of the index variable.
	Suffix string
}

// NewDependent returns the element variable.
func NewDependent(array Variable, index, suffix string) *Dependent {
	return &Dependent{Array: array, Index: index, Suffix: suffix}
}

func (d *Dependent) Key() string {
	k := d.Array.Key() + "[" + d.Index + "]"
	if d.Suffix != "" {
		k += "$" + d.Suffix
	}
	return k
}

func (d *Dependent) Name() string          { return d.Array.Name() + "[" + d.Index + "]" }
func (d *Dependent) Kind() Kind            { return KindDependent }
func (d *Dependent) Type() program.TypeRef { return d.Array.Type().Elem() }

// Return is the synthetic variable holding a method's return value.
type Return struct {
	Method *program.Method
}

// NewReturn returns the return variable of the method.
func NewReturn(m *program.Method) *Return { return &Return{Method: m} }

func (r *Return) Key() string           { return r.Method.FQN() + ":return" }
func (r *Return) Name() string          { return "return " + r.Method.Name }
func (r *Return) Kind() Kind            { return KindReturn }
func (r *Return) Type() program.TypeRef { return r.Method.Return }

// Same reports whether two variables have the same identity.
func Same(a, b Variable) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// Root returns the variable at the base of a chain of field and element references.
func Root(v Variable) Variable {
	for {
		switch x := v.(type) {
		case *Field:
			if x.Scope == nil {
				return v
			}
			v = x.Scope
		case *Dependent:
			v = x.Array
		default:
			return v
		}
	}
}
