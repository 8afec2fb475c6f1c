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

// Package program defines the fully resolved program model consumed by the analyser: types,
// fields, methods, parameters and statement trees, with every name bound to its declaration.
// The model is produced by a front end; this package also reads a YAML serialisation of it.
package program

import (
	"fmt"
	"strings"
)

// Pos is a source position.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Access is the declared visibility of a member.
type Access int

// Access levels, from most to least restrictive.
const (
	Private Access = iota
	PackagePrivate
	Protected
	Public
)

func (a Access) String() string {
	switch a {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	default:
		return "package"
	}
}

// Annotations are the declared annotations of an element, by simple name. The value is the single
// annotation parameter, or "" when there is none.
type Annotations map[string]string

// Has reports whether the annotation is present.
func (a Annotations) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Program is the set of types to analyse plus the library types they refer to.
type Program struct {
	Types   []*Type
	Library []*Type

	byName    map[string]*Type
	exprTypes map[Expr]TypeRef
}

// NewProgram creates a program from its own types and the library types they may refer to.
func NewProgram(types []*Type, library []*Type) *Program {
	p := &Program{Types: types, Library: library, byName: make(map[string]*Type), exprTypes: make(map[Expr]TypeRef)}
	for i, t := range types {
		t.ID = i
		p.register(t)
	}
	for i, t := range library {
		t.ID = len(types) + i
		t.Library = true
		p.register(t)
	}
	return p
}

func (p *Program) register(t *Type) {
	p.byName[t.FQN()] = t
	if _, taken := p.byName[t.Name]; !taken {
		p.byName[t.Name] = t
	}
}

// LookupType finds a type by fully qualified or simple name.
func (p *Program) LookupType(name string) *Type {
	return p.byName[name]
}

// TypeOf returns the static type of a resolved expression.
func (p *Program) TypeOf(e Expr) TypeRef {
	return p.exprTypes[e]
}

// Methods returns every method of the analysed types, including synthetic lambda methods.
func (p *Program) Methods() []*Method {
	var out []*Method
	for _, t := range p.Types {
		out = append(out, t.Methods...)
	}
	return out
}

// Fields returns every field of the analysed types.
func (p *Program) Fields() []*Field {
	var out []*Field
	for _, t := range p.Types {
		out = append(out, t.Fields...)
	}
	return out
}

// Type is a class or interface.
type Type struct {
	ID          int
	Name        string
	Package     string
	Interface   bool
	Library     bool
	Supertypes  []string
	Annotations Annotations
	Fields      []*Field
	Methods     []*Method
	Pos         Pos

	lambdas int
}

// FQN returns the fully qualified name.
func (t *Type) FQN() string {
	if t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

func (t *Type) String() string { return t.FQN() }

// Field finds a field by name.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Constructors returns the constructors of the type.
func (t *Type) Constructors() []*Method {
	var out []*Method
	for _, m := range t.Methods {
		if m.Constructor {
			out = append(out, m)
		}
	}
	return out
}

// SAM returns the single abstract method of a functional interface, or nil.
func (t *Type) SAM() *Method {
	if !t.Interface {
		return nil
	}
	var sam *Method
	for _, m := range t.Methods {
		if m.Abstract && !m.Static {
			if sam != nil {
				return nil
			}
			sam = m
		}
	}
	return sam
}

// IsFunctional reports whether the type is a functional interface.
func (t *Type) IsFunctional() bool { return t.SAM() != nil }

// Field is a field of a type.
type Field struct {
	Owner       *Type
	Name        string
	Type        TypeRef
	Access      Access
	Final       bool
	Static      bool
	Init        Expr
	Annotations Annotations
	Pos         Pos
}

// FQN returns the fully qualified name.
func (f *Field) FQN() string { return f.Owner.FQN() + "." + f.Name }

func (f *Field) String() string { return f.FQN() }

// Method is a method, a constructor, or the synthetic method of a lambda.
type Method struct {
	Owner       *Type
	Name        string
	Params      []*Parameter
	Return      TypeRef
	Access      Access
	Static      bool
	Abstract    bool
	Constructor bool
	// Synthetic methods are generated for lambdas; Interface is then the functional interface the
	// lambda implements.
	Synthetic   bool
	Interface   *Type
	Overrides   bool
	Annotations Annotations
	Body        *Block
	Locals      []*LocalVariable
	Pos         Pos
}

// FQN returns the fully qualified name including parameter types.
func (m *Method) FQN() string {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type.String()
	}
	return m.Owner.FQN() + "." + m.Name + "(" + strings.Join(types, ",") + ")"
}

func (m *Method) String() string { return m.FQN() }

// IsVoid reports whether the method returns nothing. Constructors are void.
func (m *Method) IsVoid() bool { return m.Constructor || m.Return.IsVoid() }

// Parameter is a formal parameter.
type Parameter struct {
	Owner       *Method
	Index       int
	Name        string
	Type        TypeRef
	Annotations Annotations
	Pos         Pos
}

// FQN returns the parameter's name qualified by method and index.
func (p *Parameter) FQN() string { return fmt.Sprintf("%s:%d:%s", p.Owner.FQN(), p.Index, p.Name) }

// LocalVariable is a local variable declaration, including loop variables.
type LocalVariable struct {
	Owner *Method
	ID    int
	Name  string
	Type  TypeRef
	Pos   Pos
}

// FQN returns the local's name qualified by method and declaration number.
func (l *LocalVariable) FQN() string { return fmt.Sprintf("%s:%s#%d", l.Owner.FQN(), l.Name, l.ID) }
