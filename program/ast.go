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

// Node is any statement or expression.
type Node interface {
	Position() Pos
}

type node struct {
	P Pos
}

func (n node) Position() Pos { return n.P }

// Stmt is a statement.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression.
type Expr interface {
	Node
	expr()
}

// Block is a sequence of statements.
type Block struct {
	node
	Stmts []Stmt
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	node
	X Expr
}

// LocalVar declares a local variable, with an optional initializer.
type LocalVar struct {
	node
	Var  *LocalVariable
	Init Expr
}

// If is an if statement; Else may be nil.
type If struct {
	node
	Cond Expr
	Then *Block
	Else *Block
}

// While is a while loop.
type While struct {
	node
	Cond Expr
	Body *Block
}

// For is a classic for loop. A nil Cond loops forever.
type For struct {
	node
	Init   []Stmt
	Cond   Expr
	Update []Expr
	Body   *Block
}

// ForEach iterates over an array or an Iterable.
type ForEach struct {
	node
	Var      *LocalVariable
	Iterable Expr
	Body     *Block
}

// Switch is a switch statement with non-falling-through arms.
type Switch struct {
	node
	Selector Expr
	Cases    []*Case
}

// Case is one arm of a switch; Default arms have no labels.
type Case struct {
	node
	Labels  []Expr
	Default bool
	Body    *Block
}

// Return returns from the method; X is nil in void methods.
type Return struct {
	node
	X Expr
}

// Throw throws an exception.
type Throw struct {
	node
	X Expr
}

// Assert is an assert statement.
type Assert struct {
	node
	Cond Expr
}

// Break leaves the innermost loop or switch.
type Break struct{ node }

// Continue skips to the next loop iteration.
type Continue struct{ node }

func (*Block) stmt()    {}
func (*ExprStmt) stmt() {}
func (*LocalVar) stmt() {}
func (*If) stmt()       {}
func (*While) stmt()    {}
func (*For) stmt()      {}
func (*ForEach) stmt()  {}
func (*Switch) stmt()   {}
func (*Return) stmt()   {}
func (*Throw) stmt()    {}
func (*Assert) stmt()   {}
func (*Break) stmt()    {}
func (*Continue) stmt() {}

// IntLit is an integer literal.
type IntLit struct {
	node
	Value int64
}

// BoolLit is true or false.
type BoolLit struct {
	node
	Value bool
}

// StringLit is a string literal.
type StringLit struct {
	node
	Value string
}

// NullLit is the null literal.
type NullLit struct{ node }

// This is the this reference.
type This struct{ node }

// Name is a simple name. After resolution exactly one of Local, Param, Field or Type is set; a
// Field is accessed through an implicit this (or statically).
type Name struct {
	node
	Ident string
	Local *LocalVariable
	Param *Parameter
	Field *Field
	Type  *Type
}

// FieldAccess is X.Name. ArrayLength is set for the length of an array.
type FieldAccess struct {
	node
	X           Expr
	Name        string
	Field       *Field
	ArrayLength bool
}

// ArrayAccess is X[Index].
type ArrayAccess struct {
	node
	X     Expr
	Index Expr
}

// Binary is a binary operation. Op is the Java operator.
type Binary struct {
	node
	Op string
	X  Expr
	Y  Expr
}

// Unary is a prefix or postfix unary operation.
type Unary struct {
	node
	Op      string
	X       Expr
	Postfix bool
}

// Conditional is the ternary operator.
type Conditional struct {
	node
	Cond Expr
	Then Expr
	Else Expr
}

// Assign is an assignment, possibly compound ("+=").
type Assign struct {
	node
	Target Expr
	Op     string
	Value  Expr
}

// Call is a method call. X is nil for unqualified calls; a static call through a type name has
// X resolved to a Name whose Type is set.
type Call struct {
	node
	X      Expr
	Name   string
	Args   []Expr
	Method *Method
}

// New instantiates a class.
type New struct {
	node
	TypeName string
	Class    *Type
	Ctor     *Method
	Args     []Expr
}

// NewArray creates an array of a given length.
type NewArray struct {
	node
	Elem TypeRef
	Len  Expr
}

// Lambda is a lambda expression with an expression body. It is resolved to a synthetic method of
// the enclosing type.
type Lambda struct {
	node
	Params []string
	Body   Expr
	Method *Method
}

// MethodRef is a method reference X::Name.
type MethodRef struct {
	node
	X      Expr
	Name   string
	Method *Method
}

func (*IntLit) expr()      {}
func (*BoolLit) expr()     {}
func (*StringLit) expr()   {}
func (*NullLit) expr()     {}
func (*This) expr()        {}
func (*Name) expr()        {}
func (*FieldAccess) expr() {}
func (*ArrayAccess) expr() {}
func (*Binary) expr()      {}
func (*Unary) expr()       {}
func (*Conditional) expr() {}
func (*Assign) expr()      {}
func (*Call) expr()        {}
func (*New) expr()         {}
func (*NewArray) expr()    {}
func (*Lambda) expr()      {}
func (*MethodRef) expr()   {}
