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

// Package value implements the symbolic values produced by evaluating expressions: immutable
// trees over constants, variables, operators, method call results and conditionals. Constructors
// simplify eagerly, so two values are equal exactly when their canonical renderings are equal.
package value

import (
	"strconv"
	"strings"

	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/variable"
)

// Operator precedences, used to decide on parentheses when rendering.
const (
	precTernary = iota + 1
	precOr
	precAnd
	precBitwise
	precEquality
	precComparison
	precSum
	precProduct
	precUnary
	precAtom
)

// Value is an evaluated expression.
type Value interface {
	// String is the canonical rendering; equality of values is equality of renderings.
	String() string
	prec() int
}

// Equal reports whether two values have the same canonical rendering.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

func paren(v Value, min int) string {
	if v.prec() < min {
		return "(" + v.String() + ")"
	}
	return v.String()
}

// IntConstant is an integer constant.
type IntConstant struct{ V int64 }

// NewInt returns the integer constant.
func NewInt(v int64) *IntConstant { return &IntConstant{V: v} }

func (c *IntConstant) String() string { return strconv.FormatInt(c.V, 10) }
func (c *IntConstant) prec() int {
	if c.V < 0 {
		return precUnary
	}
	return precAtom
}

// BoolConstant is true or false.
type BoolConstant struct{ V bool }

var (
	// True is the boolean constant true.
	True = &BoolConstant{V: true}
	// False is the boolean constant false.
	False = &BoolConstant{V: false}
)

// NewBool returns the boolean constant.
func NewBool(b bool) *BoolConstant {
	if b {
		return True
	}
	return False
}

func (c *BoolConstant) String() string { return strconv.FormatBool(c.V) }
func (c *BoolConstant) prec() int      { return precAtom }

// StringConstant is a string literal.
type StringConstant struct{ V string }

// NewString returns the string constant.
func NewString(s string) *StringConstant { return &StringConstant{V: s} }

func (c *StringConstant) String() string { return strconv.Quote(c.V) }
func (c *StringConstant) prec() int      { return precAtom }

// NullConstant is the null literal.
type NullConstant struct{}

// Null is the null constant.
var Null = &NullConstant{}

func (*NullConstant) String() string { return "null" }
func (*NullConstant) prec() int      { return precAtom }

// IsConstant reports whether v is a literal constant.
func IsConstant(v Value) bool {
	switch v.(type) {
	case *IntConstant, *BoolConstant, *StringConstant, *NullConstant:
		return true
	}
	return false
}

// IsTrue reports whether v is the constant true.
func IsTrue(v Value) bool {
	b, ok := v.(*BoolConstant)
	return ok && b.V
}

// IsFalse reports whether v is the constant false.
func IsFalse(v Value) bool {
	b, ok := v.(*BoolConstant)
	return ok && !b.V
}

// VariableValue is the (unknown) current content of a variable.
type VariableValue struct {
	Var variable.Variable
}

// NewVariable returns the value of the variable.
func NewVariable(v variable.Variable) *VariableValue { return &VariableValue{Var: v} }

func (v *VariableValue) String() string { return v.Var.Name() }
func (v *VariableValue) prec() int      { return precAtom }

// IsThis reports whether v is the value of a this variable.
func IsThis(v Value) bool {
	vv, ok := v.(*VariableValue)
	if !ok {
		return false
	}
	_, this := vv.Var.(*variable.This)
	return this
}

// Instance is an object whose content is not known, such as the result of a modifying call.
type Instance struct {
	Type    program.TypeRef
	Site    string
	NotNull bool
}

// NewInstance returns an unknown object of the type, created at the site.
func NewInstance(t program.TypeRef, site string, notNull bool) *Instance {
	return &Instance{Type: t, Site: site, NotNull: notNull}
}

func (i *Instance) String() string { return "instance type " + i.Type.String() }
func (i *Instance) prec() int      { return precAtom }

// NewObject is the result of a constructor call.
type NewObject struct {
	Type string
	Args []Value
	s    string
}

// NewNewObject returns the value of "new T(args)".
func NewNewObject(typeName string, args []Value) Value {
	if d, ok := firstSentinel(args...); ok {
		return d
	}
	return &NewObject{Type: typeName, Args: args, s: "new " + typeName + "(" + join(args) + ")"}
}

func (n *NewObject) String() string { return n.s }
func (n *NewObject) prec() int      { return precAtom }

// NewArray is the result of "new T[n]".
type NewArray struct {
	Elem program.TypeRef
	Len  Value
}

// NewNewArray returns the value of a new array.
func NewNewArray(elem program.TypeRef, length Value) Value {
	if d, ok := firstSentinel(length); ok {
		return d
	}
	return &NewArray{Elem: elem, Len: length}
}

func (n *NewArray) String() string { return "new " + n.Elem.String() + "[" + n.Len.String() + "]" }
func (n *NewArray) prec() int      { return precAtom }

// ArrayLength is "a.length".
type ArrayLength struct {
	Array Value
}

// NewArrayLength returns the length of the array value. The length of a new array is its size.
func NewArrayLength(array Value) Value {
	if d, ok := firstSentinel(array); ok {
		return d
	}
	if na, ok := array.(*NewArray); ok {
		return na.Len
	}
	return &ArrayLength{Array: array}
}

func (a *ArrayLength) String() string { return paren(a.Array, precAtom) + ".length" }
func (a *ArrayLength) prec() int      { return precAtom }

// MethodCallValue is the result of calling a method that does not modify its object, so that
// two calls with the same arguments yield the same value.
type MethodCallValue struct {
	Object Value
	Method *program.Method
	Args   []Value
	s      string
}

// NewMethodCall returns the value of the call. object is nil for static methods.
func NewMethodCall(object Value, m *program.Method, args []Value) Value {
	all := append([]Value{object}, args...)
	if object == nil {
		all = args
	}
	if d, ok := firstSentinel(all...); ok {
		return d
	}
	var scope string
	if object == nil {
		scope = m.Owner.Name
	} else {
		scope = paren(object, precAtom)
	}
	return &MethodCallValue{Object: object, Method: m, Args: args, s: scope + "." + m.Name + "(" + join(args) + ")"}
}

func (c *MethodCallValue) String() string { return c.s }
func (c *MethodCallValue) prec() int      { return precAtom }

// Delayed is the DELAY sentinel: the value cannot be computed in this iteration.
type Delayed struct {
	Cause string
}

// NewDelayed returns a delayed value with its cause.
func NewDelayed(cause string) *Delayed { return &Delayed{Cause: cause} }

func (d *Delayed) String() string { return "<delayed: " + d.Cause + ">" }
func (d *Delayed) prec() int      { return precAtom }

// NoValue stands for a value that will never be known, e.g. the result of a division by zero.
// It propagates like a delay but does not block convergence.
type NoValue struct{}

// Unknown is the NoValue sentinel.
var Unknown = &NoValue{}

func (*NoValue) String() string { return "<no value>" }
func (*NoValue) prec() int      { return precAtom }

// ReturnPlaceholder is the value of a return variable before any return statement.
type ReturnPlaceholder struct{}

// Placeholder is the return placeholder.
var Placeholder = &ReturnPlaceholder{}

func (*ReturnPlaceholder) String() string { return config.ReturnPlaceholder }
func (*ReturnPlaceholder) prec() int      { return precAtom }

// IsDelayed reports whether v is the DELAY sentinel.
func IsDelayed(v Value) bool {
	_, ok := v.(*Delayed)
	return ok
}

// IsUnknown reports whether v is the NoValue sentinel.
func IsUnknown(v Value) bool {
	_, ok := v.(*NoValue)
	return ok
}

// firstSentinel returns the first delayed operand, or else the first NoValue operand.
func firstSentinel(ops ...Value) (Value, bool) {
	var unknown Value
	for _, v := range ops {
		switch v.(type) {
		case *Delayed:
			return v, true
		case *NoValue:
			if unknown == nil {
				unknown = v
			}
		}
	}
	return unknown, unknown != nil
}

func join(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}
