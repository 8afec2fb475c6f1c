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

package value

import (
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/variable"
)

// PropertyWrapper attaches properties known outside any evaluation context, such as a
// parameter's contracted not-null, to a value. It renders as the wrapped value.
type PropertyWrapper struct {
	X     Value
	Props map[property.Property]property.DV
}

// Wrap attaches properties to v. Wrapping a sentinel returns the sentinel.
func Wrap(v Value, props map[property.Property]property.DV) Value {
	if _, ok := firstSentinel(v); ok || len(props) == 0 {
		return v
	}
	if w, ok := v.(*PropertyWrapper); ok {
		merged := make(map[property.Property]property.DV, len(w.Props)+len(props))
		for p, dv := range w.Props {
			merged[p] = dv
		}
		for p, dv := range props {
			merged[p] = dv
		}
		return &PropertyWrapper{X: w.X, Props: merged}
	}
	return &PropertyWrapper{X: v, Props: props}
}

func (w *PropertyWrapper) String() string { return w.X.String() }
func (w *PropertyWrapper) prec() int      { return w.X.prec() }

// Walk calls f on v and, while f returns true, on its operands in depth-first order.
func Walk(v Value, f func(Value) bool) {
	if v == nil || !f(v) {
		return
	}
	var children []Value
	switch x := v.(type) {
	case *Negation:
		children = []Value{x.X}
	case *And:
		children = x.Ops
	case *Or:
		children = x.Ops
	case *Equals:
		children = []Value{x.L, x.R}
	case *GreaterThanZero:
		for _, t := range x.Sum.Terms {
			children = append(children, t.X)
		}
	case *Sum:
		for _, t := range x.Terms {
			children = append(children, t.X)
		}
	case *BinaryOp:
		children = []Value{x.X, x.Y}
	case *Conditional:
		children = []Value{x.Cond, x.Then, x.Else}
	case *MethodCallValue:
		if x.Object != nil {
			children = append(children, x.Object)
		}
		children = append(children, x.Args...)
	case *NewObject:
		children = x.Args
	case *NewArray:
		children = []Value{x.Len}
	case *ArrayLength:
		children = []Value{x.Array}
	case *PropertyWrapper:
		children = []Value{x.X}
	}
	for _, c := range children {
		Walk(c, f)
	}
}

// Variables returns the variables read by v, in order of first occurrence.
func Variables(v Value) []variable.Variable {
	var out []variable.Variable
	seen := map[string]bool{}
	Walk(v, func(x Value) bool {
		if vv, ok := x.(*VariableValue); ok && !seen[vv.Var.Key()] {
			seen[vv.Var.Key()] = true
			out = append(out, vv.Var)
		}
		return true
	})
	return out
}

// LinkedVariables returns the variables that v may share object identity with. Primitive
// results, constants and new objects link to nothing; a method call result links to its object.
func LinkedVariables(v Value) []variable.Variable {
	var out []variable.Variable
	seen := map[string]bool{}
	var visit func(Value)
	visit = func(x Value) {
		switch x := x.(type) {
		case *VariableValue:
			if !seen[x.Var.Key()] {
				seen[x.Var.Key()] = true
				out = append(out, x.Var)
			}
		case *Conditional:
			visit(x.Then)
			visit(x.Else)
		case *PropertyWrapper:
			visit(x.X)
		case *MethodCallValue:
			if x.Object != nil && !x.Method.Return.IsPrimitive() {
				visit(x.Object)
			}
		}
	}
	visit(v)
	return out
}

// SizeRestrictions returns the size constraints a condition places on array variables, keyed
// by variable key: "a.length==k" is SizeEquals(k) and "a.length>=k" is SizeMin(k).
func SizeRestrictions(cond Value) map[string]property.DV {
	out := map[string]property.DV{}
	var literals []Value
	switch c := cond.(type) {
	case *And:
		literals = c.Ops
	default:
		literals = []Value{cond}
	}
	for _, lit := range literals {
		switch x := lit.(type) {
		case *Equals:
			k, ok := x.R.(*IntConstant)
			if v := sizeOf(x.L); v != nil && ok && k.V >= 0 {
				out[v.Key()] = property.SizeEquals(int(k.V))
			}
		case *GreaterThanZero:
			if len(x.Sum.Terms) == 1 && x.Sum.Terms[0].Coef == 1 && -x.Sum.Const > 0 {
				if v := sizeOf(x.Sum.Terms[0].X); v != nil {
					out[v.Key()] = property.SizeMin(int(-x.Sum.Const))
				}
			}
		}
	}
	return out
}

func sizeOf(v Value) variable.Variable {
	if l, ok := v.(*ArrayLength); ok {
		if vv, ok := l.Array.(*VariableValue); ok {
			return vv.Var
		}
	}
	if c, ok := v.(*MethodCallValue); ok && c.Method.Name == "size" && len(c.Args) == 0 {
		if vv, ok := c.Object.(*VariableValue); ok {
			return vv.Var
		}
	}
	return nil
}

// IsNotNullIntrinsic reports whether v can never be null, whatever the context.
func IsNotNullIntrinsic(v Value) bool {
	return PropertyOutsideContext(v, property.NotNullExpression) >= property.EffectivelyNotNull
}

// PropertyOutsideContext returns what is known about p for v without an evaluation context:
// the wrapped overrides, or what the shape of the value implies. It returns Delay when the
// context must decide.
func PropertyOutsideContext(v Value, p property.Property) property.DV {
	switch x := v.(type) {
	case *PropertyWrapper:
		if dv, ok := x.Props[p]; ok {
			return dv
		}
		return PropertyOutsideContext(x.X, p)
	case *Conditional:
		return p.MergeAll(
			PropertyOutsideContext(x.Then, p),
			PropertyOutsideContext(x.Else, p),
		)
	}
	switch p {
	case property.NotNullExpression:
		switch x := v.(type) {
		case *NullConstant:
			return property.Nullable
		case *IntConstant, *BoolConstant, *StringConstant, *NewObject, *NewArray,
			*Sum, *GreaterThanZero, *Equals, *Negation, *And, *Or, *BinaryOp, *ArrayLength:
			return property.EffectivelyNotNull
		case *Instance:
			if x.NotNull {
				return property.EffectivelyNotNull
			}
		case *MethodCallValue:
			if x.Method.Return.IsPrimitive() {
				return property.EffectivelyNotNull
			}
		case *VariableValue:
			if x.Var.Type().IsPrimitive() {
				return property.EffectivelyNotNull
			}
			if _, ok := x.Var.(*variable.This); ok {
				return property.EffectivelyNotNull
			}
		}
	case property.Immutable:
		switch x := v.(type) {
		case *IntConstant, *BoolConstant, *StringConstant, *NullConstant,
			*Sum, *GreaterThanZero, *Equals, *Negation, *And, *Or, *BinaryOp, *ArrayLength:
			return property.E2
		case *NewArray:
			return property.Mutable
		case *VariableValue:
			if x.Var.Type().IsPrimitive() || x.Var.Type().IsString() {
				return property.E2
			}
		case *MethodCallValue:
			if x.Method.Return.IsPrimitive() || x.Method.Return.IsString() {
				return property.E2
			}
		}
	case property.Constant:
		if IsConstant(v) {
			return property.True
		}
		return property.False
	}
	return property.Delay
}
