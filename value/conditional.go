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

// Conditional is "Cond?Then:Else".
type Conditional struct {
	Cond, Then, Else Value
}

// NewConditional returns the simplified conditional value. A constant condition selects its
// branch; equal branches make the condition irrelevant; boolean branches become logic.
func NewConditional(cond, then, els Value) Value {
	if d, ok := firstSentinel(cond, then, els); ok {
		return d
	}
	switch {
	case IsTrue(cond):
		return then
	case IsFalse(cond):
		return els
	case Equal(then, els):
		return then
	}
	switch {
	case IsTrue(then) && IsFalse(els):
		return cond
	case IsFalse(then) && IsTrue(els):
		return Not(cond)
	case IsTrue(then) && isBoolean(els):
		return NewOr(cond, els)
	case IsFalse(then) && isBoolean(els):
		return NewAnd(Not(cond), els)
	case IsTrue(els) && isBoolean(then):
		return NewOr(Not(cond), then)
	case IsFalse(els) && isBoolean(then):
		return NewAnd(cond, then)
	}
	return &Conditional{Cond: cond, Then: then, Else: els}
}

// isBoolean reports whether v is a boolean value.
func isBoolean(v Value) bool {
	switch x := v.(type) {
	case *BoolConstant, *And, *Or, *Negation, *Equals, *GreaterThanZero:
		return true
	case *VariableValue:
		return x.Var.Type().IsBoolean()
	case *MethodCallValue:
		return x.Method.Return.IsBoolean()
	case *PropertyWrapper:
		return isBoolean(x.X)
	}
	return false
}

func (c *Conditional) String() string {
	return paren(c.Cond, precOr) + "?" + paren(c.Then, precOr) + ":" + paren(c.Else, precTernary)
}

func (c *Conditional) prec() int { return precTernary }

// DropPlaceholder removes the return placeholder from the innermost alternative of a chain of
// conditionals: when no execution reaches the end of the method, "c?x:<return value>" is x.
func DropPlaceholder(v Value) Value {
	c, ok := v.(*Conditional)
	if !ok {
		return v
	}
	if _, isPlaceholder := c.Else.(*ReturnPlaceholder); isPlaceholder {
		return c.Then
	}
	if _, isPlaceholder := c.Then.(*ReturnPlaceholder); isPlaceholder {
		return c.Else
	}
	return &Conditional{Cond: c.Cond, Then: c.Then, Else: DropPlaceholder(c.Else)}
}

// HasPlaceholder reports whether the return placeholder occurs in v.
func HasPlaceholder(v Value) bool {
	found := false
	Walk(v, func(x Value) bool {
		if _, ok := x.(*ReturnPlaceholder); ok {
			found = true
		}
		return !found
	})
	return found
}
