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
	"sort"
	"strings"
)

// Negation is the boolean negation of an operand that cannot be pushed further down.
type Negation struct {
	X Value
}

func (n *Negation) String() string {
	if eq, ok := n.X.(*Equals); ok {
		return paren(eq.L, precComparison) + "!=" + paren(eq.R, precComparison)
	}
	return "!" + paren(n.X, precUnary)
}

func (n *Negation) prec() int {
	if _, ok := n.X.(*Equals); ok {
		return precEquality
	}
	return precUnary
}

// And is a conjunction of at least two simplified, canonically ordered operands.
type And struct {
	Ops []Value
	s   string
}

func (a *And) String() string { return a.s }
func (a *And) prec() int      { return precAnd }

// Or is a disjunction of at least two simplified, canonically ordered operands.
type Or struct {
	Ops []Value
	s   string
}

func (o *Or) String() string { return o.s }
func (o *Or) prec() int      { return precOr }

// Not returns the simplified negation of a boolean value.
func Not(v Value) Value {
	switch x := v.(type) {
	case *Delayed, *NoValue:
		return v
	case *BoolConstant:
		return NewBool(!x.V)
	case *Negation:
		return x.X
	case *And:
		ops := make([]Value, len(x.Ops))
		for i, op := range x.Ops {
			ops[i] = Not(op)
		}
		return NewOr(ops...)
	case *Or:
		ops := make([]Value, len(x.Ops))
		for i, op := range x.Ops {
			ops[i] = Not(op)
		}
		return NewAnd(ops...)
	case *GreaterThanZero:
		// !(s >= 0) is s < 0, which is -s-1 >= 0 over the integers.
		return newGreaterThanZero(x.Sum.negate().addConst(-1))
	case *Conditional:
		return NewConditional(x.Cond, Not(x.Then), Not(x.Else))
	case *PropertyWrapper:
		return Not(x.X)
	}
	return &Negation{X: v}
}

// NewAnd returns the simplified conjunction of the operands.
func NewAnd(ops ...Value) Value {
	if d, ok := firstSentinel(ops...); ok {
		return d
	}
	for {
		flat, done := flatten(ops, true)
		if done != nil {
			return done
		}
		next, changed := simplifyAnd(flat)
		if !changed {
			return build(next, true)
		}
		ops = next
	}
}

// NewOr returns the simplified disjunction of the operands.
func NewOr(ops ...Value) Value {
	if d, ok := firstSentinel(ops...); ok {
		return d
	}
	for {
		flat, done := flatten(ops, false)
		if done != nil {
			return done
		}
		next, changed := simplifyOr(flat)
		if !changed {
			return build(next, false)
		}
		ops = next
	}
}

// flatten inlines nested operands of the same operator, removes the neutral element and
// duplicates. It returns a non-nil constant when the absorbing element or a complementary pair
// is present.
func flatten(ops []Value, and bool) ([]Value, Value) {
	absorbing, neutral := False, True
	if !and {
		absorbing, neutral = True, False
	}
	var out []Value
	seen := map[string]bool{}
	var add func(v Value) bool
	add = func(v Value) bool {
		v = unwrap(v)
		switch x := v.(type) {
		case *BoolConstant:
			return x.V != neutral.V
		case *And:
			if and {
				for _, op := range x.Ops {
					if add(op) {
						return true
					}
				}
				return false
			}
		case *Or:
			if !and {
				for _, op := range x.Ops {
					if add(op) {
						return true
					}
				}
				return false
			}
		}
		s := v.String()
		if seen[s] {
			return false
		}
		seen[s] = true
		out = append(out, v)
		return false
	}
	for _, op := range ops {
		if add(op) {
			return nil, absorbing
		}
	}
	for _, v := range out {
		if seen[Not(v).String()] {
			return nil, absorbing
		}
	}
	if len(out) == 0 {
		return nil, neutral
	}
	return out, nil
}

func unwrap(v Value) Value {
	if w, ok := v.(*PropertyWrapper); ok {
		return unwrap(w.X)
	}
	return v
}

// simplifyAnd applies interval reasoning and clause resolution to flattened conjuncts. It
// reports whether anything changed, in which case the caller flattens and simplifies again.
func simplifyAnd(ops []Value) ([]Value, bool) {
	literals, clauses := split(ops, false)
	ops = append(append([]Value(nil), literals...), clauses...)
	if len(literals) > 1 {
		kept, contradiction := tightenBounds(literals)
		if contradiction {
			return []Value{False}, true
		}
		if len(kept) != len(literals) {
			return append(kept, clauses...), true
		}
	}
	// Absorption and unit resolution against the literals.
	for i, c := range clauses {
		or := c.(*Or)
		var rest []Value
		removed := false
		for _, d := range or.Ops {
			if contains(literals, d) {
				// a && (a || b) is a.
				return remove(ops, len(literals)+i), true
			}
			if len(literals) > 0 && IsFalse(conjunctionOfLiterals(append(literals[:len(literals):len(literals)], d))) {
				removed = true
				continue
			}
			rest = append(rest, d)
		}
		if removed {
			out := remove(ops, len(literals)+i)
			return append(out, NewOr(rest...)), true
		}
	}
	// Subsumption and merging of clause pairs.
	for i := 0; i < len(clauses); i++ {
		for j := 0; j < len(clauses); j++ {
			if i == j {
				continue
			}
			a, b := clauses[i].(*Or).Ops, clauses[j].(*Or).Ops
			if subset(a, b) {
				// (a || b) && (a || b || c) is (a || b).
				return remove(ops, len(literals)+j), true
			}
			if j > i {
				if common, ok := resolvable(a, b); ok {
					out := remove(remove(ops, len(literals)+j), len(literals)+i)
					return append(out, NewOr(common...)), true
				}
			}
		}
	}
	return ops, false
}

// simplifyOr is the dual of simplifyAnd.
func simplifyOr(ops []Value) ([]Value, bool) {
	literals, clauses := split(ops, true)
	ops = append(append([]Value(nil), literals...), clauses...)
	if len(literals) > 1 && coversAll(literals) {
		return []Value{True}, true
	}
	for i, c := range clauses {
		and := c.(*And)
		var rest []Value
		removed := false
		for _, d := range and.Ops {
			if contains(literals, d) {
				// a || (a && b) is a.
				return remove(ops, len(literals)+i), true
			}
			if contains(literals, Not(d)) {
				// a || (!a && b) is a || b.
				removed = true
				continue
			}
			rest = append(rest, d)
		}
		if removed {
			out := remove(ops, len(literals)+i)
			return append(out, NewAnd(rest...)), true
		}
	}
	for i := 0; i < len(clauses); i++ {
		for j := 0; j < len(clauses); j++ {
			if i == j {
				continue
			}
			a, b := clauses[i].(*And).Ops, clauses[j].(*And).Ops
			if subset(a, b) {
				return remove(ops, len(literals)+j), true
			}
			if j > i {
				if common, ok := resolvable(a, b); ok {
					out := remove(remove(ops, len(literals)+j), len(literals)+i)
					return append(out, NewAnd(common...)), true
				}
			}
		}
	}
	return ops, false
}

// split separates literals from clauses of the dual operator, literals first, preserving order.
func split(ops []Value, clauseIsAnd bool) (literals, clauses []Value) {
	for _, op := range ops {
		_, isAnd := op.(*And)
		_, isOr := op.(*Or)
		if (clauseIsAnd && isAnd) || (!clauseIsAnd && isOr) {
			clauses = append(clauses, op)
		} else {
			literals = append(literals, op)
		}
	}
	return literals, clauses
}

// conjunctionOfLiterals checks a set of literals for contradiction without clause processing.
func conjunctionOfLiterals(ops []Value) Value {
	flat, done := flatten(ops, true)
	if done != nil {
		return done
	}
	if _, contradiction := tightenBounds(flat); contradiction {
		return False
	}
	return True
}

func contains(ops []Value, v Value) bool {
	s := v.String()
	for _, op := range ops {
		if op.String() == s {
			return true
		}
	}
	return false
}

func remove(ops []Value, i int) []Value {
	out := make([]Value, 0, len(ops)-1)
	out = append(out, ops[:i]...)
	return append(out, ops[i+1:]...)
}

func subset(a, b []Value) bool {
	if len(a) >= len(b) {
		return false
	}
	for _, v := range a {
		if !contains(b, v) {
			return false
		}
	}
	return true
}

// resolvable reports whether two clauses of equal length differ in exactly one pair of
// complementary literals, returning the common part.
func resolvable(a, b []Value) ([]Value, bool) {
	if len(a) != len(b) {
		return nil, false
	}
	var common []Value
	var onlyA, onlyB Value
	for _, v := range a {
		if contains(b, v) {
			common = append(common, v)
		} else if onlyA == nil {
			onlyA = v
		} else {
			return nil, false
		}
	}
	if onlyA == nil {
		return nil, false
	}
	for _, v := range b {
		if !contains(a, v) {
			onlyB = v
		}
	}
	if onlyB == nil || !Equal(Not(onlyA), onlyB) {
		return nil, false
	}
	return common, true
}

// sortKey orders !x next to x.
func sortKey(v Value) string {
	return strings.ReplaceAll(v.String(), "!", "")
}

func build(ops []Value, and bool) Value {
	if len(ops) == 1 {
		return ops[0]
	}
	sort.SliceStable(ops, func(i, j int) bool {
		ki, kj := sortKey(ops[i]), sortKey(ops[j])
		if ki != kj {
			return ki < kj
		}
		ni, nj := strings.Count(ops[i].String(), "!"), strings.Count(ops[j].String(), "!")
		if ni != nj {
			return ni < nj
		}
		return ops[i].String() < ops[j].String()
	})
	parts := make([]string, len(ops))
	if and {
		for i, op := range ops {
			parts[i] = paren(op, precAnd)
		}
		return &And{Ops: ops, s: strings.Join(parts, "&&")}
	}
	for i, op := range ops {
		parts[i] = paren(op, precOr)
	}
	return &Or{Ops: ops, s: strings.Join(parts, "||")}
}
