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
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrDivisionByZero is returned by Divide and Remainder when the divisor is the constant zero.
var ErrDivisionByZero = errors.New("division by zero")

// term is coef*X for a non-constant integer atom X.
type term struct {
	Coef int64
	X    Value
}

// Sum is a linear integer form Const + sum(Coef*X) with at least one term. Terms are sorted by
// the rendering of their atom and have non-zero coefficients.
type Sum struct {
	Const int64
	Terms []term
}

func (s *Sum) String() string {
	var b strings.Builder
	s.writeTerms(&b)
	switch {
	case s.Const > 0:
		b.WriteString("+" + strconv.FormatInt(s.Const, 10))
	case s.Const < 0:
		b.WriteString(strconv.FormatInt(s.Const, 10))
	}
	return b.String()
}

func (s *Sum) writeTerms(b *strings.Builder) {
	for i, t := range s.Terms {
		c := t.Coef
		switch {
		case c < 0:
			b.WriteByte('-')
			c = -c
		case i > 0:
			b.WriteByte('+')
		}
		if c != 1 {
			b.WriteString(strconv.FormatInt(c, 10) + "*" + paren(t.X, precProduct))
		} else {
			b.WriteString(paren(t.X, precProduct))
		}
	}
}

func (s *Sum) prec() int {
	if len(s.Terms) == 1 && s.Const == 0 {
		if s.Terms[0].Coef == -1 {
			return precUnary
		}
		return precProduct
	}
	return precSum
}

// linear views v as a linear form. Constants have no terms; any other value is an atom.
func linear(v Value) *Sum {
	switch x := v.(type) {
	case *IntConstant:
		return &Sum{Const: x.V}
	case *Sum:
		return x
	}
	return &Sum{Terms: []term{{Coef: 1, X: v}}}
}

func (s *Sum) negate() *Sum {
	out := &Sum{Const: -s.Const, Terms: make([]term, len(s.Terms))}
	for i, t := range s.Terms {
		out.Terms[i] = term{Coef: -t.Coef, X: t.X}
	}
	return out
}

func (s *Sum) addConst(k int64) *Sum {
	return &Sum{Const: s.Const + k, Terms: s.Terms}
}

func (s *Sum) scale(k int64) *Sum {
	out := &Sum{Const: s.Const * k}
	for _, t := range s.Terms {
		out.Terms = append(out.Terms, term{Coef: t.Coef * k, X: t.X})
	}
	return out
}

func add(a, b *Sum) *Sum {
	coefs := map[string]int64{}
	atoms := map[string]Value{}
	for _, t := range append(append([]term(nil), a.Terms...), b.Terms...) {
		k := t.X.String()
		coefs[k] += t.Coef
		atoms[k] = t.X
	}
	out := &Sum{Const: a.Const + b.Const}
	for k, c := range coefs {
		if c != 0 {
			out.Terms = append(out.Terms, term{Coef: c, X: atoms[k]})
		}
	}
	sort.Slice(out.Terms, func(i, j int) bool { return out.Terms[i].X.String() < out.Terms[j].X.String() })
	return out
}

// value collapses degenerate forms: no terms is a constant, a single unit term is its atom.
func (s *Sum) value() Value {
	if len(s.Terms) == 0 {
		return NewInt(s.Const)
	}
	if len(s.Terms) == 1 && s.Const == 0 && s.Terms[0].Coef == 1 {
		return s.Terms[0].X
	}
	return s
}

// NewSum returns l+r over the integers.
func NewSum(l, r Value) Value {
	if d, ok := firstSentinel(l, r); ok {
		return d
	}
	return add(linear(l), linear(r)).value()
}

// ToInt32 wraps an integer constant into the range of a Java int, the way int arithmetic
// overflows. Any other value is returned unchanged.
func ToInt32(v Value) Value {
	if c, ok := v.(*IntConstant); ok && int64(int32(c.V)) != c.V {
		return NewInt(int64(int32(c.V)))
	}
	return v
}

// NewSubtract returns l-r over the integers.
func NewSubtract(l, r Value) Value {
	if d, ok := firstSentinel(l, r); ok {
		return d
	}
	return add(linear(l), linear(r).negate()).value()
}

// NewNegate returns -x over the integers.
func NewNegate(x Value) Value {
	if d, ok := firstSentinel(x); ok {
		return d
	}
	return linear(x).negate().value()
}

// NewProduct returns l*r. Multiplication by a constant stays linear.
func NewProduct(l, r Value) Value {
	if d, ok := firstSentinel(l, r); ok {
		return d
	}
	if _, ok := r.(*IntConstant); ok {
		l, r = r, l
	}
	if c, ok := l.(*IntConstant); ok {
		if c.V == 0 {
			return NewInt(0)
		}
		return linear(r).scale(c.V).value()
	}
	return newBinary("*", l, r, precProduct)
}

// NewDivide returns l/r with integer division. A constant zero divisor yields NoValue and
// ErrDivisionByZero.
func NewDivide(l, r Value) (Value, error) {
	if d, ok := firstSentinel(l, r); ok {
		return d, nil
	}
	if c, ok := r.(*IntConstant); ok {
		if c.V == 0 {
			return Unknown, ErrDivisionByZero
		}
		if c.V == 1 {
			return l, nil
		}
		if lc, ok := l.(*IntConstant); ok {
			return NewInt(lc.V / c.V), nil
		}
	}
	return newBinary("/", l, r, precProduct), nil
}

// NewRemainder returns l%r, with the same zero handling as NewDivide.
func NewRemainder(l, r Value) (Value, error) {
	if d, ok := firstSentinel(l, r); ok {
		return d, nil
	}
	if c, ok := r.(*IntConstant); ok {
		if c.V == 0 {
			return Unknown, ErrDivisionByZero
		}
		if lc, ok := l.(*IntConstant); ok {
			return NewInt(lc.V % c.V), nil
		}
	}
	return newBinary("%", l, r, precProduct), nil
}

// GreaterThanZero is the integer comparison Sum >= 0.
type GreaterThanZero struct {
	Sum *Sum
}

func newGreaterThanZero(s *Sum) Value {
	if len(s.Terms) == 0 {
		return NewBool(s.Const >= 0)
	}
	return &GreaterThanZero{Sum: s}
}

func (g *GreaterThanZero) String() string {
	s := g.Sum
	if len(s.Terms) == 1 {
		t := s.Terms[0]
		switch t.Coef {
		case 1:
			return paren(t.X, precSum) + ">=" + strconv.FormatInt(-s.Const, 10)
		case -1:
			return paren(t.X, precSum) + "<=" + strconv.FormatInt(s.Const, 10)
		}
	}
	var b strings.Builder
	s.writeTerms(&b)
	return b.String() + ">=" + strconv.FormatInt(-s.Const, 10)
}

func (g *GreaterThanZero) prec() int { return precComparison }

// bound returns the single atom of the comparison and the interval it implies.
func (g *GreaterThanZero) bound() (atom string, lo, hi int64, ok bool) {
	s := g.Sum
	if len(s.Terms) != 1 {
		return "", 0, 0, false
	}
	t := s.Terms[0]
	switch t.Coef {
	case 1:
		return t.X.String(), -s.Const, math.MaxInt64, true
	case -1:
		return t.X.String(), math.MinInt64, s.Const, true
	}
	return "", 0, 0, false
}

// NewCompare returns the integer comparison "l op r" for op one of <, <=, >, >=.
func NewCompare(op string, l, r Value) Value {
	if d, ok := firstSentinel(l, r); ok {
		return d
	}
	ll, lr := linear(l), linear(r)
	switch op {
	case ">=":
		return newGreaterThanZero(add(ll, lr.negate()))
	case ">":
		return newGreaterThanZero(add(ll, lr.negate()).addConst(-1))
	case "<=":
		return newGreaterThanZero(add(lr, ll.negate()))
	case "<":
		return newGreaterThanZero(add(lr, ll.negate()).addConst(-1))
	}
	panic("value: unknown comparison " + op)
}

// Equals is "L==R". Constants are on the right.
type Equals struct {
	L, R Value
}

func (e *Equals) String() string {
	return paren(e.L, precComparison) + "==" + paren(e.R, precComparison)
}

func (e *Equals) prec() int { return precEquality }

// NewEquals returns the simplified equality of two values.
func NewEquals(l, r Value) Value {
	if d, ok := firstSentinel(l, r); ok {
		return d
	}
	if isNull(r) && IsNotNullIntrinsic(l) || isNull(l) && IsNotNullIntrinsic(r) {
		return False
	}
	l, r = unwrap(l), unwrap(r)
	if IsConstant(l) && !IsConstant(r) {
		l, r = r, l
	}
	if IsConstant(l) && IsConstant(r) {
		return NewBool(l.String() == r.String())
	}
	if vl, ok := l.(*VariableValue); ok {
		if vr, ok := r.(*VariableValue); ok && vl.Var.Key() == vr.Var.Key() {
			return True
		}
	}
	if b, ok := r.(*BoolConstant); ok {
		if b.V {
			return l
		}
		return Not(l)
	}
	if isNull(r) {
		return &Equals{L: l, R: r}
	}
	if k, ok := r.(*IntConstant); ok {
		if s, ok := l.(*Sum); ok {
			// Move the constant across: a+c==k is a==k-c when a has a unit coefficient.
			if len(s.Terms) == 1 && (s.Terms[0].Coef == 1 || s.Terms[0].Coef == -1) {
				rhs := (k.V - s.Const) * s.Terms[0].Coef
				return &Equals{L: s.Terms[0].X, R: NewInt(rhs)}
			}
		}
		return &Equals{L: l, R: r}
	}
	if l.String() > r.String() {
		l, r = r, l
	}
	return &Equals{L: l, R: r}
}

func isNull(v Value) bool {
	_, ok := unwrap(v).(*NullConstant)
	return ok
}

// interval collects what a conjunction of literals says about one integer atom.
type interval struct {
	lo, hi       int64
	hasLo, hasHi bool
	loOp, hiOp   Value
	eq           int64
	eqOp         Value
	notEq        []int64
	notEqOps     []Value
}

// effective returns the bounds implied by all collected literals.
func (iv *interval) effective() (lo, hi int64) {
	lo, hi = math.MinInt64, math.MaxInt64
	if iv.hasLo {
		lo = iv.lo
	}
	if iv.hasHi {
		hi = iv.hi
	}
	if iv.eqOp != nil {
		lo = max(lo, iv.eq)
		hi = min(hi, iv.eq)
	}
	return lo, hi
}

// literalBound classifies a literal as a bound on an atom.
func literalBound(v Value) (atom string, lo, hi int64, neq bool, ok bool) {
	switch x := v.(type) {
	case *GreaterThanZero:
		atom, lo, hi, ok = x.bound()
		return atom, lo, hi, false, ok
	case *Equals:
		if k, isInt := x.R.(*IntConstant); isInt {
			return x.L.String(), k.V, k.V, false, true
		}
	case *Negation:
		if eq, isEq := x.X.(*Equals); isEq {
			if k, isInt := eq.R.(*IntConstant); isInt {
				return eq.L.String(), k.V, k.V, true, true
			}
		}
	}
	return "", 0, 0, false, false
}

// tightenBounds drops literals implied by tighter bounds on the same atom and reports
// contradictions.
func tightenBounds(literals []Value) ([]Value, bool) {
	intervals := map[string]*interval{}
	for _, lit := range literals {
		atom, lo, hi, neq, ok := literalBound(lit)
		if !ok {
			continue
		}
		iv := intervals[atom]
		if iv == nil {
			iv = &interval{}
			intervals[atom] = iv
		}
		_, isEq := lit.(*Equals)
		switch {
		case neq:
			iv.notEq = append(iv.notEq, lo)
			iv.notEqOps = append(iv.notEqOps, lit)
		case isEq:
			if iv.eqOp != nil && iv.eq != lo {
				return nil, true
			}
			iv.eq, iv.eqOp = lo, lit
		default:
			if lo != math.MinInt64 && (!iv.hasLo || lo > iv.lo) {
				iv.lo, iv.loOp, iv.hasLo = lo, lit, true
			}
			if hi != math.MaxInt64 && (!iv.hasHi || hi < iv.hi) {
				iv.hi, iv.hiOp, iv.hasHi = hi, lit, true
			}
		}
	}
	drop := map[Value]bool{}
	for _, iv := range intervals {
		lo, hi := iv.effective()
		if lo > hi {
			return nil, true
		}
		for i, k := range iv.notEq {
			if lo == hi && k == lo {
				return nil, true
			}
			if k < lo || k > hi {
				drop[iv.notEqOps[i]] = true
			}
		}
	}
	var kept []Value
	for _, lit := range literals {
		if drop[lit] {
			continue
		}
		if g, ok := lit.(*GreaterThanZero); ok {
			if atom, _, _, ok := g.bound(); ok {
				iv := intervals[atom]
				if iv.eqOp != nil || (lit != iv.loOp && lit != iv.hiOp) {
					continue
				}
			}
		}
		kept = append(kept, lit)
	}
	return kept, false
}

// coversAll reports whether a disjunction of literals is a tautology over some integer atom,
// e.g. x>=0||x<=-1.
func coversAll(literals []Value) bool {
	type cover struct {
		lo, hi int64
		hasLo  bool
		hasHi  bool
	}
	covers := map[string]*cover{}
	for _, lit := range literals {
		g, ok := lit.(*GreaterThanZero)
		if !ok {
			continue
		}
		atom, lo, hi, ok := g.bound()
		if !ok {
			continue
		}
		c := covers[atom]
		if c == nil {
			c = &cover{}
			covers[atom] = c
		}
		if lo != math.MinInt64 && (!c.hasLo || lo < c.lo) {
			c.lo, c.hasLo = lo, true
		}
		if hi != math.MaxInt64 && (!c.hasHi || hi > c.hi) {
			c.hi, c.hasHi = hi, true
		}
	}
	for _, c := range covers {
		if c.hasLo && c.hasHi && c.hi >= c.lo-1 {
			return true
		}
	}
	return false
}

// BinaryOp is an arithmetic or bitwise operation the simplifier treats as opaque.
type BinaryOp struct {
	Op   string
	X, Y Value
	p    int
}

func newBinary(op string, x, y Value, p int) *BinaryOp {
	return &BinaryOp{Op: op, X: x, Y: y, p: p}
}

// NewBinaryOp returns an opaque operation, e.g. string concatenation or a bitwise operator.
func NewBinaryOp(op string, x, y Value) Value {
	if d, ok := firstSentinel(x, y); ok {
		return d
	}
	p := precBitwise
	switch op {
	case "+", "-":
		p = precSum
	case "*", "/", "%":
		p = precProduct
	case "<", "<=", ">", ">=":
		p = precComparison
	case "==", "!=":
		p = precEquality
	}
	return newBinary(op, x, y, p)
}

func (b *BinaryOp) String() string {
	return paren(b.X, b.p) + b.Op + paren(b.Y, b.p+1)
}

func (b *BinaryOp) prec() int { return b.p }
