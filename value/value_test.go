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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/variable"
)

var _method = &program.Method{Owner: &program.Type{Name: "T", Package: "org.example"}, Name: "m"}

func local(name string, t program.TypeRef) *VariableValue {
	return NewVariable(variable.NewLocal(&program.LocalVariable{Owner: _method, Name: name, Type: t}))
}

func TestLogicRendering(t *testing.T) {
	t.Parallel()

	a, b := local("a", program.Boolean), local("b", program.Boolean)
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"de morgan", Not(NewAnd(a, b)), "!a||!b"},
		{"double negation", Not(Not(a)), "a"},
		{"neutral element", NewAnd(True, a), "a"},
		{"absorbing element", NewOr(a, True), "true"},
		{"contradiction", NewAnd(a, Not(a)), "false"},
		{"tautology", NewOr(Not(b), b), "true"},
		{"sorted with negations", NewAnd(b, Not(a)), "!a&&b"},
		{"clauses", NewAnd(NewOr(Not(a), Not(b)), NewOr(a, b)), "(a||b)&&(!a||!b)"},
		{"absorption", NewAnd(a, NewOr(a, b)), "a"},
		{"unit resolution", NewAnd(Not(a), NewOr(a, b)), "!a&&b"},
		{"flattening", NewAnd(a, NewAnd(b, a)), "a&&b"},
		{"or absorption", NewOr(a, NewAnd(Not(a), b)), "a||b"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestIfChainStates(t *testing.T) {
	t.Parallel()

	a, b := local("a", program.Boolean), local("b", program.Boolean)
	// if (a && b) return 1; if (!a && !b) return 2; if (a && !b) return 3; if (!a && b) return 4;
	state := Not(NewAnd(a, b))
	state = NewAnd(state, Not(NewAnd(Not(a), Not(b))))
	require.Equal(t, "(a||b)&&(!a||!b)", state.String())

	state = NewAnd(state, Not(NewAnd(a, Not(b))))
	require.Equal(t, "!a&&b", state.String())

	// The last condition is implied by the state.
	require.True(t, IsFalse(NewAnd(state, Not(NewAnd(Not(a), b)))))

	ret := Value(Placeholder)
	ret = NewConditional(NewAnd(a, b), NewInt(1), ret)
	ret = NewConditional(NewAnd(Not(a), Not(b)), NewInt(2), ret)
	ret = NewConditional(NewAnd(a, Not(b)), NewInt(3), ret)
	ret = NewConditional(NewAnd(Not(a), b), NewInt(4), ret)
	require.Equal(t, "!a&&b?4:a&&!b?3:!a&&!b?2:a&&b?1:<return value>", ret.String())
	require.True(t, HasPlaceholder(ret))
	require.Equal(t, "!a&&b?4:a&&!b?3:!a&&!b?2:1", DropPlaceholder(ret).String())
}

func TestIntegerComparisons(t *testing.T) {
	t.Parallel()

	i := local("i", program.Int)
	lt := NewCompare("<", i, NewInt(0))
	require.Equal(t, "i<=-1", lt.String())
	require.Equal(t, "i>=0", Not(lt).String())
	require.Equal(t, "i>=1", NewCompare(">", i, NewInt(0)).String())
	require.Equal(t, "i<=10", NewCompare("<=", i, NewInt(10)).String())

	require.True(t, IsFalse(NewAnd(lt, Not(lt))))
	require.True(t, IsFalse(NewAnd(NewCompare(">=", i, NewInt(3)), NewCompare("<", i, NewInt(2)))))
	require.Equal(t, "i>=5", NewAnd(NewCompare(">=", i, NewInt(3)), NewCompare(">=", i, NewInt(5))).String())
	require.True(t, IsTrue(NewOr(NewCompare(">=", i, NewInt(0)), NewCompare("<", i, NewInt(3)))))

	eq := NewEquals(i, NewInt(3))
	require.Equal(t, "i==3", eq.String())
	require.Equal(t, "i!=3", Not(eq).String())
	require.True(t, IsFalse(NewAnd(eq, NewCompare(">", i, NewInt(3)))))
	require.Equal(t, "i==3", NewAnd(eq, NewCompare(">=", i, NewInt(0))).String())
	require.True(t, IsFalse(NewAnd(eq, NewEquals(i, NewInt(4)))))
	require.Equal(t, "i==2", NewEquals(NewSum(i, NewInt(1)), NewInt(3)).String())
	require.True(t, IsTrue(NewCompare("<", NewInt(1), NewInt(2))))
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	n, m := local("n", program.Int), local("m", program.Int)
	require.Equal(t, "5", NewSum(NewInt(2), NewInt(3)).String())
	require.Equal(t, "n-1", NewSubtract(n, NewInt(1)).String())
	require.Equal(t, "n", NewSubtract(NewSum(n, NewInt(1)), NewInt(1)).String())
	require.Equal(t, "0", NewSubtract(n, n).String())
	require.Equal(t, "m+n+3", NewSum(NewSum(n, NewInt(3)), m).String())
	require.Equal(t, "2*n", NewProduct(NewInt(2), n).String())
	require.Equal(t, "-n", NewNegate(n).String())
	require.Equal(t, "n*m", NewProduct(n, m).String())
	require.Equal(t, "56", NewSum(NewSum(NewInt(12), NewInt(13)), NewInt(31)).String())

	q, err := NewDivide(n, NewInt(0))
	require.ErrorIs(t, err, ErrDivisionByZero)
	require.True(t, IsUnknown(q))
	require.True(t, IsUnknown(NewSum(q, NewInt(1))))

	r, err := NewRemainder(NewInt(7), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "1", r.String())

	q, err = NewDivide(n, NewInt(2))
	require.NoError(t, err)
	require.Equal(t, "n/2", q.String())
}

func TestInt32Wrap(t *testing.T) {
	t.Parallel()

	n := local("n", program.Int)
	tests := []struct {
		give Value
		want string
	}{
		{NewSum(NewInt(2147483647), NewInt(1)), "-2147483648"},
		{NewProduct(NewInt(65536), NewInt(65536)), "0"},
		{NewNegate(NewInt(-2147483648)), "-2147483648"},
		{NewSubtract(NewInt(-2147483648), NewInt(1)), "2147483647"},
		{NewSum(NewInt(2), NewInt(3)), "5"},
		{NewSum(n, NewInt(1)), "n+1"},
		{True, "true"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ToInt32(tt.give).String())
	}
}

func TestSentinels(t *testing.T) {
	t.Parallel()

	a := local("a", program.Boolean)
	d := NewDelayed("field x")
	require.True(t, IsDelayed(NewAnd(a, d)))
	require.True(t, IsDelayed(Not(d)))
	require.True(t, IsDelayed(NewConditional(d, NewInt(1), NewInt(2))))
	require.True(t, IsDelayed(NewSum(Unknown, d)), "delays win over unknown values")
	require.Equal(t, "<delayed: field x>", d.String())
}

func TestConditional(t *testing.T) {
	t.Parallel()

	a, b := local("a", program.Boolean), local("b", program.Boolean)
	require.Equal(t, "3", NewConditional(True, NewInt(3), NewInt(4)).String())
	require.Equal(t, "3", NewConditional(a, NewInt(3), NewInt(3)).String())
	require.Equal(t, "!a", NewConditional(a, False, True).String())
	require.Equal(t, "a||b", NewConditional(a, True, b).String())
	require.Equal(t, "a&&b", NewConditional(a, b, False).String())
	require.Equal(t, "(a?1:2)+1", NewBinaryOp("+", NewConditional(a, NewInt(1), NewInt(2)), NewInt(1)).String())
}

func TestNullChecks(t *testing.T) {
	t.Parallel()

	s := local("s", program.String)
	obj := NewNewObject("Object", nil)
	require.True(t, IsFalse(NewEquals(obj, Null)))
	require.True(t, IsFalse(NewEquals(NewString("x"), Null)))
	require.True(t, IsTrue(NewEquals(Null, Null)))
	require.Equal(t, "s==null", NewEquals(Null, s).String())
	require.Equal(t, "s!=null", Not(NewEquals(s, Null)).String())

	wrapped := Wrap(s, map[property.Property]property.DV{property.NotNullExpression: property.EffectivelyNotNull})
	require.Equal(t, "s", wrapped.String())
	require.True(t, IsFalse(NewEquals(wrapped, Null)))
}

func TestQueries(t *testing.T) {
	t.Parallel()

	a, s := local("a", program.TypeRef{Name: "int", Dims: 1}), local("s", program.String)
	cond := NewAnd(NewEquals(NewArrayLength(a), NewInt(3)), NewCompare(">=", s, NewInt(0)))
	sizes := SizeRestrictions(cond)
	require.Equal(t, map[string]property.DV{a.Var.Key(): property.SizeEquals(3)}, sizes)

	c := NewConditional(local("b", program.Boolean), a, s)
	linked := LinkedVariables(c)
	require.Len(t, linked, 2)
	require.Equal(t, "a", linked[0].Name())
	require.Empty(t, LinkedVariables(NewInt(3)))

	require.Equal(t, property.EffectivelyNotNull, PropertyOutsideContext(NewInt(3), property.NotNullExpression))
	require.Equal(t, property.Delay, PropertyOutsideContext(s, property.NotNullExpression))
	require.Equal(t, property.E2, PropertyOutsideContext(NewString("x"), property.Immutable))

	vars := Variables(NewSum(local("i", program.Int), local("j", program.Int)))
	require.Len(t, vars, 2)
}

func BenchmarkSimplify(b *testing.B) {
	x, y, z := local("x", program.Boolean), local("y", program.Boolean), local("z", program.Boolean)
	for i := 0; i < b.N; i++ {
		state := NewAnd(NewOr(x, y), NewOr(Not(x), z), NewOr(Not(y), Not(z)))
		_ = NewAnd(state, Not(x), y)
	}
}
