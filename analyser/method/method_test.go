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

package method_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/accumulation"
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const _src = `
types:
  - name: Calc
    fields:
      - {name: total, type: int, access: private}
    methods:
      - name: add
        access: public
        params: [{name: n, type: int}]
        body:
          - expr: "total = total + n"
      - name: get
        access: public
        returns: int
        body:
          - return: "total"
      - name: three
        access: public
        returns: int
        body:
          - return: "3"
      - name: same
        static: true
        access: public
        returns: String
        params: [{name: s, type: String}]
        body:
          - return: "s"
      - name: ignoring
        static: true
        access: public
        params: [{name: arg, type: int}]
        body:
          - return:
      - name: fill
        static: true
        params: [{name: list, type: List}]
        body:
          - expr: "list.add(\"x\")"
      - name: peek
        static: true
        params: [{name: list, type: List}]
        body:
          - expr: "list.get(0)"
      - name: strict
        static: true
        params: [{name: items, type: List, annotations: [NotModified]}]
        body:
          - expr: "items.add(\"x\")"
  - name: Freezable
    fields:
      - {name: frozen, type: boolean, access: private}
      - {name: list, type: List, access: private, final: true, init: "new ArrayList()"}
    methods:
      - name: freeze
        access: public
        body:
          - if:
              cond: "frozen"
              then:
                - throw: "new IllegalStateException()"
          - expr: "frozen = true"
      - name: add
        access: public
        params: [{name: s, type: String}]
        body:
          - if:
              cond: "frozen"
              then:
                - throw: "new IllegalStateException()"
          - expr: "list.add(s)"
      - name: count
        access: public
        returns: int
        body:
          - if:
              cond: "!frozen"
              then:
                - throw: "new IllegalStateException()"
          - return: "1"
  - name: Client
    methods:
      - name: twice
        static: true
        body:
          - local: {name: f, type: Freezable, init: "new Freezable()"}
          - expr: "f.freeze()"
          - expr: "f.freeze()"
      - name: late
        static: true
        body:
          - local: {name: f, type: Freezable, init: "new Freezable()"}
          - expr: "f.freeze()"
          - expr: "f.add(\"x\")"
      - name: early
        static: true
        returns: int
        body:
          - local: {name: f, type: Freezable, init: "new Freezable()"}
          - return: "f.count()"
      - name: proper
        static: true
        returns: int
        body:
          - local: {name: f, type: Freezable, init: "new Freezable()"}
          - expr: "f.add(\"x\")"
          - expr: "f.freeze()"
          - return: "f.count()"
      - name: given
        static: true
        params: [{name: f, type: Freezable}]
        body:
          - expr: "f.add(\"x\")"
          - expr: "f.freeze()"
          - expr: "f.add(\"y\")"
      - name: maybe
        static: true
        params: [{name: b, type: boolean}]
        body:
          - local: {name: f, type: Freezable, init: "new Freezable()"}
          - if:
              cond: "b"
              then:
                - expr: "f.freeze()"
          - expr: "f.add(\"x\")"
  - name: Builder
    methods:
      - name: self
        access: public
        returns: Builder
        body:
          - return: "this"
  - name: Task
    interface: true
    methods:
      - {name: run, abstract: true, access: public}
      - {name: size, abstract: true, access: public, returns: int, annotations: [NotModified]}
`

type fixture struct {
	prog *program.Program
	res  *accumulation.Result
}

func setup(t *testing.T) *fixture {
	t.Helper()
	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse([]byte(_src), "methods.yaml", store.Types())
	require.NoError(t, err)
	res, err := accumulation.Run(context.Background(), prog, store, config.Default(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return &fixture{prog: prog, res: res}
}

func (f *fixture) method(t *testing.T, typ, name string) *analysis.MethodAnalysis {
	t.Helper()
	for _, m := range f.prog.LookupType(typ).Methods {
		if m.Name == name {
			return f.res.Method(m)
		}
	}
	t.Fatalf("no method %s.%s", typ, name)
	return nil
}

func (f *fixture) has(kind diagnostic.Kind, loc diagnostic.Location) bool {
	for _, d := range f.res.Diagnostics {
		if d.Kind == kind && d.Location == loc {
			return true
		}
	}
	return false
}

func TestModified(t *testing.T) {
	t.Parallel()

	f := setup(t)
	tests := []struct {
		typ, method string
		want        property.DV
	}{
		{"Calc", "add", property.True},
		{"Calc", "get", property.False},
		{"Calc", "three", property.False},
		{"Builder", "self", property.False},
		{"Task", "run", property.True},
		{"Task", "size", property.False},
	}
	for _, tt := range tests {
		ma := f.method(t, tt.typ, tt.method)
		require.Equal(t, tt.want, ma.Props.Get(property.Modified), tt.method)
		require.True(t, ma.IsDone(), tt.method)
	}
}

func TestReturnValue(t *testing.T) {
	t.Parallel()

	f := setup(t)
	three := f.method(t, "Calc", "three")
	require.Equal(t, property.True, three.Props.Get(property.Constant))
	require.True(t, value.Equal(value.NewInt(3), three.ReturnValue.MustGet()))

	get := f.method(t, "Calc", "get")
	require.Equal(t, property.False, get.Props.Get(property.Constant))
	require.Equal(t, property.False, get.Props.Get(property.Identity))

	same := f.method(t, "Calc", "same")
	require.Equal(t, property.True, same.Props.Get(property.Identity))
	require.Equal(t, property.False, same.Props.Get(property.Fluent))
	require.Equal(t, property.E2, same.Props.Get(property.Immutable))

	self := f.method(t, "Builder", "self")
	require.Equal(t, property.True, self.Props.Get(property.Fluent))
	require.Equal(t, property.False, self.Props.Get(property.Identity))
}

func TestParameters(t *testing.T) {
	t.Parallel()

	f := setup(t)
	fill := f.method(t, "Calc", "fill")
	require.Equal(t, property.True, fill.Params[0].Props.Get(property.ModifiedVariable))

	peek := f.method(t, "Calc", "peek")
	require.Equal(t, property.False, peek.Params[0].Props.Get(property.ModifiedVariable))

	add := f.method(t, "Calc", "add")
	require.Equal(t, property.EffectivelyNotNull, add.Params[0].Props.Get(property.NotNullParameter))
	require.Equal(t, property.False, add.Params[0].Props.Get(property.ModifiedVariable))
}

func TestChecks(t *testing.T) {
	t.Parallel()

	f := setup(t)
	three := f.method(t, "Calc", "three").Method
	require.True(t, f.has(diagnostic.MethodShouldBeMarkedStatic, diagnostic.AtMethod(three, "")))
	get := f.method(t, "Calc", "get").Method
	require.False(t, f.has(diagnostic.MethodShouldBeMarkedStatic, diagnostic.AtMethod(get, "")))
	same := f.method(t, "Calc", "same").Method
	require.False(t, f.has(diagnostic.MethodShouldBeMarkedStatic, diagnostic.AtMethod(same, "")))

	ignoring := f.method(t, "Calc", "ignoring").Method
	require.True(t, f.has(diagnostic.UnusedParameter, diagnostic.AtParameter(ignoring.Params[0])))
	add := f.method(t, "Calc", "add").Method
	require.False(t, f.has(diagnostic.UnusedParameter, diagnostic.AtParameter(add.Params[0])))

	run := f.method(t, "Task", "run").Method
	require.False(t, f.has(diagnostic.MethodShouldBeMarkedStatic, diagnostic.AtMethod(run, "")))
}

func TestEventual(t *testing.T) {
	t.Parallel()

	f := setup(t)
	for _, name := range []string{"add", "get", "three"} {
		ma := f.method(t, "Calc", name)
		require.Equal(t, "", ma.Mark.MustGet(), name)
		require.Nil(t, ma.Only.MustGet(), name)
	}
}

func TestModificationNotAllowed(t *testing.T) {
	t.Parallel()

	f := setup(t)
	strict := f.method(t, "Calc", "strict")
	require.Equal(t, property.True, strict.Params[0].Props.Get(property.ModifiedVariable))
	require.True(t, f.has(diagnostic.ModificationNotAllowed, diagnostic.AtParameter(strict.Method.Params[0])))

	fill := f.method(t, "Calc", "fill").Method
	require.False(t, f.has(diagnostic.ModificationNotAllowed, diagnostic.AtParameter(fill.Params[0])))
	peek := f.method(t, "Calc", "peek").Method
	require.False(t, f.has(diagnostic.ModificationNotAllowed, diagnostic.AtParameter(peek.Params[0])))
}

func TestEventualCalls(t *testing.T) {
	t.Parallel()

	f := setup(t)
	require.Equal(t, "frozen", f.method(t, "Freezable", "freeze").Mark.MustGet())
	require.Equal(t, &analysis.Only{Field: "frozen"}, f.method(t, "Freezable", "add").Only.MustGet())
	require.Equal(t, &analysis.Only{Field: "frozen", After: true}, f.method(t, "Freezable", "count").Only.MustGet())

	tests := []struct {
		method string
		kind   diagnostic.Kind
		index  string
	}{
		{"twice", diagnostic.EventualBeforeRequired, "2"},
		{"late", diagnostic.EventualBeforeRequired, "2"},
		{"early", diagnostic.EventualAfterRequired, "1"},
		{"given", diagnostic.EventualBeforeRequired, "2"},
	}
	for _, tt := range tests {
		m := f.method(t, "Client", tt.method).Method
		require.True(t, f.has(tt.kind, diagnostic.AtMethod(m, tt.index)), "%s %s", tt.method, tt.kind)
	}

	eventualAt := func(method, index string) bool {
		for _, d := range f.res.Diagnostics {
			if d.Location.Name == method && d.Location.Index == index &&
				(d.Kind == diagnostic.EventualBeforeRequired || d.Kind == diagnostic.EventualAfterRequired) {
				return true
			}
		}
		return false
	}
	for _, index := range []string{"0", "1", "2", "3"} {
		require.False(t, eventualAt("proper", index), index)
	}
	for _, index := range []string{"0", "1", "1.0.0", "2"} {
		require.False(t, eventualAt("maybe", index), index)
	}
	require.False(t, eventualAt("given", "0"))
}
