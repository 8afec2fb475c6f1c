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

package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/depgraph"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/zap/zaptest"
)

const _freezable = `
types:
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
      - name: isFrozen
        access: public
        returns: boolean
        body:
          - return: "frozen"
`

const _counter = `
types:
  - name: Counter
    fields:
      - {name: count, type: int, access: private}
    methods:
      - name: ping
        params: [{name: n, type: int}]
        body:
          - if: {cond: "n > 0", then: [{expr: "pong(n - 1)"}]}
      - name: pong
        params: [{name: n, type: int}]
        body:
          - expr: "count = n"
          - expr: "ping(n)"
      - name: echo
        params: [{name: n, type: int}]
        body:
          - if: {cond: "n > 0", then: [{expr: "reply(n - 1)"}]}
      - name: reply
        params: [{name: n, type: int}]
        body:
          - if: {cond: "n > 0", then: [{expr: "echo(n - 1)"}]}
`

type fixture struct {
	prog   *program.Program
	reg    *analysis.Registry
	diags  *diagnostic.Engine
	engine *Engine
}

func setup(t *testing.T, src string, conf config.Config) *fixture {
	t.Helper()
	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse([]byte(src), "test.yaml", store.Types())
	require.NoError(t, err)
	graph := depgraph.Build(prog)
	clusters := graph.Clusters()
	require.Len(t, clusters, 1)

	reg := analysis.NewRegistry(store)
	for _, typ := range clusters[0].Types {
		reg.Add(typ)
	}
	diags := diagnostic.NewEngine()
	return &fixture{
		prog:   prog,
		reg:    reg,
		diags:  diags,
		engine: NewEngine(prog, reg, graph, clusters[0], diags, conf, zaptest.NewLogger(t)),
	}
}

func (f *fixture) method(t *testing.T, typ, name string) *analysis.MethodAnalysis {
	t.Helper()
	for _, m := range f.prog.LookupType(typ).Methods {
		if m.Name == name {
			return f.reg.Method(m)
		}
	}
	t.Fatalf("no method %s.%s", typ, name)
	return nil
}

func TestFreezable(t *testing.T) {
	t.Parallel()

	f := setup(t, _freezable, config.Default())
	require.NoError(t, f.engine.Run(context.Background()))

	ta := f.reg.Type(f.prog.LookupType("Freezable"))
	require.Equal(t, property.EventuallyE2, ta.Props.Get(property.Immutable))
	require.Equal(t, property.True, ta.Props.Get(property.Container))
	require.Equal(t, "{frozen=!frozen}", analysis.FormatApproved(ta.ApprovedPreconditions.MustGet()))

	freeze := f.method(t, "Freezable", "freeze")
	require.Equal(t, "frozen", freeze.Mark.MustGet())
	require.Equal(t, property.True, freeze.Props.Get(property.Modified))

	add := f.method(t, "Freezable", "add")
	require.Equal(t, &analysis.Only{Field: "frozen"}, add.Only.MustGet())

	isFrozen := f.method(t, "Freezable", "isFrozen")
	require.Equal(t, property.False, isFrozen.Props.Get(property.Modified))
	require.Nil(t, isFrozen.Only.MustGet())
	require.Equal(t, "", isFrozen.Mark.MustGet())

	for _, ma := range f.reg.Methods() {
		require.True(t, ma.IsDone(), ma.Method.Name)
	}
}

func TestCycleResolution(t *testing.T) {
	t.Parallel()

	f := setup(t, _counter, config.Default())
	require.NoError(t, f.engine.Run(context.Background()))

	tests := []struct {
		method string
		want   property.DV
	}{
		{"ping", property.True},
		{"pong", property.True},
		{"echo", property.False},
		{"reply", property.False},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, f.method(t, "Counter", tt.method).Props.Get(property.Modified), tt.method)
	}
}

func TestIterationLimit(t *testing.T) {
	t.Parallel()

	conf := config.Default()
	conf.MaxIterations = 1
	f := setup(t, _freezable, conf)
	err := f.engine.Run(context.Background())

	var limitErr *IterationLimitError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, 1, limitErr.Limit)
	require.NotEmpty(t, limitErr.Delayed)
}

func TestCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := setup(t, _freezable, config.Default())
	err := f.engine.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestHistoryIsMonotone(t *testing.T) {
	t.Parallel()

	conf := config.Default()
	conf.RecordHistory = true
	f := setup(t, _freezable, conf)
	require.NoError(t, f.engine.Run(context.Background()))

	history := f.engine.History()
	require.NotEmpty(t, history)
	require.Empty(t, history[len(history)-1].Delayed)

	seen := make(map[string]property.DV)
	check := func(owner string, props map[property.Property]property.DV) {
		for p, v := range props {
			key := owner + ":" + p.String()
			if prev, ok := seen[key]; ok {
				require.Equal(t, prev, v, key)
			}
			seen[key] = v
		}
	}
	for i, it := range history {
		require.Equal(t, i, it.Index)
		if i < len(history)-1 {
			require.Positive(t, it.Progress)
		}
		for _, ev := range it.Events {
			require.Equal(t, i, ev.Step())
			switch ev := ev.(type) {
			case analysis.MethodEvent:
				check("M:"+ev.Method, ev.Props)
			case analysis.FieldEvent:
				check("F:"+ev.Field, ev.Props)
			case analysis.TypeEvent:
				check("T:"+ev.Type, ev.Props)
			}
		}
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	err := &NoProgressError{Iteration: 3, Delayed: []string{"a", "b", "c", "d", "e", "f", "g"}}
	require.Equal(t, "no progress in iteration 3, delayed: a, b, c, d, e and 2 more", err.Error())

	limit := &IterationLimitError{Limit: 2, Delayed: []string{"M:X.y:precondition (pass)"}}
	require.Equal(t, "no fixed point after 2 iterations, delayed: M:X.y:precondition (pass)", limit.Error())
}
