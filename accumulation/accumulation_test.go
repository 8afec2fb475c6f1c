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

package accumulation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/annotatedapi"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const _src = `
types:
  - name: Point
    fields:
      - {name: x, type: int, access: private, final: true}
      - {name: y, type: int, access: private, final: true}
    methods:
      - name: Point
        constructor: true
        access: public
        params: [{name: x, type: int}, {name: y, type: int}]
        body:
          - expr: "this.x = x"
          - expr: "this.y = y"
      - name: getX
        access: public
        returns: int
        body:
          - return: "x"
      - name: getY
        access: public
        returns: int
        body:
          - return: "y"
  - name: Tally
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
  - name: Helper
    methods:
      - name: twice
        access: public
        returns: int
        params: [{name: n, type: int}]
        body:
          - return: "n * 2"
`

func load(t *testing.T) (*program.Program, *annotatedapi.Store) {
	t.Helper()
	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse([]byte(_src), "clusters.yaml", store.Types())
	require.NoError(t, err)
	return prog, store
}

func snapshot(res *Result) map[string]map[property.Property]property.DV {
	out := make(map[string]map[property.Property]property.DV)
	for _, cr := range res.Clusters {
		for _, ma := range cr.Registry.Methods() {
			out["M:"+ma.Method.FQN()] = ma.Props.Snapshot()
		}
		for _, fa := range cr.Registry.Fields() {
			out["F:"+fa.Field.FQN()] = fa.Props.Snapshot()
		}
		for _, ta := range cr.Registry.TypeAnalyses() {
			out["T:"+ta.Type.FQN()] = ta.Props.Snapshot()
		}
	}
	return out
}

func TestRun(t *testing.T) {
	t.Parallel()

	prog, store := load(t)
	res, err := Run(context.Background(), prog, store, config.Default(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, res.Clusters, 3)

	point := prog.LookupType("Point")
	require.Equal(t, property.E2, res.Type(point).Props.Get(property.Immutable))
	require.Equal(t, property.False, res.Method(point.Methods[1]).Props.Get(property.Modified))

	tally := prog.LookupType("Tally")
	require.Equal(t, property.Mutable, res.Type(tally).Props.Get(property.Immutable))
	require.Equal(t, property.True, res.Method(tally.Methods[0]).Props.Get(property.Modified))
	require.Equal(t, property.False, res.Field(tally.Fields[0]).Props.Get(property.Final))

	require.Nil(t, res.Type(prog.LookupType("String")))
	for _, cr := range res.Clusters {
		require.Positive(t, cr.Iterations)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	prog, store := load(t)
	seq := config.Default()
	seq.Parallelism = 1
	par := config.Default()
	par.Parallelism = 4

	want, err := Run(context.Background(), prog, store, seq, nil)
	require.NoError(t, err)
	got, err := Run(context.Background(), prog, store, par, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(want.Diagnostics, got.Diagnostics); diff != "" {
		t.Errorf("diagnostics differ (-sequential +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot(want), snapshot(got)); diff != "" {
		t.Errorf("properties differ (-sequential +parallel):\n%s", diff)
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	prog, store := load(t)
	conf := config.Default()
	conf.Parallelism = 0
	_, err := Run(context.Background(), prog, store, conf, nil)
	require.ErrorContains(t, err, "parallelism")
}

// regressing is a library that fails like a slot asked to change its value.
type regressing struct{ analysis.Provider }

func (regressing) Method(*program.Method) *analysis.MethodAnalysis {
	panic(&property.RegressionError{Slot: "M:Library.call", From: "false", To: "true"})
}

func TestInternalError(t *testing.T) {
	t.Parallel()

	types, err := annotatedapi.Default()
	require.NoError(t, err)
	store := annotatedapi.NewStore(types)
	prog, err := program.Parse([]byte(`
types:
  - name: Caller
    methods:
      - name: run
        access: public
        params: [{name: s, type: String}]
        returns: int
        body:
          - return: "s.length()"
`), "internal.yaml", store.Types())
	require.NoError(t, err)

	_, err = Run(context.Background(), prog, regressing{store}, config.Default(), nil)
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	require.Equal(t, []string{"Caller"}, internal.Cluster)
	require.NotEmpty(t, internal.Stack)

	var regression *property.RegressionError
	require.True(t, errors.As(err, &regression))
	require.Equal(t, "M:Library.call", regression.Slot)
}
