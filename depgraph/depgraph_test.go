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

package depgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway/program"
)

const _src = `
types:
  - name: Fn
    interface: true
    methods:
      - name: apply
        returns: void
  - name: A
    fields:
      - {name: b, type: B, access: private}
    methods:
      - name: even
        returns: boolean
        params: [{name: n, type: int}]
        body:
          - return: "n == 0 || odd(n - 1)"
      - name: odd
        returns: boolean
        params: [{name: n, type: int}]
        body:
          - return: "n != 0 && even(n - 1)"
      - name: size
        returns: int
        body:
          - return: "b.count()"
      - name: run
        params: [{name: fn, type: Fn}]
        body:
          - expr: "fn.apply()"
      - name: safe
        params: [{name: fn, type: Fn, annotations: [NotModified]}]
        body:
          - expr: "fn.apply()"
  - name: B
    methods:
      - name: count
        returns: int
        body:
          - return: "1"
      - name: owner
        params: [{name: a, type: A}]
        body:
          - return: null
  - name: Lonely
    methods:
      - name: self
        returns: int
        params: [{name: i, type: int}]
        body:
          - return: "self(i)"
`

func load(t *testing.T) *program.Program {
	t.Helper()
	prog, err := program.Parse([]byte(_src), "graph.yaml", nil)
	require.NoError(t, err)
	return prog
}

func method(t *testing.T, prog *program.Program, typ, name string) *program.Method {
	t.Helper()
	for _, m := range prog.LookupType(typ).Methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("no method %s.%s", typ, name)
	return nil
}

func TestComponents(t *testing.T) {
	t.Parallel()

	prog := load(t)
	g := Build(prog)
	even, odd := method(t, prog, "A", "even"), method(t, prog, "A", "odd")
	size, count := method(t, prog, "A", "size"), method(t, prog, "B", "count")

	require.True(t, g.SameCycle(even, odd))
	require.True(t, g.ComponentOf(even).Cyclic)
	require.Len(t, g.ComponentOf(even).Methods, 2)
	require.False(t, g.ComponentOf(size).Cyclic)
	require.True(t, g.ComponentOf(method(t, prog, "Lonely", "self")).Cyclic, "self calls are cycles")

	pos := map[*program.Method]int{}
	for _, c := range g.Components() {
		for _, m := range c.Methods {
			pos[m] = c.ID
		}
	}
	require.Less(t, pos[count], pos[size], "callees come first")
	require.Equal(t, []*program.Method{count}, g.Callees(size, Calls))
}

func TestUndeclaredSAM(t *testing.T) {
	t.Parallel()

	prog := load(t)
	g := Build(prog)
	require.True(t, g.CallsUndeclaredSAM(method(t, prog, "A", "run")))
	require.False(t, g.CallsUndeclaredSAM(method(t, prog, "A", "safe")))
	require.False(t, g.CallsUndeclaredSAM(method(t, prog, "A", "size")))
}

func TestTypeOrderAndClusters(t *testing.T) {
	t.Parallel()

	prog := load(t)
	g := Build(prog)
	a, b, fn := prog.LookupType("A"), prog.LookupType("B"), prog.LookupType("Fn")

	groups := g.CircularGroups()
	require.Len(t, groups, 1)
	require.ElementsMatch(t, []*program.Type{a, b}, groups[0])
	require.Nil(t, g.CircularGroup(fn))

	order := g.TypeOrder()
	require.Len(t, order, 4)
	indexOf := func(x *program.Type) int {
		for i, t := range order {
			if t == x {
				return i
			}
		}
		return -1
	}
	require.Less(t, indexOf(fn), indexOf(a))

	clusters := g.Clusters()
	require.Len(t, clusters, 2)
	var big, small *Cluster
	for _, c := range clusters {
		if c.Contains(a) {
			big = c
		} else {
			small = c
		}
	}
	require.True(t, big.Contains(b))
	require.True(t, big.Contains(fn))
	require.Equal(t, []*program.Type{prog.LookupType("Lonely")}, small.Types)
	require.Len(t, small.Methods(), 1)
}
