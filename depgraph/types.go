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
	"errors"
	"slices"

	"go.uber.org/immutaway/program"
	"golang.org/x/tools/container/intsets"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// typeGraph records which program types refer to which other program types through field types,
// parameter and local types, calls and instantiation. Library types are not part of it.
type typeGraph struct {
	prog *program.Program
	refs map[*program.Type]*intsets.Sparse
}

func newTypeGraph(prog *program.Program) *typeGraph {
	tg := &typeGraph{prog: prog, refs: make(map[*program.Type]*intsets.Sparse)}
	for _, t := range prog.Types {
		tg.refs[t] = &intsets.Sparse{}
		for _, f := range t.Fields {
			tg.reference(t, f.Type)
		}
		for _, s := range t.Supertypes {
			tg.referenceType(t, prog.LookupType(s))
		}
	}
	return tg
}

func (tg *typeGraph) reference(from *program.Type, ref program.TypeRef) {
	if ref.IsPrimitive() || ref.IsVoid() {
		return
	}
	tg.referenceType(from, tg.prog.LookupType(ref.Name))
}

func (tg *typeGraph) referenceType(from, to *program.Type) {
	if to == nil || to == from || to.Library || from.Library {
		return
	}
	tg.refs[from].Insert(to.ID)
}

// references returns the ids of the types t refers to, ascending.
func (tg *typeGraph) references(t *program.Type) []int {
	return tg.refs[t].AppendTo(nil)
}

// computeTypeOrder sorts the types so that referenced types come first. Cycles cannot be ordered;
// each becomes a circular group placed at its topological position.
func (g *Graph) computeTypeOrder(prog *program.Program) {
	dg := simple.NewDirectedGraph()
	for _, t := range prog.Types {
		dg.AddNode(simple.Node(t.ID))
	}
	for _, t := range prog.Types {
		for _, id := range g.types.references(t) {
			dg.SetEdge(dg.NewEdge(simple.Node(id), simple.Node(t.ID)))
		}
	}
	sorted, err := topo.Sort(dg)
	var cycles topo.Unorderable
	if err != nil && !errors.As(err, &cycles) {
		panic("depgraph: " + err.Error())
	}
	g.circularOf = make(map[*program.Type]int)
	next := 0
	for _, n := range sorted {
		if n != nil {
			g.typeOrder = append(g.typeOrder, prog.Types[n.ID()])
			continue
		}
		var group []*program.Type
		for _, member := range cycles[next] {
			t := prog.Types[member.ID()]
			group = append(group, t)
			g.circularOf[t] = len(g.circular)
		}
		next++
		g.circular = append(g.circular, group)
		g.typeOrder = append(g.typeOrder, group...)
	}
}

// TypeOrder returns the program types, referenced types first; members of a circular group are
// adjacent.
func (g *Graph) TypeOrder() []*program.Type { return g.typeOrder }

// CircularGroups returns the groups of types that depend on each other.
func (g *Graph) CircularGroups() [][]*program.Type { return g.circular }

// CircularGroup returns the circular group of t, or nil.
func (g *Graph) CircularGroup(t *program.Type) []*program.Type {
	if i, ok := g.circularOf[t]; ok {
		return g.circular[i]
	}
	return nil
}

// Cluster is a set of types that share no edge with the types of any other cluster. Clusters can
// be analysed independently of each other.
type Cluster struct {
	Types      []*program.Type
	Components []*Component
}

// Clusters partitions the program types into weakly connected groups. Types appear in type order
// and components in processing order.
func (g *Graph) Clusters() []*Cluster {
	n := len(g.typeOrder)
	if n == 0 {
		return nil
	}
	parent := make([]int, n+len(g.Methods))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) { parent[find(a)] = find(b) }
	for _, t := range g.typeOrder {
		for _, id := range g.types.references(t) {
			union(t.ID, id)
		}
	}
	for v, m := range g.Methods {
		union(m.Owner.ID, v+n)
		for w := range g.edges[v] {
			union(v+n, w+n)
		}
	}

	byRoot := make(map[int]*Cluster)
	var out []*Cluster
	for _, t := range g.typeOrder {
		r := find(t.ID)
		c, ok := byRoot[r]
		if !ok {
			c = &Cluster{}
			byRoot[r] = c
			out = append(out, c)
		}
		c.Types = append(c.Types, t)
	}
	for _, comp := range g.components {
		r := find(g.index[comp.Methods[0]] + n)
		byRoot[r].Components = append(byRoot[r].Components, comp)
	}
	return out
}

// Methods returns the methods of the cluster in processing order.
func (c *Cluster) Methods() []*program.Method {
	var out []*program.Method
	for _, comp := range c.Components {
		out = append(out, comp.Methods...)
	}
	return out
}

// Contains reports whether the type belongs to the cluster.
func (c *Cluster) Contains(t *program.Type) bool { return slices.Contains(c.Types, t) }
