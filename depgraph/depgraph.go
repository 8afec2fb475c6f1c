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

// Package depgraph builds the dependency graph of the analysed program. Methods are nodes with
// "calls" and "modifies" edges; their strongly connected components, ordered callees first, are
// the units of the fixed-point computation. A second graph over types yields the order of the type
// analysers and the circular type dependencies.
package depgraph

import (
	"slices"

	"github.com/yourbasic/graph"
	"go.uber.org/immutaway/program"
	"golang.org/x/tools/container/intsets"
)

// EdgeKind distinguishes the edges between methods.
type EdgeKind uint8

// The edge kinds.
const (
	// Calls goes from a method to a method it calls, refers to, or creates as a lambda.
	Calls EdgeKind = 1 << iota
	// Modifies goes from a method assigning a field of another object to the constructors of the
	// field's owner.
	Modifies
)

// Component is a strongly connected component of the method graph.
type Component struct {
	ID      int
	Methods []*program.Method
	// Cyclic is set for components with more than one member or a method calling itself.
	Cyclic bool
}

// Graph is the dependency graph of a program. Node ids index into Methods.
type Graph struct {
	Methods []*program.Method

	index      map[*program.Method]int
	edges      []map[int]EdgeKind
	components []*Component
	compOf     []int
	undeclared intsets.Sparse

	types      *typeGraph
	typeOrder  []*program.Type
	circular   [][]*program.Type
	circularOf map[*program.Type]int
}

// Build constructs the graph of all methods of the program's own types.
func Build(prog *program.Program) *Graph {
	g := &Graph{Methods: prog.Methods(), index: make(map[*program.Method]int)}
	for i, m := range g.Methods {
		g.index[m] = i
	}
	g.edges = make([]map[int]EdgeKind, len(g.Methods))
	for i := range g.edges {
		g.edges[i] = make(map[int]EdgeKind)
	}
	g.types = newTypeGraph(prog)
	for i, m := range g.Methods {
		g.collect(i, m)
	}
	g.computeComponents()
	g.computeTypeOrder(prog)
	return g
}

func (g *Graph) addEdge(from int, to *program.Method, kind EdgeKind) {
	if j, ok := g.index[to]; ok {
		g.edges[from][j] |= kind
	}
}

// collect records the edges leaving method i. Lambda bodies are not descended into: the lambda is
// a method of its own, reached through a Calls edge.
func (g *Graph) collect(i int, m *program.Method) {
	owner := m.Owner
	for _, p := range m.Params {
		g.types.reference(owner, p.Type)
	}
	g.types.reference(owner, m.Return)
	if m.Body == nil {
		return
	}
	program.Inspect(m.Body, func(n program.Node) bool {
		switch n := n.(type) {
		case *program.Lambda:
			if n.Method != nil {
				g.addEdge(i, n.Method, Calls)
			}
			return false
		case *program.MethodRef:
			if n.Method != nil {
				g.addEdge(i, n.Method, Calls)
				g.types.referenceType(owner, n.Method.Owner)
			}
		case *program.Call:
			if n.Method == nil {
				return true
			}
			g.addEdge(i, n.Method, Calls)
			g.types.referenceType(owner, n.Method.Owner)
			if isUndeclaredSAMCall(n) {
				g.undeclared.Insert(i)
			}
		case *program.New:
			if n.Ctor != nil {
				g.addEdge(i, n.Ctor, Calls)
			}
			if n.Class != nil {
				g.types.referenceType(owner, n.Class)
			}
		case *program.LocalVar:
			g.types.reference(owner, n.Var.Type)
		case *program.Assign:
			if fa, ok := n.Target.(*program.FieldAccess); ok && fa.Field != nil && !isThis(fa.X) {
				for _, c := range fa.Field.Owner.Constructors() {
					g.addEdge(i, c, Modifies)
				}
				g.types.referenceType(owner, fa.Field.Owner)
			}
		}
		return true
	})
}

func isThis(e program.Expr) bool {
	_, ok := e.(*program.This)
	return ok
}

// isUndeclaredSAMCall reports whether the call invokes the abstract method of a functional
// interface held by a parameter that carries no @NotModified contract.
func isUndeclaredSAMCall(c *program.Call) bool {
	name, ok := c.X.(*program.Name)
	if !ok || name.Param == nil || !c.Method.Abstract {
		return false
	}
	if name.Param.Annotations.Has("NotModified") {
		return false
	}
	return c.Method.Owner.IsFunctional()
}

// Order implements graph.Iterator.
func (g *Graph) Order() int { return len(g.Methods) }

// Visit implements graph.Iterator over the edges of every kind.
func (g *Graph) Visit(v int, do func(w int, c int64) bool) bool {
	targets := make([]int, 0, len(g.edges[v]))
	for w := range g.edges[v] {
		targets = append(targets, w)
	}
	slices.Sort(targets)
	for _, w := range targets {
		if do(w, 1) {
			return true
		}
	}
	return false
}

func (g *Graph) computeComponents() {
	sccs := graph.StrongComponents(g)
	g.compOf = make([]int, len(g.Methods))
	for c, members := range sccs {
		for _, v := range members {
			g.compOf[v] = c
		}
	}
	// The condensation has an edge from callee to caller, so that a topological order lists
	// callees first.
	cond := graph.New(len(sccs))
	for v := range g.Methods {
		for w := range g.edges[v] {
			if g.compOf[v] != g.compOf[w] {
				cond.Add(g.compOf[w], g.compOf[v])
			}
		}
	}
	order, ok := graph.TopSort(cond)
	if !ok {
		panic("depgraph: condensation of the method graph has a cycle")
	}
	g.components = make([]*Component, len(order))
	renumber := make([]int, len(sccs))
	for pos, c := range order {
		renumber[c] = pos
		members := slices.Clone(sccs[c])
		slices.Sort(members)
		comp := &Component{ID: pos, Cyclic: len(members) > 1}
		for _, v := range members {
			comp.Methods = append(comp.Methods, g.Methods[v])
			if g.edges[v][v]&Calls != 0 {
				comp.Cyclic = true
			}
		}
		g.components[pos] = comp
	}
	for v := range g.compOf {
		g.compOf[v] = renumber[g.compOf[v]]
	}
}

// Components returns the strongly connected components, callees first.
func (g *Graph) Components() []*Component { return g.components }

// ComponentOf returns the component of m, or nil for methods outside the graph.
func (g *Graph) ComponentOf(m *program.Method) *Component {
	i, ok := g.index[m]
	if !ok {
		return nil
	}
	return g.components[g.compOf[i]]
}

// SameCycle reports whether a and b are members of the same cyclic component.
func (g *Graph) SameCycle(a, b *program.Method) bool {
	ca, cb := g.ComponentOf(a), g.ComponentOf(b)
	return ca != nil && ca == cb && ca.Cyclic
}

// Callees returns the methods m has an edge of the kind to, in node order.
func (g *Graph) Callees(m *program.Method, kind EdgeKind) []*program.Method {
	i, ok := g.index[m]
	if !ok {
		return nil
	}
	var ids []int
	for w, k := range g.edges[i] {
		if k&kind != 0 {
			ids = append(ids, w)
		}
	}
	slices.Sort(ids)
	out := make([]*program.Method, len(ids))
	for j, w := range ids {
		out[j] = g.Methods[w]
	}
	return out
}

// CallsUndeclaredSAM reports whether m calls the abstract method of a functional interface
// parameter without a @NotModified contract.
func (g *Graph) CallsUndeclaredSAM(m *program.Method) bool {
	i, ok := g.index[m]
	return ok && g.undeclared.Has(i)
}
