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

package statement

import (
	"slices"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/util"
	"go.uber.org/immutaway/util/orderedmap"
	"go.uber.org/immutaway/value"
)

// env maps variable keys to what the pass knows about them at one program point.
type env struct {
	vars *orderedmap.OrderedMap[string, *analysis.VariableInfo]
}

func newEnv() *env {
	return &env{vars: orderedmap.New[string, *analysis.VariableInfo]()}
}

func (e *env) get(key string) *analysis.VariableInfo { return e.vars.Value(key) }

func (e *env) put(vi *analysis.VariableInfo) { e.vars.Store(vi.Variable.Key(), vi) }

// copy returns an environment that can be modified without affecting e.
func (e *env) copy() *env {
	c := newEnv()
	e.vars.OrderedRange(func(k string, vi *analysis.VariableInfo) bool {
		c.vars.Store(k, vi.Copy())
		return true
	})
	return c
}

// mergeBranches joins the environments at the end of the two branches of a condition. The value of
// a variable that differs is the conditional "cond?then:else".
func mergeBranches(cond value.Value, then, els *env) *env {
	out := newEnv()
	for _, k := range unionKeys(then, els) {
		a, b := then.get(k), els.get(k)
		switch {
		case a == nil:
			out.put(b.Copy())
		case b == nil:
			out.put(a.Copy())
		default:
			out.put(mergeInfo(cond, a, b))
		}
	}
	return out
}

func mergeInfo(cond value.Value, a, b *analysis.VariableInfo) *analysis.VariableInfo {
	m := a.Copy()
	if !value.Equal(a.Value, b.Value) {
		m.Value = value.NewConditional(cond, a.Value, b.Value)
	}
	m.AssignmentID = maxIndex(a.AssignmentID, b.AssignmentID)
	m.ReadID = maxIndex(a.ReadID, b.ReadID)
	if a.Eventual != b.Eventual {
		m.Eventual = analysis.EventualUnknown
	}
	for _, p := range []property.Property{property.ContextNotNull, property.ContextModified, property.Size} {
		_, inA := a.Props[p]
		_, inB := b.Props[p]
		if !inA && !inB {
			continue
		}
		m.Props[p] = p.Merge(a.Prop(p), b.Prop(p))
	}
	for _, l := range b.Linked {
		if !slices.Contains(m.Linked, l) {
			m.Linked = append(m.Linked, l)
		}
	}
	return m
}

// afterLoop joins the environment before a loop with the one at the end of its body. Values are
// those at loop entry, where the variables assigned in the body are already opaque; context
// modification made in the body survives, context not-null does not, since the body may not run.
func afterLoop(before, body *env) *env {
	out := before.copy()
	body.vars.OrderedRange(func(k string, bvi *analysis.VariableInfo) bool {
		vi := out.get(k)
		if vi == nil {
			c := bvi.Copy()
			c.Value = value.NewVariable(c.Variable)
			delete(c.Props, property.ContextNotNull)
			out.put(c)
			return true
		}
		vi.ReadID = maxIndex(vi.ReadID, bvi.ReadID)
		vi.AssignmentID = maxIndex(vi.AssignmentID, bvi.AssignmentID)
		if bvi.Eventual != vi.Eventual {
			vi.Eventual = analysis.EventualUnknown
		}
		if bvi.Prop(property.ContextModified).IsTrue() {
			vi.Props[property.ContextModified] = property.True
		}
		return true
	})
	return out
}

func unionKeys(a, b *env) []string {
	keys := a.vars.Keys()
	for _, k := range b.vars.Keys() {
		if _, ok := a.vars.Load(k); !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func maxIndex(a, b string) string {
	if util.CompareIndex(a, b) >= 0 {
		return a
	}
	return b
}

func sortLocals(ls []*localUse) {
	slices.SortFunc(ls, func(a, b *localUse) int { return util.CompareIndex(a.index, b.index) })
}
