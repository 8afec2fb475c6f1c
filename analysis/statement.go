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

package analysis

import (
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/util"
	"go.uber.org/immutaway/util/orderedmap"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
)

// VariableInfo is what a statement pass knows about one variable after a statement.
type VariableInfo struct {
	Variable variable.Variable
	Value    value.Value
	// AssignmentID is the id of the latest assignment ("3-E"), empty when the variable was not
	// assigned in the method.
	AssignmentID string
	// ReadID is the index of the latest statement that read the variable.
	ReadID string
	// Props holds context properties: ContextNotNull, ContextModified and Size.
	Props map[property.Property]property.DV
	// Linked lists the keys of the variables this one may share object identity with.
	Linked []string
	// Eventual is the side of the mark the object held by the variable is known to be on.
	Eventual EventualState
}

// EventualState places an eventually immutable object relative to its mark.
type EventualState int8

const (
	// EventualUnknown is used when nothing is known, e.g. for a parameter.
	EventualUnknown EventualState = iota
	// BeforeMark holds for a freshly constructed object.
	BeforeMark
	// AfterMark holds once a mark method was called on the object.
	AfterMark
)

// Copy returns an independent copy.
func (vi *VariableInfo) Copy() *VariableInfo {
	c := *vi
	c.Props = make(map[property.Property]property.DV, len(vi.Props))
	for p, v := range vi.Props {
		c.Props[p] = v
	}
	c.Linked = append([]string(nil), vi.Linked...)
	return &c
}

// Prop returns a context property, or the property's absent level.
func (vi *VariableInfo) Prop(p property.Property) property.DV {
	if v, ok := vi.Props[p]; ok {
		return v
	}
	return p.Absent()
}

// AssignedAfterRead reports whether the latest assignment comes after the latest read.
func (vi *VariableInfo) AssignedAfterRead() bool {
	return util.CompareIndex(vi.AssignmentID, vi.ReadID) > 0
}

// StatementAnalysis is the record of one statement in one pass.
type StatementAnalysis struct {
	Index string
	// Kind is the statement keyword, e.g. "if" or "return".
	Kind string
	Pos  program.Pos
	// Condition is the guard of the enclosing block, State the state after the statement within
	// the block, and AbsoluteState the conjunction of Condition and the state at entry.
	Condition     value.Value
	State         value.Value
	AbsoluteState value.Value
	// Precondition is this statement's contribution to the method's precondition, or nil.
	Precondition      value.Value
	ValueOfExpression value.Value
	Reachable         bool
	Escapes           bool
	// Errors records the diagnostics raised on this statement; each kind is raised once.
	Errors    map[diagnostic.Kind]bool
	Variables *orderedmap.OrderedMap[string, *VariableInfo]
}

// Variable finds the variable with the rendering name, e.g. "array[0]" or "this.frozen".
func (s *StatementAnalysis) Variable(name string) *VariableInfo {
	var out *VariableInfo
	s.Variables.OrderedRange(func(_ string, vi *VariableInfo) bool {
		if vi.Variable.Name() == name {
			out = vi
			return false
		}
		return true
	})
	return out
}

// HasError reports whether the kind was raised on the statement.
func (s *StatementAnalysis) HasError(k diagnostic.Kind) bool { return s.Errors[k] }

// TransferValue summarises one return point of a method.
type TransferValue struct {
	Index     string
	Value     value.Value
	NotNull   property.DV
	Immutable property.DV
}

// ParameterContext is what a pass learned about a parameter from the way the body uses it.
type ParameterContext struct {
	Read            bool
	Assigned        bool
	ContextNotNull  property.DV
	ContextModified property.DV
	// LinkedFields are the fields of this the parameter was assigned into.
	LinkedFields []*program.Field
}

// MethodLevelData aggregates a pass over a method body.
type MethodLevelData struct {
	// Delays lists the causes of the delays met during the pass; empty means the pass is final.
	Delays []string
	// ThisModified is set when this, or a field of this, is modified or assigned outside a
	// constructor. ThisModifiedDelayed is set when that may happen through a delayed callee.
	ThisModified        bool
	ThisModifiedDelayed bool
	// ThisAccessed is set when the body uses this, a field, or an instance method of its type.
	ThisAccessed       bool
	CallsUndeclaredSAM bool
	// CycleCalls are callees in the same cyclic component whose modification is not yet known.
	CycleCalls []*program.Method

	Transfers     []TransferValue
	Preconditions []value.Value
	Precondition  value.Value
	ReturnValue   value.Value
	FinalState    value.Value

	Params         []*ParameterContext
	FieldsRead     map[*program.Field]bool
	FieldsAssigned map[*program.Field][]value.Value
	// FieldValues holds the value of every field of this at normal completion of the body.
	FieldValues    map[*program.Field]value.Value
	FieldsModified map[*program.Field]property.DV
	// ReturnLinkedFields are the fields the return value may share object identity with.
	ReturnLinkedFields []*program.Field
	TypesModified      map[*program.Type]bool
}

// NewMethodLevelData returns empty data for a method with n parameters.
func NewMethodLevelData(n int) *MethodLevelData {
	d := &MethodLevelData{
		FieldsRead:     make(map[*program.Field]bool),
		FieldsAssigned: make(map[*program.Field][]value.Value),
		FieldValues:    make(map[*program.Field]value.Value),
		FieldsModified: make(map[*program.Field]property.DV),
		TypesModified:  make(map[*program.Type]bool),
	}
	for i := 0; i < n; i++ {
		d.Params = append(d.Params, &ParameterContext{ContextNotNull: property.Nullable, ContextModified: property.False})
	}
	return d
}

// HasDelays reports whether the pass met any delay, including pending cycle calls.
func (d *MethodLevelData) HasDelays() bool { return len(d.Delays) > 0 || len(d.CycleCalls) > 0 }
