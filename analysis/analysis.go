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

// Package analysis holds the published results of the analysers: one analysis object per method,
// parameter, field and type, whose properties live in single-assignment slots, plus the records
// that a statement pass produces for each statement of a method.
package analysis

import (
	"maps"
	"slices"
	"strings"

	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
)

// Status is the progress of a method within the fixed-point computation.
type Status int

// The method statuses. A method moves to Done once a pass over its statements produced no delays
// and all of its slots hold values; Done methods are not analysed again.
const (
	NotYetAnalysed Status = iota
	InProgress
	DoneThisIteration
	Done
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "IN_PROGRESS"
	case DoneThisIteration:
		return "DONE_THIS_ITERATION"
	case Done:
		return "DONE"
	default:
		return "NOT_YET_ANALYSED"
	}
}

// Only is the eventual guard of a method that may only be called before or after the mark of a
// field.
type Only struct {
	Field string
	After bool
}

func (o Only) String() string {
	if o.After {
		return `after="` + o.Field + `"`
	}
	return `before="` + o.Field + `"`
}

func equalValues(a, b value.Value) bool { return value.Equal(a, b) }

func showValue(v value.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// NewValueSlot creates a slot holding a value, compared by canonical rendering.
func NewValueSlot(a *property.Arena, name string) *property.Slot[value.Value] {
	return property.NewSlot(a, name, equalValues).WithFormat(showValue)
}

// ParameterAnalysis is the result for one parameter.
type ParameterAnalysis struct {
	Param *program.Parameter
	Props *property.Table
}

// MethodAnalysis is the result for one method. Props holds the method's own properties
// (Modified) and those of its return value (NotNullExpression, Immutable, Constant, Identity,
// Fluent, Independent).
type MethodAnalysis struct {
	Method *program.Method
	Props  *property.Table
	Params []*ParameterAnalysis

	// Precondition is the conjunction of the conditions that must hold on entry; True when none.
	Precondition *property.Slot[value.Value]
	ReturnValue  *property.Slot[value.Value]
	// Mark is the field whose flip this method performs, "" when it is no mark method.
	Mark *property.Slot[string]
	// Only is set when the method is guarded by the state of a flip field without flipping it.
	Only *property.Slot[*Only]

	Status Status
	// Statements and Level are the output of the latest pass over the body.
	Statements []*StatementAnalysis
	Level      *MethodLevelData
}

// NewMethodAnalysis creates the analysis of m with slots in the arena.
func NewMethodAnalysis(a *property.Arena, m *program.Method) *MethodAnalysis {
	name := m.Owner.Name + "." + m.Name
	ma := &MethodAnalysis{
		Method:       m,
		Props:        property.NewTable(a, "M:"+name),
		Precondition: NewValueSlot(a, "M:"+name+":precondition"),
		ReturnValue:  NewValueSlot(a, "M:"+name+":return"),
		Mark:         property.NewSlot(a, "M:"+name+":mark", property.Equal[string]),
		Only: property.NewSlot(a, "M:"+name+":only", func(x, y *Only) bool {
			if x == nil || y == nil {
				return x == y
			}
			return *x == *y
		}).WithFormat(func(o *Only) string {
			if o == nil {
				return "none"
			}
			return o.String()
		}),
	}
	for _, p := range m.Params {
		ma.Params = append(ma.Params, &ParameterAnalysis{
			Param: p,
			Props: property.NewTable(a, "P:"+name+":"+p.Name),
		})
	}
	return ma
}

// Statement returns the record of the statement with the index in the latest pass, or nil.
func (ma *MethodAnalysis) Statement(index string) *StatementAnalysis {
	for _, s := range ma.Statements {
		if s.Index == index {
			return s
		}
	}
	return nil
}

// IsDone reports whether the method needs no further passes.
func (ma *MethodAnalysis) IsDone() bool { return ma.Status == Done }

// FieldAnalysis is the result for one field.
type FieldAnalysis struct {
	Field *program.Field
	// Props holds Final, Constant, ExternalNotNull, ModifiedOutsideMethod, Immutable and Read;
	// Modified is set on fields holding a lambda or a method reference, and is the modification
	// status of the functional interface's method.
	Props *property.Table
	// EffectiveValue is the single value of a final field across all constructors, or NoValue.
	EffectiveValue *property.Slot[value.Value]
	// Linked lists the constructor parameters assigned into the field.
	Linked *property.Slot[[]string]
}

// NewFieldAnalysis creates the analysis of f with slots in the arena.
func NewFieldAnalysis(a *property.Arena, f *program.Field) *FieldAnalysis {
	name := "F:" + f.Owner.Name + "." + f.Name
	return &FieldAnalysis{
		Field:          f,
		Props:          property.NewTable(a, name),
		EffectiveValue: NewValueSlot(a, name+":value"),
		Linked: property.NewSlot(a, name+":linked", slices.Equal[[]string]).WithFormat(func(s []string) string {
			return "[" + strings.Join(s, ",") + "]"
		}),
	}
}

// TypeAnalysis is the result for one type.
type TypeAnalysis struct {
	Type *program.Type
	// Props holds Immutable and Container.
	Props *property.Table
	// ApprovedPreconditions maps a flip field to the precondition of its mark methods.
	ApprovedPreconditions *property.Slot[map[string]value.Value]
	// TypesModified lists the program types whose instances the type's methods modify. Types in a
	// circular group share one merged list.
	TypesModified *property.Slot[[]string]
	// CircularDependencies lists the other members of the type's circular group, if any.
	CircularDependencies []string
}

// NewTypeAnalysis creates the analysis of t with slots in the arena.
func NewTypeAnalysis(a *property.Arena, t *program.Type) *TypeAnalysis {
	name := "T:" + t.Name
	return &TypeAnalysis{
		Type:  t,
		Props: property.NewTable(a, name),
		ApprovedPreconditions: property.NewSlot(a, name+":approved", func(x, y map[string]value.Value) bool {
			return maps.EqualFunc(x, y, equalValues)
		}).WithFormat(FormatApproved),
		TypesModified: property.NewSlot(a, name+":typesModified", slices.Equal[[]string]).WithFormat(func(s []string) string {
			return "[" + strings.Join(s, ",") + "]"
		}),
	}
}

// FormatApproved renders an approved preconditions table as "{frozen=!frozen}".
func FormatApproved(m map[string]value.Value) string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k].String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// InCircularGroup reports whether the named type shares a circular group with this type.
func (ta *TypeAnalysis) InCircularGroup(fqn string) bool {
	return slices.Contains(ta.CircularDependencies, fqn)
}
