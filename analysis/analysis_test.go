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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/util/orderedmap"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
)

func freezable() *program.Type {
	t := &program.Type{Name: "Freezable", Package: "org.example"}
	t.Fields = []*program.Field{{Owner: t, Name: "frozen", Type: program.Boolean, Access: program.Private}}
	freeze := &program.Method{Owner: t, Name: "freeze", Return: program.Void}
	add := &program.Method{Owner: t, Name: "add", Return: program.Void}
	add.Params = []*program.Parameter{{Owner: add, Name: "s", Type: program.String}}
	t.Methods = []*program.Method{freeze, add}
	return t
}

type stubLibrary struct {
	ma *MethodAnalysis
}

func (s stubLibrary) Method(*program.Method) *MethodAnalysis { return s.ma }
func (stubLibrary) Field(*program.Field) *FieldAnalysis       { return nil }
func (stubLibrary) Type(*program.Type) *TypeAnalysis          { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	typ := freezable()
	lib := &program.Method{Owner: &program.Type{Name: "List", Package: "java.util", Library: true}, Name: "add"}
	libAnalysis := NewMethodAnalysis(property.NewArena(), lib)
	r := NewRegistry(stubLibrary{ma: libAnalysis})
	r.Add(typ)
	r.Add(typ)

	require.Len(t, r.Methods(), 2)
	require.Len(t, r.Fields(), 1)
	require.Len(t, r.TypeAnalyses(), 1)
	require.True(t, r.Owns(typ))
	require.Len(t, r.Method(typ.Methods[1]).Params, 1)
	require.Same(t, libAnalysis, r.Method(lib), "unknown methods go to the library")

	ma := r.Method(typ.Methods[0])
	ma.Props.Set(property.Modified, property.True)
	ma.Mark.Set("frozen")
	require.Equal(t, 2, r.Arena.Resolved())
	require.Panics(t, func() { ma.Mark.Set("other") })
}

func TestSlotsOfValues(t *testing.T) {
	t.Parallel()

	typ := freezable()
	a := property.NewArena()
	ta := NewTypeAnalysis(a, typ)
	frozen := value.NewVariable(variable.NewField(typ.Fields[0], nil))
	ta.ApprovedPreconditions.Set(map[string]value.Value{"frozen": value.Not(frozen)})
	// The same table again is not a regression.
	ta.ApprovedPreconditions.Set(map[string]value.Value{"frozen": value.Not(frozen)})
	require.Equal(t, "{frozen=!frozen}", ta.ApprovedPreconditions.String())

	ma := NewMethodAnalysis(a, typ.Methods[1])
	ma.Only.Set(&Only{Field: "frozen"})
	ma.Only.Set(&Only{Field: "frozen"})
	require.Equal(t, `before="frozen"`, ma.Only.String())

	err := func() (err any) {
		defer func() { err = recover() }()
		ma.Precondition.Set(value.True)
		ma.Precondition.Set(value.Not(frozen))
		return nil
	}()
	var regression *property.RegressionError
	require.ErrorAs(t, err.(error), &regression)
}

func TestVariableInfo(t *testing.T) {
	t.Parallel()

	typ := freezable()
	m := typ.Methods[1]
	arr := variable.NewLocal(&program.LocalVariable{Owner: m, Name: "array", Type: program.TypeRef{Name: "int", Dims: 1}})
	elem := variable.NewDependent(arr, "0", "")
	vi := &VariableInfo{Variable: elem, Value: value.NewInt(12), AssignmentID: "1-E"}
	require.True(t, vi.AssignedAfterRead())
	vi.ReadID = "3"
	require.False(t, vi.AssignedAfterRead())

	c := vi.Copy()
	c.Props = map[property.Property]property.DV{property.ContextNotNull: property.EffectivelyNotNull}
	require.Equal(t, property.Nullable, vi.Prop(property.ContextNotNull))
	require.Equal(t, property.EffectivelyNotNull, c.Prop(property.ContextNotNull))

	vars := orderedmap.New[string, *VariableInfo]()
	vars.Store(elem.Key(), vi)
	s := &StatementAnalysis{Index: "3", Variables: vars}
	require.Same(t, vi, s.Variable("array[0]"))
	require.Nil(t, s.Variable("array[1]"))
}

func TestMethodLevelData(t *testing.T) {
	t.Parallel()

	d := NewMethodLevelData(2)
	require.Len(t, d.Params, 2)
	require.Equal(t, property.Nullable, d.Params[0].ContextNotNull)
	require.False(t, d.HasDelays())
	d.CycleCalls = append(d.CycleCalls, &program.Method{Name: "other"})
	require.True(t, d.HasDelays())
}
