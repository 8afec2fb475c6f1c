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

// Package annotatedapi provides the contracts of library types: which methods modify their
// object, which parameters must not be null, which types are immutable. Contracts are read from
// YAML files shaped like program files without bodies, and materialised into analysis objects
// that all clusters share read-only.
package annotatedapi

import (
	_ "embed"
	"fmt"
	"sync"

	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/value"
)

//go:embed java.yaml
var _defaultContracts []byte

// Parse reads a contract file and marks its types as library types.
func Parse(data []byte, file string) ([]*program.Type, error) {
	types, err := program.DecodeTypes(data, file)
	if err != nil {
		return nil, fmt.Errorf("parse contracts: %w", err)
	}
	for _, t := range types {
		t.Library = true
		for _, m := range t.Methods {
			for i, p := range m.Params {
				p.Owner = m
				p.Index = i
			}
		}
	}
	return types, nil
}

// Default returns the embedded contracts.
func Default() ([]*program.Type, error) {
	return Parse(_defaultContracts, "java.yaml")
}

// Store is the shared library analysis source. A library element is materialised into its
// analysis on first access; afterwards the analysis is immutable. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	arena   *property.Arena
	types   []*program.Type
	byName  map[string]*program.Type
	methods map[*program.Method]*analysis.MethodAnalysis
	fields  map[*program.Field]*analysis.FieldAnalysis
	typeMap map[*program.Type]*analysis.TypeAnalysis
}

var _ analysis.Provider = (*Store)(nil)

// NewStore creates a store over the library types. Later types with the same fully qualified
// name replace earlier ones, so that extra contract files can refine the default set.
func NewStore(types []*program.Type) *Store {
	s := &Store{
		arena:   property.NewArena(),
		byName:  make(map[string]*program.Type),
		methods: make(map[*program.Method]*analysis.MethodAnalysis),
		fields:  make(map[*program.Field]*analysis.FieldAnalysis),
		typeMap: make(map[*program.Type]*analysis.TypeAnalysis),
	}
	index := make(map[string]int)
	for _, t := range types {
		t.Library = true
		if i, ok := index[t.FQN()]; ok {
			s.types[i] = t
		} else {
			index[t.FQN()] = len(s.types)
			s.types = append(s.types, t)
		}
		s.byName[t.FQN()] = t
		s.byName[t.Name] = t
	}
	return s
}

// Types returns the library types, to be passed to program.Parse.
func (s *Store) Types() []*program.Type { return s.types }

// Method returns the analysis of a library method, or nil for program methods.
func (s *Store) Method(m *program.Method) *analysis.MethodAnalysis {
	if m == nil || !m.Owner.Library {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ma, ok := s.methods[m]; ok {
		return ma
	}
	ma := s.materialiseMethod(m)
	s.methods[m] = ma
	return ma
}

// Field returns the analysis of a library field, or nil for program fields.
func (s *Store) Field(f *program.Field) *analysis.FieldAnalysis {
	if f == nil || !f.Owner.Library {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fa, ok := s.fields[f]; ok {
		return fa
	}
	fa := analysis.NewFieldAnalysis(s.arena, f)
	fa.Props.Set(property.Final, property.Bool(f.Final))
	fa.Props.Set(property.ExternalNotNull, notNull(f.Annotations, f.Type))
	fa.Props.Set(property.Immutable, s.immutableOf(f.Type))
	fa.Props.Set(property.ModifiedOutsideMethod, property.False)
	fa.EffectiveValue.Set(value.Unknown)
	fa.Linked.Set(nil)
	s.fields[f] = fa
	return fa
}

// Type returns the analysis of a library type, or nil for program types.
func (s *Store) Type(t *program.Type) *analysis.TypeAnalysis {
	if t == nil || !t.Library {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typeLocked(t)
}

func (s *Store) typeLocked(t *program.Type) *analysis.TypeAnalysis {
	if ta, ok := s.typeMap[t]; ok {
		return ta
	}
	ta := analysis.NewTypeAnalysis(s.arena, t)
	ta.Props.Set(property.Immutable, ContractImmutable(t.Annotations))
	ta.Props.Set(property.Container, property.Bool(ContractContainer(t.Annotations)))
	ta.ApprovedPreconditions.Set(map[string]value.Value{})
	ta.TypesModified.Set(nil)
	s.typeMap[t] = ta
	return ta
}

// Resolved returns the number of materialised slots, for logging.
func (s *Store) Resolved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.Resolved()
}

// ContractImmutable is the immutability a type's annotations declare.
func ContractImmutable(a program.Annotations) property.DV {
	switch {
	case a.Has("E2Immutable") || a.Has("E2Container"):
		return property.E2
	case a.Has("E1Immutable") || a.Has("E1Container"):
		return property.E1
	default:
		return property.Mutable
	}
}

// ContractContainer reports whether a type's annotations declare it a container.
func ContractContainer(a program.Annotations) bool {
	return a.Has("Container") || a.Has("E2Container") || a.Has("E1Container")
}

// immutableOf returns the immutability of values of the type reference. It must be called with
// the lock held.
func (s *Store) immutableOf(ref program.TypeRef) property.DV {
	if ref.IsPrimitive() || ref.IsString() {
		return property.E2
	}
	if ref.IsArray() || ref.IsVoid() {
		return property.Mutable
	}
	if t, ok := s.byName[ref.Name]; ok {
		return s.typeLocked(t).Props.Get(property.Immutable)
	}
	return property.Mutable
}

func notNull(a program.Annotations, ref program.TypeRef) property.DV {
	if ref.IsPrimitive() || a.Has("NotNull") {
		return property.EffectivelyNotNull
	}
	return property.Nullable
}

// materialiseMethod turns the contract annotations of m into a fully set analysis. Without an
// annotation, a method of a mutable type modifies its object unless it is static.
func (s *Store) materialiseMethod(m *program.Method) *analysis.MethodAnalysis {
	ma := analysis.NewMethodAnalysis(s.arena, m)
	a := m.Annotations
	ownerImmutable := s.typeLocked(m.Owner).Props.Get(property.Immutable)

	modified := !m.Static && !m.Constructor && ownerImmutable == property.Mutable
	switch {
	case a.Has("Modified"):
		modified = true
	case a.Has("NotModified"):
		modified = false
	}
	ma.Props.Set(property.Modified, property.Bool(modified))

	if !m.IsVoid() {
		ma.Props.Set(property.NotNullExpression, notNull(a, m.Return))
		ma.Props.Set(property.Immutable, s.immutableOf(m.Return))
		ma.Props.Set(property.Fluent, property.Bool(a.Has("Fluent")))
		ma.Props.Set(property.Identity, property.Bool(a.Has("Identity")))
		independent := a.Has("Independent") || property.IsE2(ma.Props.Get(property.Immutable)) ||
			(property.IsE2(ownerImmutable) && !a.Has("Dependent"))
		ma.Props.Set(property.Independent, property.Bool(independent))
		ma.Props.Set(property.Constant, property.False)
		ma.ReturnValue.Set(value.Unknown)
	}
	ma.Precondition.Set(value.True)
	ma.Mark.Set("")
	ma.Only.Set(nil)
	for _, pa := range ma.Params {
		pa.Props.Set(property.NotNullParameter, notNull(pa.Param.Annotations, pa.Param.Type))
		pa.Props.Set(property.ModifiedVariable, property.Bool(pa.Param.Annotations.Has("Modified")))
	}
	ma.Status = analysis.Done
	return ma
}
