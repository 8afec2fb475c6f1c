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
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
)

// Provider looks up analyses. It returns nil for elements it does not know.
type Provider interface {
	Method(m *program.Method) *MethodAnalysis
	Field(f *program.Field) *FieldAnalysis
	Type(t *program.Type) *TypeAnalysis
}

// Registry owns the analyses of one cluster of program types, all with slots in the same arena.
// Library elements are delegated to a read-only provider. A Registry is not safe for concurrent
// use.
type Registry struct {
	Arena *property.Arena

	library Provider
	types   []*program.Type
	methods map[*program.Method]*MethodAnalysis
	fields  map[*program.Field]*FieldAnalysis
	typeMap map[*program.Type]*TypeAnalysis
}

var _ Provider = (*Registry)(nil)

// NewRegistry creates an empty registry; library may be nil.
func NewRegistry(library Provider) *Registry {
	return &Registry{
		Arena:   property.NewArena(),
		library: library,
		methods: make(map[*program.Method]*MethodAnalysis),
		fields:  make(map[*program.Field]*FieldAnalysis),
		typeMap: make(map[*program.Type]*TypeAnalysis),
	}
}

// Add creates the analyses of the type and its members.
func (r *Registry) Add(t *program.Type) {
	if _, ok := r.typeMap[t]; ok {
		return
	}
	r.types = append(r.types, t)
	r.typeMap[t] = NewTypeAnalysis(r.Arena, t)
	for _, f := range t.Fields {
		r.fields[f] = NewFieldAnalysis(r.Arena, f)
	}
	for _, m := range t.Methods {
		r.methods[m] = NewMethodAnalysis(r.Arena, m)
	}
}

// Types returns the program types of the registry in the order they were added.
func (r *Registry) Types() []*program.Type { return r.types }

// Owns reports whether the type is analysed by this registry.
func (r *Registry) Owns(t *program.Type) bool {
	_, ok := r.typeMap[t]
	return ok
}

// Method returns the analysis of m.
func (r *Registry) Method(m *program.Method) *MethodAnalysis {
	if ma, ok := r.methods[m]; ok {
		return ma
	}
	if r.library != nil {
		return r.library.Method(m)
	}
	return nil
}

// Field returns the analysis of f.
func (r *Registry) Field(f *program.Field) *FieldAnalysis {
	if fa, ok := r.fields[f]; ok {
		return fa
	}
	if r.library != nil {
		return r.library.Field(f)
	}
	return nil
}

// Type returns the analysis of t.
func (r *Registry) Type(t *program.Type) *TypeAnalysis {
	if ta, ok := r.typeMap[t]; ok {
		return ta
	}
	if r.library != nil {
		return r.library.Type(t)
	}
	return nil
}

// Methods returns the analyses of the registry's own methods, in declaration order.
func (r *Registry) Methods() []*MethodAnalysis {
	var out []*MethodAnalysis
	for _, t := range r.types {
		for _, m := range t.Methods {
			out = append(out, r.methods[m])
		}
	}
	return out
}

// Fields returns the analyses of the registry's own fields, in declaration order.
func (r *Registry) Fields() []*FieldAnalysis {
	var out []*FieldAnalysis
	for _, t := range r.types {
		for _, f := range t.Fields {
			out = append(out, r.fields[f])
		}
	}
	return out
}

// TypeAnalyses returns the analyses of the registry's own types, in the order they were added.
func (r *Registry) TypeAnalyses() []*TypeAnalysis {
	out := make([]*TypeAnalysis, len(r.types))
	for i, t := range r.types {
		out[i] = r.typeMap[t]
	}
	return out
}

// ImmutableOf returns the immutability of values of the type reference: E2 for primitives and
// strings, Mutable for arrays and unknown types, otherwise the analysed or contracted level of the
// type. It returns Delay while the type is still being analysed.
func ImmutableOf(prog *program.Program, p Provider, ref program.TypeRef) property.DV {
	if ref.IsPrimitive() || ref.IsString() {
		return property.E2
	}
	if ref.IsArray() || ref.IsVoid() {
		return property.Mutable
	}
	t := prog.LookupType(ref.Name)
	if t == nil {
		return property.Mutable
	}
	ta := p.Type(t)
	if ta == nil {
		return property.Mutable
	}
	return ta.Props.Get(property.Immutable)
}
