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

package diagnostic

import (
	"strings"

	"go.uber.org/immutaway/program"
)

// SuppressAnnotation silences diagnostics inside the annotated element. Its value is a
// comma-separated list of kind names, "all" or "immutaway"; without a value it silences
// everything. Text after "//" is an explanation and is ignored:
//
//	annotations: ['SuppressWarnings="UNUSED_PARAMETER // kept for the interface"']
const SuppressAnnotation = "SuppressWarnings"

// scope is an element annotated with SuppressAnnotation.
type scope struct {
	loc Location
	pos program.Pos
	// whole includes the members of a type, or the statements and parameters of a method.
	whole bool
	value string
}

// Suppressions are the suppression scopes declared in a program.
type Suppressions struct {
	scopes []scope
}

// NewSuppressions collects the suppression scopes of the program's own types.
func NewSuppressions(prog *program.Program) *Suppressions {
	s := &Suppressions{}
	add := func(a program.Annotations, loc Location, pos program.Pos, whole bool) {
		if v, ok := a[SuppressAnnotation]; ok {
			s.scopes = append(s.scopes, scope{loc: loc, pos: pos, whole: whole, value: v})
		}
	}
	for _, t := range prog.Types {
		add(t.Annotations, AtType(t), t.Pos, true)
		for _, f := range t.Fields {
			add(f.Annotations, AtField(f), f.Pos, false)
		}
		for _, m := range t.Methods {
			add(m.Annotations, AtMethod(m, ""), m.Pos, true)
			for _, p := range m.Params {
				add(p.Annotations, AtParameter(p), p.Pos, false)
			}
		}
	}
	return s
}

// Suppressed reports whether a scope silences d.
func (s *Suppressions) Suppressed(d Diagnostic) bool {
	for _, sc := range s.scopes {
		if sc.covers(d) && suppresses(sc.value, d.Kind) {
			return true
		}
	}
	return false
}

// Filter returns the diagnostics no scope silences.
func (s *Suppressions) Filter(ds []Diagnostic) []Diagnostic {
	if len(s.scopes) == 0 {
		return ds
	}
	out := make([]Diagnostic, 0, len(ds))
	for _, d := range ds {
		if !s.Suppressed(d) {
			out = append(out, d)
		}
	}
	return out
}

func (sc scope) covers(d Diagnostic) bool {
	loc := d.Location
	if loc.Type != sc.loc.Type {
		return false
	}
	switch sc.loc.Element {
	case TypeElement:
		return sc.whole || loc.Element == TypeElement
	case MethodElement:
		if loc.Element == MethodElement {
			return loc.Name == sc.loc.Name && (loc.Index == "" || sc.whole)
		}
		// Parameters share the position of their method.
		return loc.Element == ParameterElement && d.Pos == sc.pos
	case ParameterElement:
		return loc.Element == ParameterElement && loc.Name == sc.loc.Name && d.Pos == sc.pos
	default:
		return loc == sc.loc
	}
}

// suppresses checks the annotation value against the kind.
func suppresses(value string, k Kind) bool {
	value, _, _ = strings.Cut(value, "//")
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, "all") || strings.EqualFold(name, "immutaway") || name == k.String() {
			return true
		}
	}
	return false
}
