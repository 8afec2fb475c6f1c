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

// Package diagnostic hosts the diagnostic engine, which collects the findings of the analysers,
// deduplicates them by kind and location, and lists them in a stable order.
package diagnostic

import (
	"cmp"
	"slices"
	"sync"

	"go.uber.org/immutaway/util"
)

type key struct {
	kind     Kind
	location Location
}

// Engine collects diagnostics. A diagnostic is kept once per (kind, location), whichever iteration
// raises it first. It is safe for concurrent use.
type Engine struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
	seen        map[key]bool
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{seen: make(map[key]bool)}
}

// Add records d unless a diagnostic of the same kind at the same location exists. It reports
// whether d was new.
func (e *Engine) Add(d Diagnostic) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := key{kind: d.Kind, location: d.Location}
	if e.seen[k] {
		return false
	}
	e.seen[k] = true
	e.diagnostics = append(e.diagnostics, d)
	return true
}

// Has reports whether a diagnostic of the kind exists at the location.
func (e *Engine) Has(kind Kind, loc Location) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seen[key{kind: kind, location: loc}]
}

// Len returns the number of distinct diagnostics.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.diagnostics)
}

// Merge adds the diagnostics of other, keeping deduplication.
func (e *Engine) Merge(other *Engine) {
	for _, d := range other.Diagnostics() {
		e.Add(d)
	}
}

// Diagnostics returns the diagnostics sorted by type, element kind, element name, statement
// index (hierarchically) and kind.
func (e *Engine) Diagnostics() []Diagnostic {
	e.mu.Lock()
	out := slices.Clone(e.diagnostics)
	e.mu.Unlock()
	slices.SortFunc(out, Compare)
	return out
}

// Compare orders diagnostics for reporting.
func Compare(a, b Diagnostic) int {
	if n := cmp.Compare(a.Location.Type, b.Location.Type); n != 0 {
		return n
	}
	if n := cmp.Compare(elementOrder(a.Location.Element), elementOrder(b.Location.Element)); n != 0 {
		return n
	}
	if n := cmp.Compare(a.Location.Name, b.Location.Name); n != 0 {
		return n
	}
	if n := util.CompareIndex(a.Location.Index, b.Location.Index); n != 0 {
		return n
	}
	return cmp.Compare(a.Kind, b.Kind)
}

func elementOrder(k ElementKind) int {
	switch k {
	case TypeElement:
		return 0
	case FieldElement:
		return 1
	case MethodElement:
		return 2
	default:
		return 3
	}
}

// Count returns the number of diagnostics of the severity.
func Count(ds []Diagnostic, s Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity() == s {
			n++
		}
	}
	return n
}
