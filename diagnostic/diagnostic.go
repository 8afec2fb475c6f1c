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
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/program"
)

// ElementKind is the kind of element a diagnostic is attached to.
type ElementKind byte

// The element kinds, rendered by their letter.
const (
	TypeElement      ElementKind = 'T'
	MethodElement    ElementKind = 'M'
	FieldElement     ElementKind = 'F'
	ParameterElement ElementKind = 'P'
)

// Location identifies where a diagnostic applies: an element of a type and, for methods, a
// statement index.
type Location struct {
	// Type is the fully qualified name of the type the element belongs to.
	Type    string
	Element ElementKind
	Name    string
	// Index is the statement index inside a method, empty for the method itself.
	Index string
}

// AtType returns the location of a type.
func AtType(t *program.Type) Location {
	return Location{Type: t.FQN(), Element: TypeElement, Name: t.Name}
}

// AtMethod returns the location of a statement of a method; index may be empty.
func AtMethod(m *program.Method, index string) Location {
	return Location{Type: m.Owner.FQN(), Element: MethodElement, Name: m.Name, Index: index}
}

// AtField returns the location of a field.
func AtField(f *program.Field) Location {
	return Location{Type: f.Owner.FQN(), Element: FieldElement, Name: f.Name}
}

// AtParameter returns the location of a parameter.
func AtParameter(p *program.Parameter) Location {
	return Location{Type: p.Owner.Owner.FQN(), Element: ParameterElement, Name: p.Name}
}

// String renders the location as "M:method1:3", "F:frozen" or "T:Freezable".
func (l Location) String() string {
	s := string(l.Element) + ":" + l.Name
	if l.Index != "" {
		s += ":" + l.Index
	}
	return s
}

// Diagnostic is one finding about the analysed program.
type Diagnostic struct {
	Kind     Kind
	Location Location
	// Detail names the subject of the finding, e.g. the unused variable; it may be empty.
	Detail string
	Pos    program.Pos
}

// Severity returns the severity of the diagnostic's kind.
func (d Diagnostic) Severity() Severity { return d.Kind.Severity() }

// Message returns the message text, including the detail.
func (d Diagnostic) Message() string {
	if d.Detail == "" {
		return d.Kind.Message()
	}
	return d.Kind.Message() + ": `" + d.Detail + "`"
}

// String renders "ERROR in M:method1:3: <message>".
func (d Diagnostic) String() string {
	return d.Severity().String() + " in " + d.Location.String() + ": " + d.Message()
}

// Position renders the source position, keeping only the last directories of the file name.
func (d Diagnostic) Position() string {
	if d.Pos.Line == 0 {
		return ""
	}
	return TruncatePosition(d.Pos)
}

// TruncatePosition renders a position with the file name reduced to its last
// config.DirLevelsToPrintForPositions directories.
func TruncatePosition(p program.Pos) string {
	file := filepath.ToSlash(p.File)
	parts := strings.Split(file, "/")
	if keep := config.DirLevelsToPrintForPositions + 1; len(parts) > keep {
		file = strings.Join(parts[len(parts)-keep:], "/")
	}
	s := strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Col)
	if file == "" {
		return s
	}
	return file + ":" + s
}
