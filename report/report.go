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

// Package report turns the analyses of a run into the annotations a developer would write in the
// source, and writes compressed snapshots of them for consumers outside this module.
package report

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/klauspost/compress/s2"
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"golang.org/x/exp/maps"
)

// Element is the list of annotations of one program element. Name renders as "T:Freezable",
// "M:Freezable.freeze", "F:Freezable.frozen" or "P:Freezable.add:s".
type Element struct {
	Name        string
	Annotations []string
}

// Annotations renders the computed properties of every element of the program, types first, then
// for each type its fields and its methods with their parameters, in declaration order. Synthetic
// methods and elements without annotations are left out.
func Annotations(prog *program.Program, res analysis.Provider) []Element {
	var out []Element
	add := func(name string, anns []string) {
		if len(anns) > 0 {
			out = append(out, Element{Name: name, Annotations: anns})
		}
	}
	for _, t := range prog.Types {
		ta := res.Type(t)
		if ta == nil {
			continue
		}
		add("T:"+t.Name, typeAnnotations(ta))
		for _, f := range t.Fields {
			if fa := res.Field(f); fa != nil {
				add("F:"+t.Name+"."+f.Name, fieldAnnotations(fa))
			}
		}
		for _, m := range t.Methods {
			ma := res.Method(m)
			if ma == nil || m.Synthetic {
				continue
			}
			add("M:"+t.Name+"."+m.Name, methodAnnotations(ma))
			for _, pa := range ma.Params {
				add("P:"+t.Name+"."+m.Name+":"+pa.Param.Name, parameterAnnotations(pa))
			}
		}
	}
	return out
}

func typeAnnotations(ta *analysis.TypeAnalysis) []string {
	imm := ta.Props.Get(property.Immutable)
	container := ta.Props.Get(property.Container).IsTrue()
	var name string
	switch imm {
	case property.E2, property.EventuallyE2:
		name = "@E2Immutable"
		if container {
			name = "@E2Container"
		}
	case property.E1, property.EventuallyE1:
		name = "@E1Immutable"
		if container {
			name = "@E1Container"
		}
	default:
		if container {
			return []string{"@Container"}
		}
		return nil
	}
	if property.IsEventual(imm) {
		if approved, ok := ta.ApprovedPreconditions.Get(); ok && len(approved) > 0 {
			fields := maps.Keys(approved)
			slices.Sort(fields)
			name += `(after="` + strings.Join(fields, ",") + `")`
		}
	}
	return []string{name}
}

func fieldAnnotations(fa *analysis.FieldAnalysis) []string {
	var out []string
	props := fa.Props
	switch props.Get(property.Final) {
	case property.True:
		out = append(out, "@Final")
	case property.False:
		out = append(out, "@Variable")
	}
	if props.Get(property.Constant).IsTrue() {
		if ev, ok := fa.EffectiveValue.Get(); ok {
			out = append(out, `@Constant("`+ev.String()+`")`)
		}
	}
	primitive := fa.Field.Type.IsPrimitive()
	if !primitive && props.Get(property.ExternalNotNull) >= property.EffectivelyNotNull {
		out = append(out, "@NotNull")
	}
	if !primitive {
		out = append(out, modification(props.Get(property.ModifiedOutsideMethod))...)
	}
	if linked, ok := fa.Linked.Get(); ok && len(linked) > 0 {
		out = append(out, `@Linked(to={"`+strings.Join(linked, `","`)+`"})`)
	}
	return out
}

func methodAnnotations(ma *analysis.MethodAnalysis) []string {
	var out []string
	m := ma.Method
	props := ma.Props
	if !m.Constructor {
		out = append(out, modification(props.Get(property.Modified))...)
	}
	if !m.IsVoid() {
		if !m.Return.IsPrimitive() && props.Get(property.NotNullExpression) >= property.EffectivelyNotNull {
			out = append(out, "@NotNull")
		}
		if props.Get(property.Constant).IsTrue() {
			if rv, ok := ma.ReturnValue.Get(); ok {
				out = append(out, `@Constant("`+rv.String()+`")`)
			}
		}
		if props.Get(property.Identity).IsTrue() {
			out = append(out, "@Identity")
		}
		if props.Get(property.Fluent).IsTrue() {
			out = append(out, "@Fluent")
		}
		if !m.Return.IsPrimitive() && !m.Return.IsString() {
			switch props.Get(property.Independent) {
			case property.True:
				out = append(out, "@Independent")
			case property.False:
				out = append(out, "@Dependent")
			}
		}
	}
	if mark, ok := ma.Mark.Get(); ok && mark != "" {
		out = append(out, `@Mark("`+mark+`")`)
	}
	if only, ok := ma.Only.Get(); ok && only != nil {
		out = append(out, "@Only("+only.String()+")")
	}
	return out
}

func parameterAnnotations(pa *analysis.ParameterAnalysis) []string {
	if pa.Param.Type.IsPrimitive() {
		return nil
	}
	var out []string
	if pa.Props.Get(property.NotNullParameter) >= property.EffectivelyNotNull {
		out = append(out, "@NotNull")
	}
	return append(out, modification(pa.Props.Get(property.ModifiedVariable))...)
}

func modification(v property.DV) []string {
	switch v {
	case property.True:
		return []string{"@Modified"}
	case property.False:
		return []string{"@NotModified"}
	}
	return nil
}

// Finding is a diagnostic reduced to plain strings.
type Finding struct {
	Severity string
	Kind     string
	Type     string
	Location string
	Message  string
	Position string
}

// Snapshot is the hand-off format of a run: the annotations and the findings.
type Snapshot struct {
	Elements []Element
	Findings []Finding
}

// NewSnapshot collects the annotations of the program and the diagnostics of a run.
func NewSnapshot(prog *program.Program, res analysis.Provider, diags []diagnostic.Diagnostic) *Snapshot {
	s := &Snapshot{Elements: Annotations(prog, res)}
	for _, d := range diags {
		s.Findings = append(s.Findings, Finding{
			Severity: d.Severity().String(),
			Kind:     d.Kind.String(),
			Type:     d.Location.Type,
			Location: d.Location.String(),
			Message:  d.Message(),
			Position: d.Position(),
		})
	}
	return s
}

// Encode writes the snapshot gob-encoded and s2-compressed.
func Encode(w io.Writer, s *Snapshot) (err error) {
	writer := s2.NewWriter(w)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if err := gob.NewEncoder(writer).Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(s2.NewReader(r)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Marshal returns the encoded snapshot.
func Marshal(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
