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

package program

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlFile is the document. Top-level sections other than types belong to other readers, e.g.
// the expectations of a golden file, and are ignored here.
type yamlFile struct {
	Types []*yamlType `yaml:"types"`
}

type yamlType struct {
	Name        string        `yaml:"name"`
	Package     string        `yaml:"package"`
	Interface   bool          `yaml:"interface"`
	Extends     []string      `yaml:"extends"`
	Annotations []string      `yaml:"annotations"`
	Fields      []*yamlField  `yaml:"fields"`
	Methods     []*yamlMethod `yaml:"methods"`

	line, col int
}

type yamlField struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Access      string   `yaml:"access"`
	Final       bool     `yaml:"final"`
	Static      bool     `yaml:"static"`
	Init        string   `yaml:"init"`
	Annotations []string `yaml:"annotations"`

	line, col int
}

type yamlMethod struct {
	Name        string       `yaml:"name"`
	Access      string       `yaml:"access"`
	Static      bool         `yaml:"static"`
	Abstract    bool         `yaml:"abstract"`
	Constructor bool         `yaml:"constructor"`
	Override    bool         `yaml:"override"`
	Returns     string       `yaml:"returns"`
	Params      []*yamlParam `yaml:"params"`
	Annotations []string     `yaml:"annotations"`
	Body        yaml.Node    `yaml:"body"`

	line, col int
}

type yamlParam struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Annotations []string `yaml:"annotations"`
}

// decodeKnown decodes a mapping into out, a pointer to a struct, and rejects any key that no field
// of the struct is tagged with.
func decodeKnown(n *yaml.Node, out any) error {
	if n.Kind == yaml.MappingNode {
		known := yamlKeys(reflect.TypeOf(out).Elem())
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i]; !slices.Contains(known, k.Value) {
				return fmt.Errorf("line %d: unknown key %q, expected one of %s", k.Line, k.Value, strings.Join(known, ", "))
			}
		}
	}
	return n.Decode(out)
}

func yamlKeys(t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			keys = append(keys, name)
		}
	}
	return keys
}

func (p *yamlParam) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlParam
	return decodeKnown(n, (*plain)(p))
}

func (t *yamlType) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlType
	if err := decodeKnown(n, (*plain)(t)); err != nil {
		return err
	}
	t.line, t.col = n.Line, n.Column
	return nil
}

func (f *yamlField) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlField
	if err := decodeKnown(n, (*plain)(f)); err != nil {
		return err
	}
	f.line, f.col = n.Line, n.Column
	return nil
}

func (m *yamlMethod) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlMethod
	if err := decodeKnown(n, (*plain)(m)); err != nil {
		return err
	}
	m.line, m.col = n.Line, n.Column
	return nil
}

// Load reads a YAML program file and resolves it against the library types.
func Load(path string, library []*Type) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	return Parse(data, path, library)
}

// Parse decodes a YAML program and resolves it against the library types.
func Parse(data []byte, file string, library []*Type) (*Program, error) {
	types, err := DecodeTypes(data, file)
	if err != nil {
		return nil, err
	}
	p := NewProgram(types, library)
	if err := Resolve(p); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", file, err)
	}
	return p, nil
}

// DecodeTypes decodes the "types" section of a YAML document without resolving names. It is
// shared by program files and library contract files.
func DecodeTypes(data []byte, file string) ([]*Type, error) {
	var doc yamlFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	l := &loader{file: file}
	types := make([]*Type, 0, len(doc.Types))
	for _, yt := range doc.Types {
		t, err := l.typ(yt)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

type loader struct {
	file string
}

func (l *loader) pos(line, col int) Pos { return Pos{File: l.file, Line: line, Col: col} }

func (l *loader) nodePos(n *yaml.Node) Pos { return l.pos(n.Line, n.Column) }

func (l *loader) typ(yt *yamlType) (*Type, error) {
	if yt.Name == "" {
		return nil, fmt.Errorf("%s: type without a name", l.pos(yt.line, yt.col))
	}
	t := &Type{
		Name:        yt.Name,
		Package:     yt.Package,
		Interface:   yt.Interface,
		Supertypes:  yt.Extends,
		Annotations: ParseAnnotations(yt.Annotations),
		Pos:         l.pos(yt.line, yt.col),
	}
	for _, yf := range yt.Fields {
		f := &Field{
			Owner:       t,
			Name:        yf.Name,
			Type:        ParseTypeRef(yf.Type),
			Access:      parseAccess(yf.Access),
			Final:       yf.Final,
			Static:      yf.Static,
			Annotations: ParseAnnotations(yf.Annotations),
			Pos:         l.pos(yf.line, yf.col),
		}
		if yf.Init != "" {
			init, err := ParseExpr(yf.Init, f.Pos)
			if err != nil {
				return nil, err
			}
			f.Init = init
		}
		t.Fields = append(t.Fields, f)
	}
	for _, ym := range yt.Methods {
		m, err := l.method(t, ym)
		if err != nil {
			return nil, err
		}
		t.Methods = append(t.Methods, m)
	}
	return t, nil
}

func (l *loader) method(t *Type, ym *yamlMethod) (*Method, error) {
	m := &Method{
		Owner:       t,
		Name:        ym.Name,
		Return:      ParseTypeRef(ym.Returns),
		Access:      parseAccess(ym.Access),
		Static:      ym.Static,
		Abstract:    ym.Abstract || (t.Interface && ym.Body.Kind == 0 && !ym.Static),
		Constructor: ym.Constructor,
		Overrides:   ym.Override,
		Annotations: ParseAnnotations(ym.Annotations),
		Pos:         l.pos(ym.line, ym.col),
	}
	if m.Constructor && m.Name == "" {
		m.Name = "<init>"
	}
	if m.Return.Name == "" {
		m.Return = Void
	}
	for i, yp := range ym.Params {
		m.Params = append(m.Params, &Parameter{
			Owner:       m,
			Index:       i,
			Name:        yp.Name,
			Type:        ParseTypeRef(yp.Type),
			Annotations: ParseAnnotations(yp.Annotations),
			Pos:         m.Pos,
		})
	}
	if ym.Body.Kind != 0 {
		body, err := l.block(&ym.Body)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", t.Name, m.Name, err)
		}
		m.Body = body
	}
	return m, nil
}

// ParseAnnotations reads annotations written as "NotNull" or "Mark=frozen".
func ParseAnnotations(list []string) Annotations {
	if len(list) == 0 {
		return nil
	}
	out := make(Annotations, len(list))
	for _, a := range list {
		a = strings.TrimPrefix(strings.TrimSpace(a), "@")
		name, value, _ := strings.Cut(a, "=")
		out[strings.TrimSpace(name)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return out
}

func parseAccess(s string) Access {
	switch s {
	case "private":
		return Private
	case "protected":
		return Protected
	case "public":
		return Public
	default:
		return PackagePrivate
	}
}

func (l *loader) block(n *yaml.Node) (*Block, error) {
	b := &Block{node: node{P: l.nodePos(n)}}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return b, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s: a block must be a list of statements", l.nodePos(n))
	}
	for _, item := range n.Content {
		s, err := l.stmt(item)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

func (l *loader) optBlock(n *yaml.Node) (*Block, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	return l.block(n)
}

func (l *loader) expr(n *yaml.Node) (Expr, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%s: an expression must be a string", l.nodePos(n))
	}
	col := n.Column
	if n.Style == yaml.DoubleQuotedStyle || n.Style == yaml.SingleQuotedStyle {
		col++
	}
	return ParseExpr(n.Value, l.pos(n.Line, col))
}

func (l *loader) exprString(s string, at *yaml.Node) (Expr, error) {
	return ParseExpr(s, l.nodePos(at))
}

type yamlLocal struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Init string `yaml:"init"`
}

type yamlIf struct {
	Cond string    `yaml:"cond"`
	Then yaml.Node `yaml:"then"`
	Else yaml.Node `yaml:"else"`
}

type yamlWhile struct {
	Cond string    `yaml:"cond"`
	Body yaml.Node `yaml:"body"`
}

type yamlFor struct {
	Init   yaml.Node `yaml:"init"`
	Cond   string    `yaml:"cond"`
	Update []string  `yaml:"update"`
	Body   yaml.Node `yaml:"body"`
}

type yamlForEach struct {
	Var  string    `yaml:"var"`
	Type string    `yaml:"type"`
	In   string    `yaml:"in"`
	Body yaml.Node `yaml:"body"`
}

type yamlSwitch struct {
	On    string      `yaml:"on"`
	Cases []*yamlCase `yaml:"cases"`
}

type yamlCase struct {
	Labels  []string  `yaml:"labels"`
	Default bool      `yaml:"default"`
	Body    yaml.Node `yaml:"body"`
}

func (c *yamlCase) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlCase
	return decodeKnown(n, (*plain)(c))
}

func (l *loader) stmt(n *yaml.Node) (Stmt, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("%s: a statement must be a mapping with a single key", l.nodePos(n))
	}
	key, val := n.Content[0], n.Content[1]
	at := node{P: l.nodePos(key)}
	switch key.Value {
	case "expr":
		x, err := l.expr(val)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{node: at, X: x}, nil
	case "local":
		var yl yamlLocal
		if err := decodeKnown(val, &yl); err != nil {
			return nil, err
		}
		s := &LocalVar{node: at, Var: &LocalVariable{Name: yl.Name, Type: ParseTypeRef(yl.Type), Pos: at.P}}
		if yl.Init != "" {
			init, err := l.exprString(yl.Init, val)
			if err != nil {
				return nil, err
			}
			s.Init = init
		}
		return s, nil
	case "if":
		var yi yamlIf
		if err := decodeKnown(val, &yi); err != nil {
			return nil, err
		}
		cond, err := l.exprString(yi.Cond, val)
		if err != nil {
			return nil, err
		}
		then, err := l.block(&yi.Then)
		if err != nil {
			return nil, err
		}
		els, err := l.optBlock(&yi.Else)
		if err != nil {
			return nil, err
		}
		return &If{node: at, Cond: cond, Then: then, Else: els}, nil
	case "while":
		var yw yamlWhile
		if err := decodeKnown(val, &yw); err != nil {
			return nil, err
		}
		cond, err := l.exprString(yw.Cond, val)
		if err != nil {
			return nil, err
		}
		body, err := l.block(&yw.Body)
		if err != nil {
			return nil, err
		}
		return &While{node: at, Cond: cond, Body: body}, nil
	case "for":
		return l.forStmt(at, val)
	case "foreach":
		var yf yamlForEach
		if err := decodeKnown(val, &yf); err != nil {
			return nil, err
		}
		iterable, err := l.exprString(yf.In, val)
		if err != nil {
			return nil, err
		}
		body, err := l.block(&yf.Body)
		if err != nil {
			return nil, err
		}
		v := &LocalVariable{Name: yf.Var, Type: ParseTypeRef(yf.Type), Pos: at.P}
		return &ForEach{node: at, Var: v, Iterable: iterable, Body: body}, nil
	case "switch":
		return l.switchStmt(at, val)
	case "return":
		if val.Kind == yaml.ScalarNode && (val.Tag == "!!null" || val.Value == "") {
			return &Return{node: at}, nil
		}
		x, err := l.expr(val)
		if err != nil {
			return nil, err
		}
		return &Return{node: at, X: x}, nil
	case "throw":
		x, err := l.expr(val)
		if err != nil {
			return nil, err
		}
		return &Throw{node: at, X: x}, nil
	case "assert":
		x, err := l.expr(val)
		if err != nil {
			return nil, err
		}
		return &Assert{node: at, Cond: x}, nil
	case "break":
		return &Break{node: at}, nil
	case "continue":
		return &Continue{node: at}, nil
	case "block":
		return l.block(val)
	}
	return nil, fmt.Errorf("%s: unknown statement %q", at.P, key.Value)
}

func (l *loader) forStmt(at node, val *yaml.Node) (Stmt, error) {
	var yf yamlFor
	if err := decodeKnown(val, &yf); err != nil {
		return nil, err
	}
	s := &For{node: at}
	if yf.Init.Kind != 0 {
		init, err := l.block(&yf.Init)
		if err != nil {
			return nil, err
		}
		s.Init = init.Stmts
	}
	if yf.Cond != "" {
		cond, err := l.exprString(yf.Cond, val)
		if err != nil {
			return nil, err
		}
		s.Cond = cond
	}
	for _, u := range yf.Update {
		x, err := l.exprString(u, val)
		if err != nil {
			return nil, err
		}
		s.Update = append(s.Update, x)
	}
	body, err := l.block(&yf.Body)
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

func (l *loader) switchStmt(at node, val *yaml.Node) (Stmt, error) {
	var ys yamlSwitch
	if err := decodeKnown(val, &ys); err != nil {
		return nil, err
	}
	sel, err := l.exprString(ys.On, val)
	if err != nil {
		return nil, err
	}
	s := &Switch{node: at, Selector: sel}
	for _, yc := range ys.Cases {
		c := &Case{node: node{P: l.nodePos(&yc.Body)}, Default: yc.Default}
		for _, label := range yc.Labels {
			x, err := l.exprString(label, &yc.Body)
			if err != nil {
				return nil, err
			}
			c.Labels = append(c.Labels, x)
		}
		body, err := l.block(&yc.Body)
		if err != nil {
			return nil, err
		}
		c.Body = body
		s.Cases = append(s.Cases, c)
	}
	return s, nil
}
