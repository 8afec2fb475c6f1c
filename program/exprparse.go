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
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	off  int
}

// Operators ordered longest first so that the scanner is greedy.
var _operators = []string{
	"->", "::", "++", "--", "&&", "||", "==", "!=", "<=", ">=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "(", ")", "[", "]", ".", ",", "?", ":", "&", "|", "^",
}

var _binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"+": 8, "-": 8,
	"*": 9, "/": 9, "%": 9,
}

var _assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true, "&=": true, "|=": true, "^=": true,
}

// SyntaxError is an error in an expression string.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

func scan(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '_' || c == '$' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || src[i] == '$' || unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i]))) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], off: start})
		case unicode.IsDigit(c):
			start := i
			for i < len(src) && unicode.IsDigit(rune(src[i])) {
				i++
			}
			// Java long suffix.
			end := i
			if i < len(src) && (src[i] == 'L' || src[i] == 'l') {
				i++
			}
			toks = append(toks, token{kind: tokInt, text: src[start:end], off: start})
		case c == '"':
			start := i
			i++
			var sb strings.Builder
			for i < len(src) && src[i] != '"' {
				if src[i] == '\\' && i+1 < len(src) {
					i++
					switch src[i] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(src[i])
					}
				} else {
					sb.WriteByte(src[i])
				}
				i++
			}
			if i >= len(src) {
				return nil, fmt.Errorf("offset %d: unterminated string literal", start)
			}
			i++
			toks = append(toks, token{kind: tokString, text: sb.String(), off: start})
		default:
			matched := false
			for _, op := range _operators {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, off: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("offset %d: unexpected character %q", i, c)
			}
		}
	}
	return append(toks, token{kind: tokEOF, off: len(src)}), nil
}

type exprParser struct {
	toks []token
	i    int
	base Pos
}

// ParseExpr parses a Java expression. Names are left unresolved; see Resolve.
func ParseExpr(src string, base Pos) (Expr, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, &SyntaxError{Pos: base, Msg: err.Error()}
	}
	p := &exprParser{toks: toks, base: base}
	e, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %q after expression", p.peek().text)
	}
	return e, nil
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *exprParser) expect(text string) error {
	if !p.isOp(text) {
		return p.errorf("expected %q, found %q", text, p.peek().text)
	}
	p.next()
	return nil
}

func (p *exprParser) pos(t token) node {
	return node{P: Pos{File: p.base.File, Line: p.base.Line, Col: p.base.Col + t.off}}
}

func (p *exprParser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.pos(p.peek()).P, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) parseAssign() (Expr, error) {
	start := p.peek()
	lhs, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && _assignOps[t.text] {
		p.next()
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &Assign{node: p.pos(start), Target: lhs, Op: t.text, Value: rhs}, nil
	}
	return lhs, nil
}

func (p *exprParser) parseTernary() (Expr, error) {
	start := p.peek()
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.isOp("?") {
		return cond, nil
	}
	p.next()
	then, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &Conditional{node: p.pos(start), Cond: cond, Then: then, Else: els}, nil
}

func (p *exprParser) parseBinary(minPrec int) (Expr, error) {
	start := p.peek()
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		prec, ok := _binaryPrecedence[t.text]
		if t.kind != tokOp || !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{node: p.pos(start), Op: t.text, X: left, Y: right}
	}
}

func (p *exprParser) parseUnary() (Expr, error) {
	t := p.peek()
	if t.kind == tokOp {
		switch t.text {
		case "!", "-", "+", "++", "--":
			p.next()
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &Unary{node: p.pos(t), Op: t.text, X: x}, nil
		}
	}
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(x)
}

func (p *exprParser) parsePostfix(x Expr) (Expr, error) {
	for {
		t := p.peek()
		if t.kind != tokOp {
			return x, nil
		}
		switch t.text {
		case ".":
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, p.errorf("expected a name after '.'")
			}
			if p.isOp("(") {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				x = &Call{node: p.pos(name), X: x, Name: name.text, Args: args}
			} else {
				x = &FieldAccess{node: p.pos(name), X: x, Name: name.text}
			}
		case "[":
			p.next()
			idx, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &ArrayAccess{node: p.pos(t), X: x, Index: idx}
		case "++", "--":
			p.next()
			x = &Unary{node: p.pos(t), Op: t.text, X: x, Postfix: true}
		case "::":
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, p.errorf("expected a method name after '::'")
			}
			x = &MethodRef{node: p.pos(name), X: x, Name: name.text}
		default:
			return x, nil
		}
	}
}

func (p *exprParser) parseArgs() ([]Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []Expr
	if p.isOp(")") {
		p.next()
		return args, nil
	}
	for {
		a, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.isOp(",") {
			p.next()
			continue
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *exprParser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokInt:
		p.next()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: p.pos(t).P, Msg: err.Error()}
		}
		return &IntLit{node: p.pos(t), Value: v}, nil
	case tokString:
		p.next()
		return &StringLit{node: p.pos(t), Value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.next()
			return &BoolLit{node: p.pos(t), Value: t.text == "true"}, nil
		case "null":
			p.next()
			return &NullLit{node: p.pos(t)}, nil
		case "this":
			p.next()
			return &This{node: p.pos(t)}, nil
		case "new":
			return p.parseNew()
		}
		if next := p.peekAt(1); next.kind == tokOp && next.text == "->" {
			p.next()
			p.next()
			return p.parseLambdaBody(t, []string{t.text})
		}
		p.next()
		if p.isOp("(") {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Call{node: p.pos(t), Name: t.text, Args: args}, nil
		}
		return &Name{node: p.pos(t), Ident: t.text}, nil
	case tokOp:
		if t.text == "(" {
			if params, ok := p.lambdaParams(); ok {
				return p.parseLambdaBody(t, params)
			}
			p.next()
			x, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, p.errorf("unexpected %q", t.text)
}

// lambdaParams recognises "(a, b) ->" and "() ->", consuming the tokens only on success.
func (p *exprParser) lambdaParams() ([]string, bool) {
	j := p.i + 1
	var params []string
	for {
		t := p.toks[j]
		if t.kind == tokOp && t.text == ")" {
			break
		}
		if t.kind != tokIdent {
			return nil, false
		}
		params = append(params, t.text)
		j++
		if p.toks[j].kind == tokOp && p.toks[j].text == "," {
			j++
			continue
		}
		if p.toks[j].kind != tokOp || p.toks[j].text != ")" {
			return nil, false
		}
	}
	arrow := p.toks[j+1]
	if arrow.kind != tokOp || arrow.text != "->" {
		return nil, false
	}
	p.i = j + 2
	return params, true
}

func (p *exprParser) parseLambdaBody(start token, params []string) (Expr, error) {
	body, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &Lambda{node: p.pos(start), Params: params, Body: body}, nil
}

func (p *exprParser) parseNew() (Expr, error) {
	start := p.next()
	var parts []string
	for {
		t := p.next()
		if t.kind != tokIdent {
			return nil, p.errorf("expected a type name after 'new'")
		}
		parts = append(parts, t.text)
		if !p.isOp(".") {
			break
		}
		p.next()
	}
	name := strings.Join(parts, ".")
	// Skip type arguments, including the diamond.
	if p.isOp("<") {
		depth := 0
		for {
			t := p.next()
			if t.kind == tokEOF {
				return nil, p.errorf("unterminated type arguments")
			}
			if t.kind == tokOp && t.text == "<" {
				depth++
			}
			if t.kind == tokOp && t.text == ">" {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
	if p.isOp("[") {
		p.next()
		length, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return &NewArray{node: p.pos(start), Elem: TypeRef{Name: name}, Len: length}, nil
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return &New{node: p.pos(start), TypeName: name, Args: args}, nil
}
