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

// Inspect traverses the tree rooted at n in depth-first order. If f returns false the children of
// the node are skipped. Lambda bodies are traversed as part of the enclosing tree.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *ExprStmt:
		inspectExpr(n.X, f)
	case *LocalVar:
		inspectExpr(n.Init, f)
	case *If:
		inspectExpr(n.Cond, f)
		inspectBlock(n.Then, f)
		inspectBlock(n.Else, f)
	case *While:
		inspectExpr(n.Cond, f)
		inspectBlock(n.Body, f)
	case *For:
		for _, s := range n.Init {
			Inspect(s, f)
		}
		inspectExpr(n.Cond, f)
		for _, u := range n.Update {
			inspectExpr(u, f)
		}
		inspectBlock(n.Body, f)
	case *ForEach:
		inspectExpr(n.Iterable, f)
		inspectBlock(n.Body, f)
	case *Switch:
		inspectExpr(n.Selector, f)
		for _, c := range n.Cases {
			Inspect(c, f)
		}
	case *Case:
		for _, l := range n.Labels {
			inspectExpr(l, f)
		}
		inspectBlock(n.Body, f)
	case *Return:
		inspectExpr(n.X, f)
	case *Throw:
		inspectExpr(n.X, f)
	case *Assert:
		inspectExpr(n.Cond, f)
	case *FieldAccess:
		inspectExpr(n.X, f)
	case *ArrayAccess:
		inspectExpr(n.X, f)
		inspectExpr(n.Index, f)
	case *Binary:
		inspectExpr(n.X, f)
		inspectExpr(n.Y, f)
	case *Unary:
		inspectExpr(n.X, f)
	case *Conditional:
		inspectExpr(n.Cond, f)
		inspectExpr(n.Then, f)
		inspectExpr(n.Else, f)
	case *Assign:
		inspectExpr(n.Target, f)
		inspectExpr(n.Value, f)
	case *Call:
		inspectExpr(n.X, f)
		for _, a := range n.Args {
			inspectExpr(a, f)
		}
	case *New:
		for _, a := range n.Args {
			inspectExpr(a, f)
		}
	case *NewArray:
		inspectExpr(n.Len, f)
	case *Lambda:
		inspectExpr(n.Body, f)
	case *MethodRef:
		inspectExpr(n.X, f)
	}
}

// Inspect on a nil *Block or a nil Expr stored in an interface would see a non-nil interface, so
// the helpers check the concrete value first.
func inspectBlock(b *Block, f func(Node) bool) {
	if b != nil {
		Inspect(b, f)
	}
}

func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

// AssignedIn returns the targets assigned anywhere inside n (assignments and ++/--).
func AssignedIn(n Node) []Expr {
	var out []Expr
	Inspect(n, func(n Node) bool {
		switch n := n.(type) {
		case *Assign:
			out = append(out, n.Target)
		case *Unary:
			if n.Op == "++" || n.Op == "--" {
				out = append(out, n.X)
			}
		case *Lambda:
			return false
		}
		return true
	})
	return out
}
