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

package statement

import (
	"go.uber.org/immutaway/analysis"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/program"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/util"
	"go.uber.org/immutaway/value"
	"go.uber.org/immutaway/variable"
)

// flow is the set of ways in which a statement or block can complete. Zero means it is never
// entered.
type flow uint8

const (
	normal flow = 1 << iota
	returns
	throws
	breaks
	continues
)

// begin creates the record of a statement and makes it current.
func (p *pass) begin(s program.Stmt, index, kind string) *analysis.StatementAnalysis {
	rec := &analysis.StatementAnalysis{
		Index:         index,
		Kind:          kind,
		Pos:           s.Position(),
		Condition:     p.cond,
		AbsoluteState: value.NewAnd(p.cond, p.state),
		Reachable:     true,
		Errors:        make(map[diagnostic.Kind]bool),
	}
	p.records = append(p.records, rec)
	p.byIndex[index] = rec
	p.at(rec)
	return rec
}

func (p *pass) at(rec *analysis.StatementAnalysis) {
	p.index, p.record = rec.Index, rec
}

func (p *pass) end(rec *analysis.StatementAnalysis, f flow) flow {
	rec.State = p.state
	rec.Escapes = f&normal == 0
	rec.Variables = p.env.copy().vars
	return f
}

// block walks the statements of a block whose absolute condition is cond.
func (p *pass) block(b *program.Block, prefix string, cond value.Value) flow {
	saveCond, saveState := p.cond, p.state
	p.cond, p.state = cond, value.True
	defer func() {
		p.lastState = p.state
		p.cond, p.state = saveCond, saveState
	}()

	f := normal
	for i, s := range b.Stmts {
		if f&normal == 0 || value.IsFalse(value.NewAnd(p.cond, p.state)) {
			p.unreachable(b.Stmts[i:], prefix, i)
			return f &^ normal
		}
		f = f&^normal | p.statement(s, util.ChildIndex(prefix, i))
	}
	return f
}

// branch walks a block entered under cond, or marks it dead when cond is false.
func (p *pass) branch(b *program.Block, prefix string, cond value.Value) flow {
	if value.IsFalse(cond) {
		p.unreachable(b.Stmts, prefix, 0)
		return 0
	}
	return p.block(b, prefix, cond)
}

// unreachable records statements that are never executed, flagging only the first.
func (p *pass) unreachable(stmts []program.Stmt, prefix string, from int) {
	for j, s := range stmts {
		index := util.ChildIndex(prefix, from+j)
		rec := &analysis.StatementAnalysis{
			Index:     index,
			Kind:      kindOf(s),
			Pos:       s.Position(),
			Condition: value.False,
			State:     value.False,
			Errors:    make(map[diagnostic.Kind]bool),
			Variables: p.env.copy().vars,
		}
		p.records = append(p.records, rec)
		p.byIndex[index] = rec
		if j == 0 {
			p.raise(diagnostic.UnreachableStatement, index, "")
		}
	}
}

func kindOf(s program.Stmt) string {
	switch s.(type) {
	case *program.ExprStmt:
		return "expression"
	case *program.LocalVar:
		return "local"
	case *program.If:
		return "if"
	case *program.While:
		return "while"
	case *program.For:
		return "for"
	case *program.ForEach:
		return "foreach"
	case *program.Switch:
		return "switch"
	case *program.Return:
		return "return"
	case *program.Throw:
		return "throw"
	case *program.Assert:
		return "assert"
	case *program.Break:
		return "break"
	case *program.Continue:
		return "continue"
	default:
		return "block"
	}
}

func (p *pass) statement(s program.Stmt, index string) flow {
	switch s := s.(type) {
	case *program.ExprStmt:
		return p.expressionStatement(s, index)
	case *program.LocalVar:
		return p.localVariable(s, index)
	case *program.If:
		return p.ifStatement(s, index)
	case *program.While:
		return p.whileLoop(s, index)
	case *program.For:
		return p.forLoop(s, index)
	case *program.ForEach:
		return p.forEachLoop(s, index)
	case *program.Switch:
		return p.switchStatement(s, index)
	case *program.Return:
		return p.returnStatement(s, index)
	case *program.Throw:
		rec := p.begin(s, index, "throw")
		rec.ValueOfExpression = p.eval(s.X)
		p.state = value.False
		return p.end(rec, throws)
	case *program.Assert:
		return p.assertStatement(s, index)
	case *program.Break:
		rec := p.begin(s, index, "break")
		p.state = value.False
		return p.end(rec, breaks)
	case *program.Continue:
		rec := p.begin(s, index, "continue")
		p.state = value.False
		return p.end(rec, continues)
	case *program.Block:
		rec := p.begin(s, index, "block")
		f := p.block(s, util.BlockPrefix(index, 0), value.NewAnd(p.cond, p.state))
		p.at(rec)
		if f&normal == 0 {
			p.state = value.False
		}
		return p.end(rec, f)
	}
	panic("unexpected statement " + kindOf(s))
}

func (p *pass) expressionStatement(s *program.ExprStmt, index string) flow {
	rec := p.begin(s, index, "expression")
	rec.ValueOfExpression = p.eval(s.X)
	if c, ok := s.X.(*program.Call); ok {
		p.checkIgnoredResult(c)
	}
	return p.end(rec, normal)
}

// checkIgnoredResult warns about a statement that only computes the result of a method without
// side effects.
func (p *pass) checkIgnoredResult(c *program.Call) {
	m := c.Method
	if m == nil || m.IsVoid() {
		return
	}
	cma := p.reg.Method(m)
	if cma == nil {
		return
	}
	if cma.Props.Get(property.Modified).IsFalse() && cma.Props.Get(property.Fluent).IsFalse() {
		p.raise(diagnostic.IgnoringResultOfMethodCall, p.index, m.Name)
	}
}

func (p *pass) localVariable(s *program.LocalVar, index string) flow {
	rec := p.begin(s, index, "local")
	lv := variable.NewLocal(s.Var)
	p.declare(s.Var, index, false)
	if s.Init != nil {
		v := p.eval(s.Init)
		rec.ValueOfExpression = v
		p.assign(lv, v)
		if na, ok := v.(*value.NewArray); ok {
			if n, ok := na.Len.(*value.IntConstant); ok && n.V >= 0 {
				p.info(lv).Props[property.Size] = property.SizeEquals(int(n.V))
			}
		}
	} else {
		p.info(lv)
	}
	return p.end(rec, normal)
}

func (p *pass) ifStatement(s *program.If, index string) flow {
	rec := p.begin(s, index, "if")
	c := p.eval(s.Cond)
	rec.ValueOfExpression = c
	abs := value.NewAnd(p.cond, p.state)
	p.checkConstantCondition(c, abs, index)

	before := p.env.copy()
	thenF := p.branch(s.Then, util.BlockPrefix(index, 0), p.enter(value.NewAnd(abs, c), c))
	thenEnv := p.env
	p.env = before
	elseF := normal
	if s.Else != nil {
		p.env = before.copy()
		elseF = p.branch(s.Else, util.BlockPrefix(index, 1), value.NewAnd(abs, value.Not(c)))
	}
	elseEnv := p.env
	p.at(rec)

	p.env = joinEnvs(c, thenF, thenEnv, elseF, elseEnv)
	p.state = stateAfter(p.state, c, thenF, elseF)
	if thenF == throws {
		p.escapeCondition(rec, c)
	}
	if s.Else != nil && elseF == throws {
		p.escapeCondition(rec, value.Not(c))
	}
	return p.end(rec, thenF|elseF)
}

// enter applies the size restrictions of the condition to the variables of the branch about to be
// walked, and returns the branch condition.
func (p *pass) enter(branchCond, c value.Value) value.Value {
	for key, size := range value.SizeRestrictions(c) {
		if vi := p.env.get(key); vi != nil {
			vi.Props[property.Size] = size
		}
	}
	return branchCond
}

func joinEnvs(c value.Value, thenF flow, thenEnv *env, elseF flow, elseEnv *env) *env {
	switch tn, en := thenF&normal != 0, elseF&normal != 0; {
	case tn && en:
		return mergeBranches(c, thenEnv, elseEnv)
	case tn:
		return thenEnv
	default:
		return elseEnv
	}
}

func stateAfter(state, c value.Value, thenF, elseF flow) value.Value {
	switch tn, en := thenF&normal != 0, elseF&normal != 0; {
	case tn && en:
		return state
	case tn:
		return value.NewAnd(state, c)
	case en:
		return value.NewAnd(state, value.Not(c))
	default:
		return value.False
	}
}

// checkConstantCondition flags a condition that is constant by itself or under the state.
func (p *pass) checkConstantCondition(c, abs value.Value, index string) {
	if isUndecided(c) || isUndecided(abs) || value.IsFalse(abs) {
		return
	}
	if value.IsConstant(c) || value.IsFalse(value.NewAnd(abs, c)) || value.IsFalse(value.NewAnd(abs, value.Not(c))) {
		p.raise(diagnostic.ConditionEvaluatesToConstant, index, c.String())
	}
}

func isUndecided(v value.Value) bool { return value.IsDelayed(v) || value.IsUnknown(v) }

// escapeCondition handles a branch taken under c that always throws: c must not hold on entry.
// A null check on a parameter makes the parameter not-null instead.
func (p *pass) escapeCondition(rec *analysis.StatementAnalysis, c value.Value) {
	if value.IsDelayed(c) {
		p.preDelayed = true
		return
	}
	if pv := nullCheckedParameter(c); pv != nil {
		p.contextNotNull(pv)
		return
	}
	full := value.NewAnd(p.cond, c)
	if !p.onlyParametersAndFields(full) {
		return
	}
	pre := value.Not(full)
	rec.Precondition = pre
	p.level.Preconditions = append(p.level.Preconditions, pre)
}

// nullCheckedParameter returns p when c is "p==null" for a parameter p.
func nullCheckedParameter(c value.Value) variable.Variable {
	eq, ok := c.(*value.Equals)
	if !ok {
		return nil
	}
	for _, pair := range [][2]value.Value{{eq.L, eq.R}, {eq.R, eq.L}} {
		if _, isNull := pair[1].(*value.NullConstant); !isNull {
			continue
		}
		if vv, ok := unwrap(pair[0]).(*value.VariableValue); ok && vv.Var.Kind() == variable.KindParameter {
			return vv.Var
		}
	}
	return nil
}

// onlyParametersAndFields reports whether v is a condition on the method's parameters and the
// fields of this only.
func (p *pass) onlyParametersAndFields(v value.Value) bool {
	vars := value.Variables(v)
	if len(vars) == 0 {
		return false
	}
	for _, x := range vars {
		switch x := x.(type) {
		case *variable.Parameter:
			if x.Param.Owner != p.m {
				return false
			}
		case *variable.Field:
			if !x.IsThisField() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (p *pass) returnStatement(s *program.Return, index string) flow {
	rec := p.begin(s, index, "return")
	if s.X != nil {
		v := p.eval(s.X)
		rec.ValueOfExpression = v
		abs := value.NewAnd(p.cond, p.state)
		p.ret = value.NewConditional(abs, v, p.ret)
		p.level.Transfers = append(p.level.Transfers, analysis.TransferValue{
			Index:     index,
			Value:     v,
			NotNull:   p.notNull(v),
			Immutable: p.immutable(v),
		})
		p.linkReturn(v)
	}
	p.recordExit()
	p.state = value.False
	return p.end(rec, returns)
}

func (p *pass) assertStatement(s *program.Assert, index string) flow {
	rec := p.begin(s, index, "assert")
	c := p.eval(s.Cond)
	rec.ValueOfExpression = c
	abs := value.NewAnd(p.cond, p.state)
	if !isUndecided(c) && !isUndecided(abs) && !value.IsFalse(abs) && value.IsFalse(value.NewAnd(abs, value.Not(c))) {
		p.raise(diagnostic.AssertEvaluatesToConstantTrue, index, c.String())
	}
	p.state = value.NewAnd(p.state, c)
	return p.end(rec, normal)
}

// makeOpaque replaces the values of the variables assigned in the nodes by the variables
// themselves, so that one walk over a loop body holds for every iteration.
func (p *pass) makeOpaque(index string, nodes ...program.Node) {
	for _, n := range nodes {
		for _, target := range program.AssignedIn(n) {
			v := p.syntacticVariable(target)
			if v == nil {
				continue
			}
			vi := p.info(v)
			vi.Value = value.NewVariable(v)
			vi.AssignmentID = index + config.AssignmentSuffix
			vi.Eventual = analysis.EventualUnknown
			p.loopVars[v.Key()] = true
		}
	}
}

func (p *pass) whileLoop(s *program.While, index string) flow {
	rec := p.begin(s, index, "while")
	p.makeOpaque(index, s.Body)
	c := p.eval(s.Cond)
	rec.ValueOfExpression = c
	return p.loop(rec, s.Cond, c, s.Body, nil)
}

func (p *pass) forLoop(s *program.For, index string) flow {
	rec := p.begin(s, index, "for")
	for _, init := range s.Init {
		switch init := init.(type) {
		case *program.LocalVar:
			lv := variable.NewLocal(init.Var)
			p.declare(init.Var, index, false)
			if init.Init != nil {
				p.assign(lv, p.eval(init.Init))
			}
		case *program.ExprStmt:
			p.eval(init.X)
		}
	}
	nodes := []program.Node{s.Body}
	for _, u := range s.Update {
		nodes = append(nodes, u)
	}
	p.makeOpaque(index, nodes...)
	c := value.Value(value.True)
	if s.Cond != nil {
		c = p.eval(s.Cond)
	}
	rec.ValueOfExpression = c
	return p.loop(rec, s.Cond, c, s.Body, s.Update)
}

func (p *pass) forEachLoop(s *program.ForEach, index string) flow {
	rec := p.begin(s, index, "foreach")
	it := p.eval(s.Iterable)
	p.deref(it, s.Iterable)
	rec.ValueOfExpression = it
	p.makeOpaque(index, s.Body)
	p.declare(s.Var, index, true)
	lv := variable.NewLocal(s.Var)
	vi := p.info(lv)
	vi.Value = value.NewVariable(lv)
	vi.AssignmentID = index + config.AssignmentSuffix

	abs := value.NewAnd(p.cond, p.state)
	before := p.env.copy()
	p.loopDepth++
	bf := p.branch(s.Body, util.BlockPrefix(index, 0), abs)
	p.loopDepth--
	p.at(rec)
	p.env = afterLoop(before, p.env)
	if len(s.Body.Stmts) == 0 {
		p.raise(diagnostic.EmptyLoop, index, "")
	}
	return p.end(rec, bf&(returns|throws)|normal)
}

// loop walks the body of a while or for loop whose condition evaluated to c.
func (p *pass) loop(rec *analysis.StatementAnalysis, condExpr program.Expr, c value.Value, body *program.Block,
	update []program.Expr) flow {
	index := rec.Index
	abs := value.NewAnd(p.cond, p.state)
	infinite := condExpr == nil || isTrueLiteral(condExpr)
	if !infinite {
		p.checkConstantCondition(c, abs, index)
	}

	before := p.env.copy()
	p.loopDepth++
	bf := p.branch(body, util.BlockPrefix(index, 0), value.NewAnd(abs, c))
	p.at(rec)
	if bf&(normal|continues) != 0 {
		for _, u := range update {
			p.eval(u)
		}
	}
	p.loopDepth--
	p.env = afterLoop(before, p.env)

	if len(body.Stmts) == 0 {
		p.raise(diagnostic.EmptyLoop, index, "")
	}
	if !infinite && !isUndecided(c) && !value.IsConstant(c) && bf&(breaks|returns|throws) == 0 &&
		!p.conditionMayChange(condExpr, body, update) {
		p.raise(diagnostic.LoopWithoutModification, index, c.String())
	}

	f := bf & (returns | throws)
	if (!infinite && !value.IsTrue(c)) || bf&breaks != 0 {
		f |= normal
	}
	if bf&breaks == 0 {
		p.state = value.NewAnd(p.state, value.Not(c))
	}
	return p.end(rec, f)
}

// conditionMayChange reports whether the loop can change the outcome of its condition: the
// condition calls a method, or reads a variable assigned in the body, or reads a field while the
// body calls a method of this.
func (p *pass) conditionMayChange(condExpr program.Expr, body *program.Block, update []program.Expr) bool {
	assigned := map[string]bool{}
	nodes := []program.Node{body}
	for _, u := range update {
		nodes = append(nodes, u)
	}
	callsThis := false
	for _, n := range nodes {
		for _, t := range program.AssignedIn(n) {
			if v := p.syntacticVariable(t); v != nil {
				assigned[v.Key()] = true
			}
		}
		program.Inspect(n, func(n program.Node) bool {
			if c, ok := n.(*program.Call); ok && (c.X == nil || isThisExpr(c.X)) && c.Method != nil && !c.Method.Static {
				callsThis = true
			}
			return true
		})
	}
	changes := false
	program.Inspect(condExpr, func(n program.Node) bool {
		switch n := n.(type) {
		case *program.Call:
			changes = true
		case *program.Name, *program.FieldAccess:
			if v := p.syntacticVariable(n.(program.Expr)); v != nil {
				if assigned[v.Key()] {
					changes = true
				}
				if _, isField := v.(*variable.Field); isField && callsThis {
					changes = true
				}
			}
		}
		return !changes
	})
	return changes
}

func isTrueLiteral(e program.Expr) bool {
	b, ok := e.(*program.BoolLit)
	return ok && b.Value
}

func isThisExpr(e program.Expr) bool {
	_, ok := e.(*program.This)
	return ok
}

func (p *pass) switchStatement(s *program.Switch, index string) flow {
	rec := p.begin(s, index, "switch")
	sel := p.eval(s.Selector)
	rec.ValueOfExpression = sel
	abs := value.NewAnd(p.cond, p.state)

	labels := make([]value.Value, len(s.Cases))
	for k, cs := range s.Cases {
		var alts []value.Value
		for _, l := range cs.Labels {
			alts = append(alts, value.NewEquals(sel, p.eval(l)))
		}
		if len(alts) > 0 {
			labels[k] = value.NewOr(alts...)
		}
	}
	conds := make([]value.Value, len(s.Cases))
	hasDefault := false
	for k, cs := range s.Cases {
		if !cs.Default {
			conds[k] = labels[k]
			continue
		}
		hasDefault = true
		var others []value.Value
		for j, l := range labels {
			if j != k && l != nil {
				others = append(others, l)
			}
		}
		conds[k] = value.Not(value.NewOr(others...))
		if labels[k] != nil {
			conds[k] = value.NewOr(labels[k], conds[k])
		}
	}

	before := p.env.copy()
	var (
		envs  []*env
		flows []flow
	)
	var f flow
	for k, cs := range s.Cases {
		p.env = before.copy()
		prefix := util.BlockPrefix(index, k)
		armAbs := value.NewAnd(abs, conds[k])
		af := p.branch(cs.Body, prefix, armAbs)
		if af&breaks != 0 {
			af = af&^breaks | normal
		}
		if !isUndecided(conds[k]) && !isUndecided(abs) && !value.IsFalse(abs) &&
			(value.IsFalse(armAbs) || value.IsFalse(value.NewAnd(abs, value.Not(conds[k])))) {
			p.raise(diagnostic.ConditionEvaluatesToConstant, util.ChildIndex(prefix, 0), conds[k].String())
		}
		envs = append(envs, p.env)
		flows = append(flows, af)
		f |= af
	}
	p.at(rec)
	if !hasDefault {
		var none []value.Value
		for _, c := range conds {
			none = append(none, c)
		}
		conds = append(conds, value.Not(value.NewOr(none...)))
		envs = append(envs, before)
		flows = append(flows, normal)
		f |= normal
	}

	var joined *env
	state := p.state
	for k := len(envs) - 1; k >= 0; k-- {
		if flows[k]&normal == 0 {
			state = value.NewAnd(state, value.Not(conds[k]))
			continue
		}
		if joined == nil {
			joined = envs[k]
		} else {
			joined = mergeBranches(conds[k], envs[k], joined)
		}
	}
	if joined == nil {
		joined = before
		state = value.False
	}
	p.env = joined
	p.state = state
	return p.end(rec, f)
}
