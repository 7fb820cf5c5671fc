package cfg

import "github.com/gnolang/cflow/ast"

func (b *builder) visitBlock(s *ast.Block) {
	b.start(s)
	from := b.size()
	for _, st := range s.Stmts {
		b.visit(st)
	}
	// each statement owns at least one instruction so OwningNode works
	_, inSwitch := s.Parent().(*ast.Switch)
	if !inSwitch && b.size() == from {
		b.emit(Empty{})
	}
	b.finish(s)
	if from != 0 {
		b.g.blocks[s] = [2]int{from, b.size()}
	}
}

func (b *builder) visitExprStmt(s *ast.ExprStmt) {
	b.start(s)
	b.expr(s.X)
	if b.opts.ExceptionAfterAssignment {
		for _, c := range b.catchClause {
			for _, t := range c.Types {
				b.generateThrow(t)
			}
		}
	}
	b.finish(s)
}

func (b *builder) visitDeclStmt(s *ast.DeclStmt) {
	b.start(s)
	from := b.size()
	for _, d := range s.Vars {
		b.visitVarDecl(d)
	}
	if b.size() == from {
		b.emit(Empty{})
	}
	b.finish(s)
}

func (b *builder) visitVarDecl(d *ast.VarDecl) {
	b.start(d)
	b.expr(d.Init)
	if v := d.Var; v != nil && (d.Init != nil || v.Kind == ast.KindField) && b.policy.LocalAccepted(v) {
		b.emit(WriteVariable{Var: v})
	}
	b.finish(d)
}

// constBool evaluates e when it is a constant boolean.
func (b *builder) constBool(e ast.Expr) (value, ok bool) {
	if ast.IsNil(e) {
		return false, false
	}
	v, ok := b.oracle.Constant(e)
	if !ok {
		return false, false
	}
	value, ok = v.(bool)
	return value, ok
}

// conditional emits an if statement or a ternary:
//
//	cond
//	COND_GOTO else (or end)
//	then
//	GOTO end
//	else
func (b *builder) conditional(n ast.Node, cond ast.Expr, then, els ast.Node) {
	start, startRole := target{n, false}, RoleEnd
	if !ast.IsNil(then) {
		start, startRole = target{then, true}, RoleThen
	}
	end, endRole := target{n, false}, RoleEnd
	if !ast.IsNil(els) {
		end, endRole = target{els, true}, RoleElse
	}

	from := b.size()
	b.pushTargets(start, end)
	b.pushRoles(startRole, endRole)
	b.visit(cond)
	b.popRoles()
	b.popTargets()

	genThen, genElse, jump := true, true, true
	if b.opts.EvaluateConstantConditions {
		if v, ok := b.constBool(cond); ok {
			genThen, genElse, jump = v, !v, false
			b.g.constant = true
		}
	}
	if jump {
		off := b.emit(ConditionalGoto{Role: endRole, Cond: cond})
		b.later(off, end.node, end.atStart)
	}
	if genThen {
		b.visit(then)
	}
	if !ast.IsNil(els) && genElse {
		if genThen {
			b.later(b.emit(Goto{Role: RoleEnd}), n, false)
		}
		b.visit(els)
	}
	if b.size() == from {
		b.emit(Empty{})
	}
}

func (b *builder) visitWhile(s *ast.While) {
	b.start(s)
	start := target{s, false}
	if !ast.IsNil(s.Body) {
		start = target{s.Body, true}
	}
	b.pushTargets(start, target{s, false})
	b.visit(s.Cond)
	if v, ok := b.constBool(s.Cond); ok {
		if v {
			b.emit(Empty{})
		} else {
			b.later(b.emit(Goto{Role: RoleEnd}), s, false)
		}
	} else {
		b.later(b.emit(ConditionalGoto{Role: RoleEnd, Cond: s.Cond}), s, false)
	}
	b.visit(s.Body)
	b.emit(Goto{Target: b.g.starts[s], Role: RoleEnd})
	b.popTargets()
	b.finish(s)
}

func (b *builder) visitDoWhile(s *ast.DoWhile) {
	b.start(s)
	start := target{s, false}
	if !ast.IsNil(s.Body) {
		start = target{s.Body, true}
	}
	b.pushTargets(start, target{s, false})
	b.visit(s.Body)
	b.visit(s.Cond)
	top := b.g.starts[s]
	if v, ok := b.constBool(s.Cond); ok {
		if v {
			b.emit(Goto{Target: top, Role: RoleEnd})
		} else {
			b.emit(Empty{})
		}
	} else {
		b.emit(ConditionalGoto{Target: top, Role: RoleEnd, Cond: s.Cond})
	}
	b.popTargets()
	b.finish(s)
}

func (b *builder) visitFor(s *ast.For) {
	b.start(s)
	start := target{s, false}
	if !ast.IsNil(s.Body) {
		start = target{s.Body, true}
	}
	b.pushTargets(start, target{s, false})
	b.visit(s.Init)
	b.visit(s.Cond)
	v, ok := b.constBool(s.Cond)
	switch {
	case ast.IsNil(s.Cond) || (ok && v):
		b.emit(Empty{})
	case ok:
		b.later(b.emit(Goto{Role: RoleEnd}), s, false)
	default:
		b.later(b.emit(ConditionalGoto{Role: RoleEnd, Cond: s.Cond}), s, false)
	}
	b.visit(s.Body)
	b.visit(s.Update)
	top := b.g.starts[s]
	if !ast.IsNil(s.Init) {
		top = b.g.ends[s.Init]
	}
	b.emit(Goto{Target: top, Role: RoleEnd})
	b.popTargets()
	b.finish(s)
}

func (b *builder) visitForEach(s *ast.ForEach) {
	b.start(s)
	b.pushTargets(target{s, false}, target{s, false})
	if !ast.IsNil(s.Body) {
		b.startTargets[len(b.startTargets)-1] = target{s.Body, false}
	}
	b.visit(s.Iter)
	top := b.size()
	b.later(b.emit(ConditionalGoto{Role: RoleEnd, Cond: s.Iter}), s, false)
	if b.policy.ParameterAccepted(s.Param) {
		b.emit(WriteVariable{Var: s.Param})
	}
	b.visit(s.Body)
	b.emit(Goto{Target: top, Role: RoleEnd})
	b.popTargets()
	b.finish(s)
}

func (b *builder) visitSwitch(s *ast.Switch) {
	b.start(s)
	b.visit(s.Tag)
	if s.Body != nil {
		hasDefault := false
		for _, st := range s.Body.Stmts {
			c, ok := st.(*ast.Case)
			if !ok {
				continue
			}
			if c.Default() {
				hasDefault = true
			}
			b.later(b.emit(ConditionalGoto{Role: RoleEnd, Cond: s.Tag}), c, true)
		}
		if !hasDefault {
			b.later(b.emit(Goto{Role: RoleEnd}), s.Body, false)
		}
		b.visit(s.Body)
	}
	b.finish(s)
}

func (b *builder) visitBreak(s *ast.Break) {
	b.start(s)
	if exited := ast.ExitedStatement(s); exited != nil {
		b.exit(exited, exited)
	}
	b.finish(s)
}

func (b *builder) visitContinue(s *ast.Continue) {
	b.start(s)
	if loop := ast.ContinuedStatement(s); loop != nil {
		var dest ast.Node = ast.LoopBody(loop)
		if ast.IsNil(dest) {
			dest = b.root
		}
		b.exit(loop, dest)
	}
	b.finish(s)
}

func (b *builder) visitAssert(s *ast.Assert) {
	b.start(s)
	b.pushTargets(target{s, false}, target{s, false})
	// assertions may be disabled at run time
	b.later(b.emit(ConditionalGoto{Role: RoleEnd}), s, false)
	if !ast.IsNil(s.Cond) {
		b.pushRoles(RoleEnd, RoleEnd)
		b.visit(s.Cond)
		b.popRoles()
	}
	b.expr(s.Message)
	b.throwRoute(true, nil)
	b.popTargets()
	b.finish(s)
}
