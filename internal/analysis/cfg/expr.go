package cfg

import "github.com/gnolang/cflow/ast"

func (b *builder) visitIdent(e *ast.Ident) {
	b.start(e)
	if v := b.policy.VariableForReference(e); v != nil {
		b.emit(ReadVariable{Var: v})
	}
	b.finish(e)
}

// trackedTarget returns the variable an assignment target writes, or nil.
func (b *builder) trackedTarget(e ast.Expr) *ast.Variable {
	id, ok := ast.Unparen(e).(*ast.Ident)
	if !ok {
		return nil
	}
	return b.policy.VariableForReference(id)
}

func (b *builder) visitAssign(e *ast.Assign) {
	b.start(e)
	t := target{e, false}
	if !ast.IsNil(e.Value) {
		t = target{e.Value, false}
	}
	b.pushTargets(t, t)

	if v := b.trackedTarget(e.Target); v != nil {
		if e.Op != "" {
			b.emit(ReadVariable{Var: v})
		}
		b.visit(e.Value)
		b.emit(WriteVariable{Var: v})
	} else if idx, ok := ast.Unparen(e.Target).(*ast.Index); ok && b.trackedTarget(idx.X) != nil {
		// storing into an element reads the container
		b.emit(ReadVariable{Var: b.trackedTarget(idx.X)})
		b.expr(idx.Index)
		b.visit(e.Value)
	} else {
		b.expr(e.Target)
		b.visit(e.Value)
	}

	b.popTargets()
	b.finish(e)
}

func (b *builder) visitIncDec(e *ast.IncDec) {
	b.start(e)
	b.expr(e.Target)
	if v := b.trackedTarget(e.Target); v != nil {
		b.emit(WriteVariable{Var: v})
	}
	b.finish(e)
}

func (b *builder) visitUnary(e *ast.Unary) {
	b.start(e)
	if e.Op == ast.OpNot {
		// negation swaps where the operand's outcomes go
		start, end := b.topStart(), b.topEnd()
		b.pushTargets(end, start)
		b.visit(e.X)
		b.popTargets()
	} else {
		b.expr(e.X)
	}
	b.finish(e)
}

func (b *builder) visitBinary(e *ast.Binary) {
	if e.Op.Logical() {
		b.polyadic(e)
		return
	}
	b.start(e)
	b.expr(e.X)
	b.expr(e.Y)
	b.finish(e)
}

// flatten returns the operands of a left-nested chain of e.Op, and the
// nested binaries of the chain.
func flatten(e *ast.Binary) (operands []ast.Expr, chain []*ast.Binary) {
	var x ast.Expr = e
	for {
		bin, ok := x.(*ast.Binary)
		if !ok || bin.Op != e.Op {
			break
		}
		operands = append(operands, bin.Y)
		if bin != e {
			chain = append(chain, bin)
		}
		x = bin.X
	}
	operands = append(operands, x)
	for i, j := 0, len(operands)-1; i < j; i, j = i+1, j-1 {
		operands[i], operands[j] = operands[j], operands[i]
	}
	return operands, chain
}

// polyadic emits a chain of && or ||. With short-circuit jumps each operand
// but the last jumps to the target its value decides; constant operands
// drop the jump or the rest of the chain.
func (b *builder) polyadic(e *ast.Binary) {
	b.start(e)
	operands, chain := flatten(e)
	for _, c := range chain {
		b.g.starts[c] = b.g.starts[e]
		b.g.nodes = append(b.g.nodes, c)
	}

	isAnd := e.Op == ast.OpAnd
	isOr := !isAnd
	lKnown, lValue := true, isAnd
	var lOperand ast.Expr
	for i, r := range operands {
		rKnown, rValue := false, false
		if b.opts.ShortCircuitJumps {
			if v, ok := b.constBool(r); ok {
				b.g.constant = true
				if b.opts.EvaluateConstantConditions || !ast.InsideIfCondition(e) {
					rKnown, rValue = true, v
				}
			}
			role, to := b.startRoles[len(b.startRoles)-1], b.topStart()
			if isAnd {
				role, to = b.endRoles[len(b.endRoles)-1], b.topEnd()
			}

			stop := false
			switch {
			case lKnown:
				stop = lValue == isOr
			case rKnown && rValue == isOr:
				stop = true
			default:
				b.later(b.emit(ConditionalGoto{Role: role, Cond: lOperand}), to.node, to.atStart)
			}
			if stop {
				if lOperand != nil {
					b.later(b.emit(Goto{Role: role}), to.node, to.atStart)
				}
				break
			}
		}
		var next ast.Expr
		if i < len(operands)-1 {
			next = operands[i+1]
		}
		b.operand(r, next, e.Op)
		lOperand = r
		lKnown, lValue = rKnown, rValue
	}

	for _, c := range chain {
		if end, ok := b.g.ends[c.Y]; ok {
			b.g.ends[c] = end
		} else {
			b.g.ends[c] = b.size()
		}
	}
	b.finish(e)
}

func (b *builder) operand(x, next ast.Expr, op ast.Op) {
	if next == nil {
		b.visit(x)
		return
	}
	start, end := target{next, true}, target{next, true}
	if op == ast.OpOr {
		start = b.topStart()
	} else {
		end = b.topEnd()
	}
	b.pushRoles(RoleEnd, RoleEnd)
	b.pushTargets(start, end)
	b.visit(x)
	b.popTargets()
	b.popRoles()
}

func (b *builder) visitCall(e *ast.Call) {
	b.start(e)
	b.expr(e.Recv)
	for _, a := range e.Args {
		b.expr(a)
	}
	// the call itself is executable code
	b.emit(Empty{})
	b.checkedJumps(e.Throws)
	b.finish(e)
}

func (b *builder) visitNew(e *ast.New) {
	b.start(e)
	from := b.size()
	for _, a := range e.Args {
		b.expr(a)
	}
	b.checkedJumps(e.Throws)
	if b.size() == from {
		b.emit(Empty{})
	}
	b.finish(e)
}

// visitLambda reads the outer variables the lambda captures. Its body
// belongs to a graph of its own.
func (b *builder) visitLambda(e *ast.Lambda) {
	b.start(e)
	seen := make(map[*ast.Variable]bool)
	ast.Inspect(e.Body, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		v := b.policy.VariableForReference(id)
		if v == nil || seen[v] || ast.IsAncestor(e, v.Decl, false) || isLambdaParam(e, v) {
			return true
		}
		seen[v] = true
		b.emit(ReadVariable{Var: v})
		return true
	})
	b.finish(e)
}

func isLambdaParam(e *ast.Lambda, v *ast.Variable) bool {
	for _, p := range e.Params {
		if p == v {
			return true
		}
	}
	return false
}
