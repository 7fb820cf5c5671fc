package cfg

import (
	"context"
	"fmt"

	"github.com/gnolang/cflow/ast"
)

// Build lowers the tree rooted at root into a graph. A malformed tree or a
// canceled context yields a *CanceledError and no graph.
func Build(ctx context.Context, root ast.Node, oracle ast.Oracle, policy Policy, opts Options) (g *Graph, err error) {
	if ast.IsNil(root) {
		return nil, fmt.Errorf("failed to build control flow: nil root")
	}
	b := newBuilder(ctx, root, oracle, policy, opts)
	defer func() {
		if r := recover(); r != nil {
			switch r := r.(type) {
			case canceled:
				g, err = nil, r.err
			case defect:
				g, err = nil, r.err
			default:
				panic(r)
			}
		}
	}()
	b.build()
	return b.g, nil
}

// target is a pending jump destination: the start or the end of a node.
type target struct {
	node    ast.Node
	atStart bool
}

type patchKey target

type builder struct {
	ctx    context.Context
	oracle ast.Oracle
	policy Policy
	opts   Options
	root   ast.Node

	g        *Graph
	elements []ast.Node
	patches  map[patchKey][]int

	// jump destinations for a condition that turns out true (start) or
	// false (end), innermost last
	startTargets []target
	endTargets   []target
	startRoles   []Role
	endRoles     []Role

	handlers    []handlerEntry
	catchClause []*ast.Catch
	frames      []*finallyFrame
}

func newBuilder(ctx context.Context, root ast.Node, oracle ast.Oracle, policy Policy, opts Options) *builder {
	if ctx == nil {
		ctx = context.Background()
	}
	return &builder{
		ctx:     ctx,
		oracle:  oracle,
		policy:  policy,
		opts:    opts,
		root:    root,
		g:       newGraph(),
		patches: make(map[patchKey][]int),
	}
}

func (b *builder) build() {
	// guards for expressions that are not inside any statement
	b.startRoles = []Role{RoleEnd}
	b.endRoles = []Role{RoleEnd}
	b.startTargets = []target{{b.root, false}}
	b.endTargets = []target{{b.root, false}}

	b.visit(b.root)
	b.cleanup()
}

// cleanup sends every unresolved jump to the end of the root.
func (b *builder) cleanup() {
	end := b.g.ends[b.root]
	for k, offs := range b.patches {
		for _, off := range offs {
			b.shift(off, end, k.node)
		}
	}
	b.patches = nil
}

func (b *builder) size() int { return len(b.g.instructions) }

func (b *builder) current() ast.Node {
	if len(b.elements) == 0 {
		return nil
	}
	return b.elements[len(b.elements)-1]
}

func (b *builder) emit(ins Instruction) int {
	off := len(b.g.instructions)
	b.g.instructions = append(b.g.instructions, ins)
	b.g.owners = append(b.g.owners, b.current())
	return off
}

// later makes the target of the instruction at off relative to the start
// or end of n. The instruction holds the delta until the offset is known.
func (b *builder) later(off int, n ast.Node, atStart bool) {
	if atStart {
		if s, ok := b.g.starts[n]; ok {
			b.shift(off, s, n)
			return
		}
	} else if e, ok := b.g.ends[n]; ok {
		b.shift(off, e, n)
		return
	}
	k := patchKey{n, atStart}
	b.patches[k] = append(b.patches[k], off)
}

func (b *builder) shift(off, by int, n ast.Node) {
	ins, ok := retarget(b.g.instructions[off], func(t int) int { return t + by })
	if !ok {
		b.fail(n, fmt.Sprintf("instruction %d (%s) has no patchable target", off, b.g.instructions[off]))
	}
	if t, _ := Target(ins); t < 0 {
		b.fail(n, fmt.Sprintf("instruction %d patched to negative offset %d", off, t))
	}
	b.g.instructions[off] = ins
}

func (b *builder) setTarget(off, t int) {
	ins, ok := retarget(b.g.instructions[off], func(int) int { return t })
	if !ok {
		b.fail(b.current(), fmt.Sprintf("instruction %d (%s) has no patchable target", off, b.g.instructions[off]))
	}
	b.g.instructions[off] = ins
}

// retarget rewrites the target a builder patches: the branch target, or the
// override of a Return.
func retarget(ins Instruction, fn func(int) int) (Instruction, bool) {
	switch i := ins.(type) {
	case Goto:
		i.Target = fn(i.Target)
		return i, true
	case ConditionalGoto:
		i.Target = fn(i.Target)
		return i, true
	case ThrowTo:
		i.Target = fn(i.Target)
		return i, true
	case ConditionalThrowTo:
		i.Target = fn(i.Target)
		return i, true
	case Return:
		i.Override = fn(i.Override)
		return i, true
	}
	return ins, false
}

func (b *builder) resolve(n ast.Node) {
	for _, atStart := range []bool{true, false} {
		k := patchKey{n, atStart}
		offs, ok := b.patches[k]
		if !ok {
			continue
		}
		base := b.g.starts[n]
		if !atStart {
			base = b.g.ends[n]
		}
		for _, off := range offs {
			b.shift(off, base, n)
		}
		delete(b.patches, k)
	}
}

func (b *builder) cancel(n ast.Node, cause error) {
	panic(canceled{&CanceledError{Node: n, Cause: cause}})
}

func (b *builder) fail(n ast.Node, reason string) {
	panic(defect{&DefectError{Node: n, Reason: reason}})
}

func (b *builder) poll(n ast.Node) {
	if err := b.ctx.Err(); err != nil {
		b.cancel(n, err)
	}
}

// start records the first offset of n and makes it the owner of the
// instructions that follow.
func (b *builder) start(n ast.Node) {
	b.poll(n)
	for _, c := range n.Children() {
		if bad, ok := c.(*ast.Bad); ok && !bad.Tolerated() {
			b.cancel(n, nil)
		}
	}
	b.g.starts[n] = b.size()
	b.g.nodes = append(b.g.nodes, n)
	b.elements = append(b.elements, n)
	b.uncheckedIfNeeded(n, true)
}

func (b *builder) finish(n ast.Node) {
	b.uncheckedIfNeeded(n, false)
	b.g.ends[n] = b.size()
	b.elements = b.elements[:len(b.elements)-1]
	b.resolve(n)
}

func (b *builder) pushTargets(start, end target) {
	b.startTargets = append(b.startTargets, start)
	b.endTargets = append(b.endTargets, end)
}

func (b *builder) popTargets() {
	b.startTargets = b.startTargets[:len(b.startTargets)-1]
	b.endTargets = b.endTargets[:len(b.endTargets)-1]
}

func (b *builder) pushRoles(start, end Role) {
	b.startRoles = append(b.startRoles, start)
	b.endRoles = append(b.endRoles, end)
}

func (b *builder) popRoles() {
	b.startRoles = b.startRoles[:len(b.startRoles)-1]
	b.endRoles = b.endRoles[:len(b.endRoles)-1]
}

func (b *builder) topStart() target { return b.startTargets[len(b.startTargets)-1] }
func (b *builder) topEnd() target   { return b.endTargets[len(b.endTargets)-1] }

// expr visits e with its own end as the destination of any short-circuit
// jump inside it.
func (b *builder) expr(e ast.Expr) {
	if ast.IsNil(e) {
		return
	}
	b.pushTargets(target{e, false}, target{e, false})
	b.visit(e)
	b.popTargets()
}

func (b *builder) visit(n ast.Node) {
	if ast.IsNil(n) {
		return
	}
	switch n := n.(type) {
	case *ast.Function:
		b.start(n)
		b.visit(n.Body)
		b.finish(n)
	case *ast.Block:
		b.visitBlock(n)
	case *ast.EmptyStmt:
		b.start(n)
		b.emit(Empty{})
		b.finish(n)
	case *ast.ExprStmt:
		b.visitExprStmt(n)
	case *ast.DeclStmt:
		b.visitDeclStmt(n)
	case *ast.VarDecl:
		b.visitVarDecl(n)
	case *ast.If:
		b.start(n)
		b.conditional(n, n.Cond, n.Then, n.Else)
		b.finish(n)
	case *ast.While:
		b.visitWhile(n)
	case *ast.DoWhile:
		b.visitDoWhile(n)
	case *ast.For:
		b.visitFor(n)
	case *ast.ForEach:
		b.visitForEach(n)
	case *ast.Switch:
		b.visitSwitch(n)
	case *ast.Case:
		b.start(n)
		b.expr(n.Value)
		b.finish(n)
	case *ast.Labeled:
		b.start(n)
		b.visit(n.Body)
		b.finish(n)
	case *ast.Break:
		b.visitBreak(n)
	case *ast.Continue:
		b.visitContinue(n)
	case *ast.Return:
		b.start(n)
		b.expr(n.Value)
		b.returnRoute()
		b.finish(n)
	case *ast.Throw:
		b.visitThrow(n)
	case *ast.Try:
		b.visitTry(n)
	case *ast.Assert:
		b.visitAssert(n)
	case *ast.Sync:
		b.start(n)
		b.expr(n.Lock)
		b.visit(n.Body)
		b.finish(n)
	case *ast.Bad:
		if !n.Tolerated() {
			b.cancel(n, nil)
		}
	case *ast.Ident:
		b.visitIdent(n)
	case *ast.Literal:
		b.start(n)
		b.finish(n)
	case *ast.Binary:
		b.visitBinary(n)
	case *ast.Unary:
		b.visitUnary(n)
	case *ast.Assign:
		b.visitAssign(n)
	case *ast.IncDec:
		b.visitIncDec(n)
	case *ast.Call:
		b.visitCall(n)
	case *ast.New:
		b.visitNew(n)
	case *ast.Conditional:
		b.start(n)
		b.conditional(n, n.Cond, n.Then, n.Else)
		b.finish(n)
	case *ast.Index:
		b.start(n)
		b.expr(n.X)
		b.expr(n.Index)
		b.finish(n)
	case *ast.Selector:
		b.start(n)
		b.expr(n.X)
		b.finish(n)
	case *ast.Paren:
		b.start(n)
		b.visit(n.X)
		b.finish(n)
	case *ast.Lambda:
		b.visitLambda(n)
	default:
		b.start(n)
		for _, c := range n.Children() {
			b.visit(c)
		}
		b.finish(n)
	}
}
