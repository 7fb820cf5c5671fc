package cfg

import (
	"fmt"

	"github.com/gnolang/cflow/ast"
)

// handlerEntry is a catch clause that may receive unchecked exceptions. An
// entry without a clause marks the start of the handlers of try.
type handlerEntry struct {
	clause *ast.Catch
	try    *ast.Try
}

// finallyFrame tracks a finally block. While the try body and its catch
// clauses are built the frame is active: control entering the block is
// recorded by completion reason and wired to the block's prelude once the
// prelude exists. While the block itself is built the frame is building:
// control leaving the block goes to the dispatch Returns after it.
type finallyFrame struct {
	try      *ast.Try
	block    *ast.Block
	building bool
	// handlers below depth lie outside the block
	depth int

	pending map[Completion][]int
	entry   map[Completion]int
	// checked holds the catch clauses checked exceptions leave the block
	// for; nil is the exit of the graph
	checked []*ast.Catch
	cont    []int
	calls   []int
}

func newFinallyFrame(s *ast.Try) *finallyFrame {
	return &finallyFrame{
		try:     s,
		block:   s.Finally,
		pending: make(map[Completion][]int),
		entry:   make(map[Completion]int),
	}
}

func (f *finallyFrame) pend(r Completion, off int) {
	f.pending[r] = append(f.pending[r], off)
}

// contains reports whether n lies inside the region the frame guards.
func (f *finallyFrame) contains(n ast.Node) bool {
	if f.building {
		return ast.IsAncestor(f.block, n, false)
	}
	return ast.IsAncestor(f.try, n, false)
}

func (f *finallyFrame) region() ast.Node {
	if f.building {
		return f.block
	}
	return f.try
}

func (f *finallyFrame) checkedIndex(c *ast.Catch) int {
	for i, x := range f.checked {
		if x == c {
			return i
		}
	}
	f.checked = append(f.checked, c)
	return len(f.checked) - 1
}

func (b *builder) frame() *finallyFrame {
	if len(b.frames) == 0 {
		return nil
	}
	return b.frames[len(b.frames)-1]
}

func (b *builder) building() *finallyFrame {
	for i := len(b.frames) - 1; i >= 0; i-- {
		if b.frames[i].building {
			return b.frames[i]
		}
	}
	return nil
}

func (b *builder) catchesUnchecked(c *ast.Catch) bool {
	for _, t := range c.Types {
		if b.oracle.CatchesUnchecked(t) {
			return true
		}
	}
	return false
}

func (b *builder) uncheckedIfNeeded(n ast.Node, atStart bool) {
	switch n.(type) {
	case *ast.Case:
		return
	case *ast.Block:
		if _, ok := n.Parent().(*ast.Switch); ok {
			return
		}
	case ast.Stmt:
	default:
		return
	}
	if _, ok := n.Parent().(*ast.Block); ok && atStart {
		// the block or the previous statement already emitted them
		return
	}
	b.uncheckedJumps()
}

// uncheckedJumps lets control leave for every handler that may receive an
// unchecked exception, up to the nearest finally block.
func (b *builder) uncheckedJumps() {
	f := b.frame()
	for i := len(b.handlers) - 1; i >= 0; i-- {
		h := b.handlers[i]
		if f != nil && f.building && i < f.depth {
			break
		}
		if h.clause == nil {
			if f != nil && !f.building && f.try == h.try {
				f.pend(UncheckedThrow, b.emit(ConditionalThrowTo{}))
				return
			}
			continue
		}
		b.later(b.emit(ConditionalThrowTo{}), h.clause, true)
	}
	switch {
	case f == nil:
	case f.building:
		off := b.emit(ConditionalThrowTo{Target: int(UncheckedThrow)})
		b.later(off, f.block, false)
	default:
		f.pend(UncheckedThrow, b.emit(ConditionalThrowTo{}))
	}
}

// findThrowTo returns the active catch clauses an exception of type t may
// reach, innermost first. A clause whose type is a supertype of t ends the
// search. The result is [nil] when t leaves the graph.
func (b *builder) findThrowTo(t *ast.Type) []*ast.Catch {
	var out []*ast.Catch
	for i := len(b.catchClause) - 1; i >= 0; i-- {
		c := b.catchClause[i]
		var match, definite bool
		for _, ct := range c.Types {
			switch {
			case b.oracle.IsSubtype(t, ct):
				match, definite = true, true
			case b.oracle.IsSubtype(ct, t):
				match = true
			}
		}
		if match {
			out = append(out, c)
		}
		if definite {
			break
		}
	}
	if len(out) == 0 {
		out = []*ast.Catch{nil}
	}
	return out
}

func (b *builder) generateThrow(t *ast.Type) {
	for _, c := range b.findThrowTo(t) {
		b.throwRoute(true, c)
	}
}

// checkedJumps routes the checked exceptions declared by a call.
func (b *builder) checkedJumps(throws []*ast.Type) {
	for _, t := range throws {
		if t == nil || b.oracle.IsUnchecked(t) {
			continue
		}
		b.generateThrow(t)
	}
}

// throwRoute emits a throw towards the catch clause to, or towards the exit
// when to is nil, entering the innermost finally block on the way.
func (b *builder) throwRoute(conditional bool, to *ast.Catch) {
	var ins Instruction = ThrowTo{}
	if conditional {
		ins = ConditionalThrowTo{}
	}
	f := b.frame()
	if f != nil && (to == nil || !f.contains(to)) {
		r := CheckedThrow(f.checkedIndex(to))
		if f.building {
			ins, _ = retarget(ins, func(int) int { return int(r) })
			b.later(b.emit(ins), f.block, false)
			return
		}
		f.pend(r, b.emit(ins))
		return
	}
	off := b.emit(ins)
	if to == nil {
		b.later(off, b.root, false)
		return
	}
	b.later(off, to, true)
}

// returnRoute emits the jump of a return statement.
func (b *builder) returnRoute() {
	f := b.frame()
	switch {
	case f == nil:
		b.later(b.emit(Goto{Role: RoleEnd, IsReturn: true}), b.root, false)
	case f.building:
		off := b.emit(Goto{Target: int(ReturnStatement), Role: RoleEnd, IsReturn: true})
		b.later(off, f.block, false)
	default:
		f.pend(ReturnStatement, b.emit(Goto{Role: RoleEnd, IsReturn: true}))
	}
}

// exit emits the jump of a break or continue that leaves exited for the
// end of dest, running the finally blocks in between.
func (b *builder) exit(exited, dest ast.Node) {
	for i := len(b.frames) - 1; i >= 0; i-- {
		f := b.frames[i]
		if !ast.IsAncestor(exited, f.region(), false) {
			break
		}
		if f.building {
			continue
		}
		off := b.emit(Call{Reason: Normal})
		f.calls = append(f.calls, off)
	}
	if f := b.building(); f != nil && ast.IsAncestor(exited, f.block, false) {
		off := b.emit(Return{
			CallSite: f.entry[Normal],
			Proc:     b.g.starts[f.block],
			Reason:   Normal,
		})
		b.later(off, dest, false)
		return
	}
	off := b.emit(Goto{Role: RoleEnd, IsReturn: ast.IsAncestor(dest, b.root, true)})
	b.later(off, dest, false)
}

func (b *builder) visitThrow(s *ast.Throw) {
	b.start(s)
	b.expr(s.X)
	var targets []*ast.Catch
	if t := b.oracle.TypeOf(s.X); t != nil {
		targets = b.findThrowTo(t)
	} else {
		targets = []*ast.Catch{nil}
	}
	for i, c := range targets {
		b.throwRoute(i < len(targets)-1, c)
	}
	b.finish(s)
}

func (b *builder) visitTry(s *ast.Try) {
	b.start(s)
	var f *finallyFrame
	if s.Finally != nil {
		f = newFinallyFrame(s)
		b.frames = append(b.frames, f)
	}

	mark := len(b.handlers)
	b.handlers = append(b.handlers, handlerEntry{try: s})
	for i := len(s.Catches) - 1; i >= 0; i-- {
		c := s.Catches[i]
		b.catchClause = append(b.catchClause, c)
		if b.catchesUnchecked(c) {
			b.handlers = append(b.handlers, handlerEntry{clause: c, try: s})
		}
	}

	for _, r := range s.Resources {
		b.checkedJumps(b.oracle.UnhandledExceptions(r, nil))
		b.visitVarDecl(r)
	}
	if s.Body != nil {
		// every checked exception of the body may occur before its first
		// statement
		b.checkedJumps(b.oracle.UnhandledExceptions(s.Body, nil))
		b.visit(s.Body)
	}
	b.leaveTry(s, f)

	b.catchClause = b.catchClause[:len(b.catchClause)-len(s.Catches)]
	b.handlers = b.handlers[:mark]
	if f != nil {
		// the catch clauses run inside the finally block's region
		b.handlers = append(b.handlers, handlerEntry{try: s})
	}
	for _, c := range s.Catches {
		b.start(c)
		if b.policy.ParameterAccepted(c.Param) {
			b.emit(WriteVariable{Var: c.Param})
		}
		b.visit(c.Body)
		b.finish(c)
		b.leaveTry(s, f)
	}
	b.handlers = b.handlers[:mark]

	if f != nil {
		b.finishFinally(s, f)
	}
	b.finish(s)
}

func (b *builder) leaveTry(s *ast.Try, f *finallyFrame) {
	off := b.emit(Goto{Role: RoleEnd})
	if f == nil {
		b.later(off, s, false)
		return
	}
	f.pend(Normal, off)
}

// finishFinally emits the prelude that enters the finally block for each
// completion reason seen so far, the block itself, its dispatch Returns and
// the rethrow of unchecked exceptions.
func (b *builder) finishFinally(s *ast.Try, f *finallyFrame) {
	b.frames = b.frames[:len(b.frames)-1]

	call := func(r Completion) {
		off := b.emit(Call{Reason: r})
		f.entry[r] = off
		f.calls = append(f.calls, off)
	}
	call(Normal)
	b.later(b.emit(Goto{Role: RoleEnd}), s, false)
	call(ReturnStatement)
	b.returnRoute()
	call(UncheckedThrow)
	rethrow := b.emit(Goto{Role: RoleEnd})
	known := len(f.checked)
	for i := 0; i < known; i++ {
		call(CheckedThrow(i))
		f.cont = append(f.cont, b.size())
		b.throwRoute(false, f.checked[i])
	}

	for r, offs := range f.pending {
		entry, ok := f.entry[r]
		if !ok {
			b.fail(s, fmt.Sprintf("no finally entry for %s completion", r))
		}
		for _, off := range offs {
			b.shift(off, entry, s)
		}
	}
	f.pending = nil

	f.building = true
	f.depth = len(b.handlers)
	b.frames = append(b.frames, f)
	begin := b.size()
	b.visit(s.Finally)
	b.frames = b.frames[:len(b.frames)-1]
	end := b.size()

	b.emit(Return{Override: -1, CallSite: f.entry[Normal], Proc: begin, Reason: Normal})
	for _, r := range []Completion{ReturnStatement, UncheckedThrow} {
		b.emit(Return{Override: f.entry[r] + 1, CallSite: f.entry[r], Proc: begin, Reason: r})
	}
	late := make(map[int]int)
	for i := range f.checked {
		r := CheckedThrow(i)
		if i < known {
			b.emit(Return{Override: f.cont[i], CallSite: f.entry[r], Proc: begin, Reason: r})
			continue
		}
		// thrown inside the block itself: no prelude entry
		late[i] = b.emit(Return{Override: 0, CallSite: -1, Proc: begin, Reason: r})
	}
	returns := b.size()
	for i := known; i < len(f.checked); i++ {
		b.setTarget(late[i], b.size())
		b.throwRoute(false, f.checked[i])
	}

	b.setTarget(rethrow, b.size())
	b.uncheckedJumps()
	b.throwRoute(false, nil)

	for _, off := range f.calls {
		c := b.g.instructions[off].(Call)
		c.ProcBegin, c.ProcEnd = begin, end
		b.g.instructions[off] = c
	}
	b.g.subroutines = append(b.g.subroutines, Subroutine{
		Block:   s.Finally,
		Begin:   begin,
		End:     end,
		Returns: returns,
		Calls:   f.calls,
	})
	b.g.calls[begin] = f.calls
}
