package dataflow

import (
	"sort"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/walk"
)

// completesNormally solves, for every state, whether some path below it
// arrives at the end of the walk without returning or throwing. With
// jumpsAbrupt a break or continue that lands on the end counts as abrupt
// unless the statement it leaves lies inside the walked range.
func completesNormally(sg *walk.StateGraph, jumpsAbrupt bool) []bool {
	g := sg.Graph()
	end := sg.To()
	inside := func(n ast.Node) bool {
		return !ast.IsNil(n) && g.StartOffset(n) >= sg.From() && g.EndOffset(n) <= end
	}
	return backward[bool]{
		exit: func(int) bool { return false },
		transfer: func(_ int, below bool) bool {
			return below
		},
		edge: func(i int, e walk.Edge, v bool) bool {
			if !sg.Terminal(e.To) {
				return v
			}
			if sg.State(e.To).Off != end || e.Kind == cfg.EdgeThrow {
				return false
			}
			if jmp, ok := sg.Instruction(i).(cfg.Goto); ok && jmp.IsReturn {
				return false
			}
			if jumpsAbrupt {
				switch s := g.OwningNode(sg.State(i).Off).(type) {
				case *ast.Break:
					return inside(ast.ExitedStatement(s))
				case *ast.Continue:
					return inside(ast.ContinuedStatement(s))
				}
			}
			return true
		},
		join:  or,
		equal: sameBool,
	}.solve(sg)
}

// CanCompleteNormally reports whether control entering start can leave the
// range [start, end) by falling out of its end. Returns, throws and jumps
// out of statements enclosing the range do not count.
func (a *Analyzer) CanCompleteNormally(g *cfg.Graph, start, end int) bool {
	if start >= end {
		return true
	}
	sg := a.explore(g, start, end, "can-complete-normally")
	return completesNormally(sg, true)[sg.Entry()]
}

// ReturnPresent reports whether every path through g ends in a return or a
// throw.
func (a *Analyzer) ReturnPresent(g *cfg.Graph) bool {
	sg := a.exploreAll(g, "return-present")
	if sg.Terminal(sg.Entry()) {
		return false
	}
	return !completesNormally(sg, false)[sg.Entry()]
}

// UnreachableStatement returns the first statement no path from the entry
// executes, or nil. Code the builder generates on behalf of a reachable
// statement, such as the jumps after a return, is ignored.
func (a *Analyzer) UnreachableStatement(g *cfg.Graph) ast.Stmt {
	sg := a.exploreAll(g, "unreachable-statement")
	reached := func(off int) bool { return off >= 0 && sg.Reached(off) }
	for i := 0; i < g.Size(); i++ {
		if sg.Reached(i) {
			continue
		}
		s := enclosingStmt(g.OwningNode(i))
		if s == nil || isForUpdate(s) {
			continue
		}
		if g.EndOffset(s) != i+1 || reached(g.StartOffset(s)) {
			continue
		}
		// report the outermost statement that is unreachable as a whole
		for {
			p := enclosingStmt(s.Parent())
			if p == nil || g.StartOffset(p) < 0 || reached(g.StartOffset(p)) {
				break
			}
			s = p
		}
		return s
	}
	return nil
}

// enclosingStmt returns n when it is a statement, else its nearest
// enclosing statement. The body of a function is not a candidate.
func enclosingStmt(n ast.Node) ast.Stmt {
	for ; !ast.IsNil(n); n = n.Parent() {
		if _, ok := n.(*ast.Function); ok {
			return nil
		}
		if _, ok := n.(*ast.Lambda); ok {
			return nil
		}
		s, ok := n.(ast.Stmt)
		if !ok {
			continue
		}
		if _, isBody := s.Parent().(*ast.Function); isBody {
			return nil
		}
		return s
	}
	return nil
}

func isForUpdate(s ast.Stmt) bool {
	f, ok := s.Parent().(*ast.For)
	return ok && f.Update == s
}

// ExitPoints returns the offsets outside [start, end) where control lands
// when it leaves the range by jumping or falling through, in increasing
// order. Entering and leaving finally blocks and throwing are not exits.
func (a *Analyzer) ExitPoints(g *cfg.Graph, start, end int) []int {
	if start >= end {
		return []int{end}
	}
	sg := a.explore(g, start, end, "exit-points")
	seen := make(map[int]bool)
	var out []int
	add := func(off int) {
		off = promote(g, off)
		if !seen[off] {
			seen[off] = true
			out = append(out, off)
		}
	}
	outside := func(off int) bool { return off < start || off >= end }

	for i := 0; i < sg.Len(); i++ {
		off := sg.State(i).Off
		if outside(off) {
			continue
		}
		switch ins := sg.Instruction(i).(type) {
		case cfg.Call, cfg.Return, cfg.ThrowTo:
		case cfg.Goto:
			if outside(ins.Target) && ins.Target > 0 {
				add(ins.Target)
			}
		case cfg.ConditionalGoto:
			if outside(ins.Target) && ins.Target > 0 {
				add(ins.Target)
			}
			if off == end-1 {
				add(end)
			}
		default:
			if off == end-1 {
				add(end)
			}
		}
	}
	sort.Ints(out)
	return out
}

// promote follows plain gotos from off to where control really lands.
func promote(g *cfg.Graph, off int) int {
	seen := make(map[int]bool)
	for off < g.Size() && !seen[off] {
		seen[off] = true
		jmp, ok := g.Instruction(off).(cfg.Goto)
		if !ok || jmp.IsReturn {
			break
		}
		off = jmp.Target
	}
	return off
}
