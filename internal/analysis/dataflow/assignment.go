package dataflow

import (
	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/lattice"
	"github.com/gnolang/cflow/internal/analysis/walk"
)

// declStart returns the offset where the scope of v begins.
func declStart(g *cfg.Graph, v *ast.Variable) int {
	if ast.IsNil(v.Decl) {
		return 0
	}
	if off := g.StartOffset(v.Decl); off >= 0 {
		return off
	}
	return 0
}

func writes(ins cfg.Instruction, v *ast.Variable) bool {
	w, ok := ins.(cfg.WriteVariable)
	return ok && w.Var == v
}

// throwsOut reports whether e leaves the walk by an exception.
func throwsOut(sg *walk.StateGraph, e walk.Edge) bool {
	return e.Kind == cfg.EdgeThrow && sg.Terminal(e.To)
}

// anyAt joins the values of every state at off.
func anyAt(sg *walk.StateGraph, val []bool, off int) (value, reached bool) {
	for _, i := range sg.At(off) {
		reached = true
		value = value || val[i]
	}
	return value, reached
}

// DefinitelyAssigned reports whether every path from the declaration of v to
// the normal exit of g writes v. Paths that leave by an exception do not
// count. A declaration that is never reached is vacuously assigned.
func (a *Analyzer) DefinitelyAssigned(g *cfg.Graph, v *ast.Variable) bool {
	sg := a.exploreAll(g, "definitely-assigned")
	// true while some path below may leave without writing v
	maybeUnassigned := backward[bool]{
		exit: func(int) bool { return true },
		transfer: func(i int, below bool) bool {
			if writes(sg.Instruction(i), v) {
				return false
			}
			return below
		},
		edge: func(_ int, e walk.Edge, val bool) bool {
			if throwsOut(sg, e) {
				return false
			}
			return val
		},
		join:  or,
		equal: sameBool,
	}.solve(sg)

	unassigned, reached := anyAt(sg, maybeUnassigned, declStart(g, v))
	return !reached || !unassigned
}

// DefinitelyNotAssigned reports whether no path from the declaration of v
// writes it.
func (a *Analyzer) DefinitelyNotAssigned(g *cfg.Graph, v *ast.Variable) bool {
	sg := a.exploreAll(g, "definitely-not-assigned")
	maybeAssigned := backward[bool]{
		exit: func(int) bool { return false },
		transfer: func(i int, below bool) bool {
			return below || writes(sg.Instruction(i), v)
		},
		join:  or,
		equal: sameBool,
	}.solve(sg)

	assigned, _ := anyAt(sg, maybeAssigned, declStart(g, v))
	return !assigned
}

// DefinitelyAssignedAt reports whether v holds a value whenever control
// arrives at off. Parameters hold one on entry. An offset that is never
// reached is vacuously assigned.
func (a *Analyzer) DefinitelyAssignedAt(g *cfg.Graph, v *ast.Variable, off int) bool {
	sg := a.exploreAll(g, "definitely-assigned-at")
	in, _ := forward[bool]{
		entry: !v.IsParameter(),
		transfer: func(i int, in bool) bool {
			if writes(sg.Instruction(i), v) {
				return false
			}
			return in
		},
		join:  or,
		equal: sameBool,
	}.solve(sg)

	unassigned, _ := anyAt(sg, in, off)
	return !unassigned
}

// DefinitelyNotAssignedAt reports whether no path from the entry to off
// writes v.
func (a *Analyzer) DefinitelyNotAssignedAt(g *cfg.Graph, v *ast.Variable, off int) bool {
	sg := a.exploreAll(g, "definitely-not-assigned-at")
	in, _ := forward[bool]{
		entry: v.IsParameter(),
		transfer: func(i int, in bool) bool {
			return in || writes(sg.Instruction(i), v)
		},
		join:  or,
		equal: sameBool,
	}.solve(sg)

	assigned, _ := anyAt(sg, in, off)
	return !assigned
}

// Assignments returns the assignment status of every tracked variable when
// control arrives at off. The result is nil when off is never reached;
// variables absent from the state are unassigned.
func (a *Analyzer) Assignments(g *cfg.Graph, off int) lattice.State {
	sg := a.exploreAll(g, "assignments")
	entry := make(lattice.State)
	for _, v := range a.UsedVariables(g, 0, g.Size()) {
		if v.IsParameter() {
			lattice.Set(entry, v, lattice.Assigned)
		}
	}
	in, _ := forward[lattice.State]{
		entry: entry,
		transfer: func(i int, in lattice.State) lattice.State {
			w, ok := sg.Instruction(i).(cfg.WriteVariable)
			if !ok || in == nil || lattice.Get(in, w.Var) == lattice.Assigned {
				return in
			}
			out := lattice.Clone(in)
			lattice.Set(out, w.Var, lattice.Assigned)
			return out
		},
		join:  lattice.JoinStates,
		equal: lattice.Equal,
	}.solve(sg)

	var out lattice.State
	for _, i := range sg.At(off) {
		out = lattice.JoinStates(out, in[i])
	}
	return out
}
