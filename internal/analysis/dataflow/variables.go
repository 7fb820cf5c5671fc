package dataflow

import (
	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
)

func clampRange(g *cfg.Graph, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > g.Size() {
		end = g.Size()
	}
	return start, end
}

// WrittenVariables returns the variables written in [start, end) in order
// of their first write.
func (a *Analyzer) WrittenVariables(g *cfg.Graph, start, end int) []*ast.Variable {
	start, end = clampRange(g, start, end)
	var out []*ast.Variable
	seen := make(map[*ast.Variable]bool)
	for off := start; off < end; off++ {
		if w, ok := g.Instruction(off).(cfg.WriteVariable); ok && !seen[w.Var] {
			seen[w.Var] = true
			out = append(out, w.Var)
		}
	}
	return out
}

// UsedVariables returns the variables read or written in [start, end) in
// order of their first access.
func (a *Analyzer) UsedVariables(g *cfg.Graph, start, end int) []*ast.Variable {
	start, end = clampRange(g, start, end)
	var out []*ast.Variable
	seen := make(map[*ast.Variable]bool)
	for off := start; off < end; off++ {
		var v *ast.Variable
		switch ins := g.Instruction(off).(type) {
		case cfg.ReadVariable:
			v = ins.Var
		case cfg.WriteVariable:
			v = ins.Var
		default:
			continue
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// InputVariables returns the variables used in [start, end) whose value on
// entry to start may be read.
func (a *Analyzer) InputVariables(g *cfg.Graph, start, end int) []*ast.Variable {
	var out []*ast.Variable
	for _, v := range a.UsedVariables(g, start, end) {
		if a.valueNeededAt(g, v, start) {
			out = append(out, v)
		}
	}
	return out
}

// OutputVariables returns the variables written in [start, end) whose value
// may be read after one of the exits.
func (a *Analyzer) OutputVariables(g *cfg.Graph, start, end int, exits []int) []*ast.Variable {
	var out []*ast.Variable
	for _, v := range a.WrittenVariables(g, start, end) {
		for _, exit := range exits {
			if a.valueNeededAt(g, v, exit) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// valueNeededAt reports whether some path from off reads v before writing
// it.
func (a *Analyzer) valueNeededAt(g *cfg.Graph, v *ast.Variable, off int) bool {
	if off < 0 || off >= g.Size() {
		return false
	}
	sg := a.explore(g, off, g.Size(), "value-needed")
	needed := backward[bool]{
		exit: func(int) bool { return false },
		transfer: func(i int, below bool) bool {
			switch ins := sg.Instruction(i).(type) {
			case cfg.ReadVariable:
				if ins.Var == v {
					return true
				}
			case cfg.WriteVariable:
				if ins.Var == v {
					return false
				}
			}
			return below
		},
		join:  or,
		equal: sameBool,
	}.solve(sg)
	return needed[sg.Entry()]
}

// AssignedInLoop reports whether some write of v can execute again after
// itself.
func (a *Analyzer) AssignedInLoop(g *cfg.Graph, v *ast.Variable) bool {
	for off := 0; off < g.Size(); off++ {
		if writes(g.Instruction(off), v) && a.Reachable(g, off, off) {
			return true
		}
	}
	return false
}
