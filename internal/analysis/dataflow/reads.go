package dataflow

import (
	"sort"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/lattice"
	"github.com/gnolang/cflow/internal/analysis/walk"
)

// Site is an access to a variable.
type Site struct {
	Var  *ast.Variable
	Off  int
	Node ast.Node
}

// DoubleWrite is a write that may happen while an earlier write of the same
// variable is still the latest one.
type DoubleWrite struct {
	Var           *ast.Variable
	First, Second int
	// Loop marks a write that reaches itself around a loop.
	Loop bool
	Node ast.Node
}

func unionSites(a, b lattice.Sites) lattice.Sites { return a.Union(b) }
func sameSites(a, b lattice.Sites) bool          { return a.Equal(b) }

// initializedOnEntry reports whether v holds a value before the graph runs.
func initializedOnEntry(v *ast.Variable) bool {
	return v.IsParameter() || v.Kind == ast.KindField
}

// ReadBeforeWrite returns, for each variable some path reads before writing,
// its earliest such read. Parameters and fields are never reported.
func (a *Analyzer) ReadBeforeWrite(g *cfg.Graph) []Site {
	sg := a.exploreAll(g, "read-before-write")
	// reads below each state not preceded by a write of the same variable
	pending := backward[lattice.Sites]{
		exit: func(int) lattice.Sites { return lattice.Sites{} },
		transfer: func(i int, below lattice.Sites) lattice.Sites {
			switch ins := sg.Instruction(i).(type) {
			case cfg.ReadVariable:
				if !initializedOnEntry(ins.Var) {
					return below.Put(ins.Var, sg.State(i).Off)
				}
			case cfg.WriteVariable:
				return below.Delete(ins.Var)
			}
			return below
		},
		join:  unionSites,
		equal: sameSites,
	}.solve(sg)

	top := pending[sg.Entry()]
	out := make([]Site, 0, top.Len())
	for _, v := range top.Vars() {
		off := top.Get(v)[0]
		out = append(out, Site{Var: v, Off: off, Node: g.OwningNode(off)})
	}
	return out
}

// InitializedTwice returns every write that may follow another write of the
// same variable with no write in between, ordered by offset.
func (a *Analyzer) InitializedTwice(g *cfg.Graph) []DoubleWrite {
	sg := a.exploreAll(g, "initialized-twice")
	// latest writes reaching each state
	in, _ := forward[lattice.Sites]{
		entry: lattice.Sites{},
		transfer: func(i int, in lattice.Sites) lattice.Sites {
			if w, ok := sg.Instruction(i).(cfg.WriteVariable); ok {
				return in.Replace(w.Var, sg.State(i).Off)
			}
			return in
		},
		join:  unionSites,
		equal: sameSites,
	}.solve(sg)

	type key struct {
		v             *ast.Variable
		first, second int
	}
	seen := make(map[key]bool)
	var out []DoubleWrite
	for i := 0; i < sg.Len(); i++ {
		w, ok := sg.Instruction(i).(cfg.WriteVariable)
		if !ok {
			continue
		}
		off := sg.State(i).Off
		for _, first := range in[i].Get(w.Var) {
			k := key{w.Var, first, off}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, DoubleWrite{
				Var:    w.Var,
				First:  first,
				Second: off,
				Loop:   first == off,
				Node:   g.OwningNode(off),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Second != out[j].Second {
			return out[i].Second < out[j].Second
		}
		return out[i].First < out[j].First
	})
	return out
}

// write counts tracked by the single assignment pass, as a set of the
// counts some path may have produced
const (
	countNone uint8 = 1 << iota
	countOne
	countMany
)

func countWrite(c uint8) uint8 {
	var out uint8
	if c&countNone != 0 {
		out |= countOne
	}
	if c&(countOne|countMany) != 0 {
		out |= countMany
	}
	return out
}

func sameCount(a, b uint8) bool   { return a == b }
func joinCount(a, b uint8) uint8 { return a | b }

// SingleStaticAssignment returns the variables of vars that are written
// exactly once before every read and on every path that leaves g, whether
// it leaves normally or by an exception. With no vars it checks every
// written variable.
func (a *Analyzer) SingleStaticAssignment(g *cfg.Graph, vars ...*ast.Variable) []*ast.Variable {
	if len(vars) == 0 {
		vars = a.WrittenVariables(g, 0, g.Size())
	}
	sg := a.exploreAll(g, "single-assignment")
	var out []*ast.Variable
	for _, v := range vars {
		entry := countNone
		if v.IsParameter() {
			entry = countOne
		}
		in, after := forward[uint8]{
			entry: entry,
			transfer: func(i int, in uint8) uint8 {
				if writes(sg.Instruction(i), v) {
					return countWrite(in)
				}
				return in
			},
			join:  joinCount,
			equal: sameCount,
		}.solve(sg)

		if singleAssignment(sg, v, in, after) {
			out = append(out, v)
		}
	}
	return out
}

func singleAssignment(sg *walk.StateGraph, v *ast.Variable, in, after []uint8) bool {
	written := false
	for i := 0; i < sg.Len(); i++ {
		if after[i]&countMany != 0 {
			return false
		}
		if writes(sg.Instruction(i), v) {
			written = true
		}
		if r, ok := sg.Instruction(i).(cfg.ReadVariable); ok && r.Var == v && in[i]&countNone != 0 {
			return false
		}
		if sg.Terminal(i) {
			continue
		}
		for _, e := range sg.Succ(i) {
			if sg.Terminal(e.To) && after[i]&countNone != 0 {
				return false
			}
		}
	}
	return written || v.IsParameter()
}
