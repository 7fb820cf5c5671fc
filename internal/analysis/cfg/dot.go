package cfg

import (
	"fmt"
	"io"
)

type EdgeKind uint8

const (
	EdgeNormal EdgeKind = iota
	EdgeJump
	EdgeReturn
	EdgeThrow
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeJump:
		return "jump"
	case EdgeReturn:
		return "return"
	case EdgeThrow:
		return "throw"
	default:
		return "normal"
	}
}

// Edge leads to To, which equals Size for the exit.
type Edge struct {
	To   int
	Kind EdgeKind
}

// Edges returns the successors of the instruction at off without tracking
// which Call entered a finally block: a Return without an override leads
// back to every one of its call sites.
func (g *Graph) Edges(off int) []Edge {
	if off < 0 || off >= len(g.instructions) {
		return nil
	}
	next := g.clamp(off + 1)
	switch i := g.instructions[off].(type) {
	case Goto:
		return []Edge{{g.clamp(i.Target), EdgeJump}}
	case ConditionalGoto:
		return []Edge{{next, EdgeNormal}, {g.clamp(i.Target), EdgeJump}}
	case ThrowTo:
		return []Edge{{g.clamp(i.Target), EdgeThrow}}
	case ConditionalThrowTo:
		return []Edge{{next, EdgeNormal}, {g.clamp(i.Target), EdgeThrow}}
	case Call:
		return []Edge{{g.clamp(i.ProcBegin), EdgeJump}}
	case Return:
		if i.Override >= 0 {
			return []Edge{{g.clamp(i.Override), EdgeReturn}}
		}
		var out []Edge
		for _, c := range g.calls[i.Proc] {
			out = append(out, Edge{g.clamp(c + 1), EdgeReturn})
		}
		return out
	}
	return []Edge{{next, EdgeNormal}}
}

func (g *Graph) clamp(off int) int {
	if off > len(g.instructions) || off < 0 {
		return len(g.instructions)
	}
	return off
}

// PrintDot writes the graph in Graphviz format. label names an offset; nil
// uses the instruction listing.
func (g *Graph) PrintDot(w io.Writer, label func(off int) string) error {
	if label == nil {
		label = func(off int) string {
			if off >= len(g.instructions) {
				return "EXIT"
			}
			return fmt.Sprintf("%d: %s", off, g.instructions[off])
		}
	}
	if _, err := fmt.Fprintf(w, "digraph mgraph {\n\tmode=\"heir\";\n\tsplines=\"ortho\";\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\t\"ENTRY\" -> %q\n", label(0)); err != nil {
		return err
	}
	for off := range g.instructions {
		for _, e := range g.Edges(off) {
			attr := ""
			if e.Kind != EdgeNormal {
				attr = fmt.Sprintf(" [label=%q]", e.Kind)
			}
			if _, err := fmt.Fprintf(w, "\t%q -> %q%s\n", label(off), label(e.To), attr); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
