package cfg

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/gnolang/cflow/ast"
)

// Graph is the control flow of one tree as a linear instruction sequence.
// It is immutable once built and safe for concurrent use.
type Graph struct {
	instructions []Instruction
	owners       []ast.Node
	nodes        []ast.Node
	starts       map[ast.Node]int
	ends         map[ast.Node]int
	subroutines  []Subroutine
	calls        map[int][]int
	blocks       map[ast.Node][2]int
	constant     bool
}

// Subroutine describes an emulated finally block.
type Subroutine struct {
	Block *ast.Block
	// Begin and End delimit the body.
	Begin, End int
	// Returns is the end of the dispatch Returns that follow the body.
	Returns int
	// Calls holds the offset of every Call into the body.
	Calls []int
}

func newGraph() *Graph {
	return &Graph{
		starts: make(map[ast.Node]int),
		ends:   make(map[ast.Node]int),
		calls:  make(map[int][]int),
		blocks: make(map[ast.Node][2]int),
	}
}

// Size returns the number of instructions.
func (g *Graph) Size() int { return len(g.instructions) }

// Instructions returns a copy of the instruction sequence.
func (g *Graph) Instructions() []Instruction {
	out := make([]Instruction, len(g.instructions))
	copy(out, g.instructions)
	return out
}

// Instruction returns the instruction at off.
func (g *Graph) Instruction(off int) Instruction { return g.instructions[off] }

// StartOffset returns the first offset of n, or -1 when n is not mapped.
func (g *Graph) StartOffset(n ast.Node) int {
	if off, ok := g.starts[n]; ok {
		return off
	}
	return -1
}

// EndOffset returns the offset just past n, or -1 when n is not mapped.
func (g *Graph) EndOffset(n ast.Node) int {
	if off, ok := g.ends[n]; ok {
		return off
	}
	return -1
}

// OwningNode returns the innermost node being built when the instruction at
// off was emitted.
func (g *Graph) OwningNode(off int) ast.Node {
	if off < 0 || off >= len(g.owners) {
		return nil
	}
	return g.owners[off]
}

// ConstantConditionOccurred reports whether construction folded a constant
// condition.
func (g *Graph) ConstantConditionOccurred() bool { return g.constant }

// Subroutines returns the finally blocks, innermost first.
func (g *Graph) Subroutines() []Subroutine { return g.subroutines }

// Calls returns the offsets of the Calls entering the subroutine that begins
// at procBegin.
func (g *Graph) Calls(procBegin int) []int { return g.calls[procBegin] }

// Nodes returns all mapped nodes in the order they were entered, so every
// node precedes its descendants.
func (g *Graph) Nodes() []ast.Node {
	return append([]ast.Node(nil), g.nodes...)
}

// BlockRanges returns the nested blocks that do not start the graph, with
// their [start, end) offsets.
func (g *Graph) BlockRanges() map[ast.Node][2]int {
	out := make(map[ast.Node][2]int, len(g.blocks))
	for n, r := range g.blocks {
		out[n] = r
	}
	return out
}

// SubRange returns the instructions [start, end) as a graph of their own.
// Targets are clamped into the range and rebased to start at 0; nodes that
// do not overlap the range are dropped.
func (g *Graph) SubRange(start, end int) *Graph {
	if start < 0 {
		start = 0
	}
	if end > len(g.instructions) {
		end = len(g.instructions)
	}
	if end < start {
		end = start
	}
	remap := func(off int) int {
		if off < start {
			off = start
		}
		if off > end {
			off = end
		}
		return off - start
	}

	sub := newGraph()
	sub.constant = g.constant
	sub.instructions = make([]Instruction, 0, end-start)
	for _, ins := range g.instructions[start:end] {
		sub.instructions = append(sub.instructions, withTarget(ins, remap))
	}
	sub.owners = append([]ast.Node(nil), g.owners[start:end]...)
	for _, n := range g.nodes {
		s, e := g.starts[n], g.ends[n]
		if e < start || s > end {
			continue
		}
		sub.nodes = append(sub.nodes, n)
		sub.starts[n] = remap(s)
		sub.ends[n] = remap(e)
	}
	for n, r := range g.blocks {
		if r[0] >= start && r[1] <= end {
			sub.blocks[n] = [2]int{r[0] - start, r[1] - start}
		}
	}
	for _, s := range g.subroutines {
		if s.Begin < start || s.Returns > end {
			continue
		}
		rs := Subroutine{Block: s.Block, Begin: s.Begin - start, End: s.End - start, Returns: s.Returns - start}
		for _, c := range s.Calls {
			if c >= start && c < end {
				rs.Calls = append(rs.Calls, c-start)
			}
		}
		sub.subroutines = append(sub.subroutines, rs)
		sub.calls[rs.Begin] = rs.Calls
	}
	return sub
}

// Fingerprint returns a BLAKE3 digest of the instruction listing. Graphs
// built from the same tree with the same policy and options share it.
func (g *Graph) Fingerprint() string {
	h := blake3.New()
	_ = g.Print(h)
	return hex.EncodeToString(h.Sum(nil))
}

// Print writes one line per instruction.
func (g *Graph) Print(w io.Writer) error {
	for off, ins := range g.instructions {
		if _, err := fmt.Fprintf(w, "%d: %s\n", off, ins); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) String() string {
	var sb strings.Builder
	_ = g.Print(&sb)
	return sb.String()
}
