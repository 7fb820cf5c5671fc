package walk

import (
	"sort"

	"github.com/gnolang/cflow/internal/analysis/cfg"
)

// Edge links two states of a StateGraph. In a predecessor list To is the
// source state.
type Edge struct {
	To   int
	Kind cfg.EdgeKind
}

// StateGraph holds the explored states of one walk. State 0 is the entry.
type StateGraph struct {
	g          *cfg.Graph
	from, to   int
	mode       Mode
	states     []State
	succ       [][]Edge
	pred       [][]Edge
	byOff      map[int][]int
	overflowed bool
}

func (sg *StateGraph) Graph() *cfg.Graph { return sg.g }
func (sg *StateGraph) From() int         { return sg.from }
func (sg *StateGraph) To() int           { return sg.to }
func (sg *StateGraph) Mode() Mode        { return sg.mode }
func (sg *StateGraph) Len() int          { return len(sg.states) }
func (sg *StateGraph) Entry() int        { return 0 }

func (sg *StateGraph) State(i int) State { return sg.states[i] }
func (sg *StateGraph) Succ(i int) []Edge { return sg.succ[i] }
func (sg *StateGraph) Pred(i int) []Edge { return sg.pred[i] }

// Terminal reports whether state i lies at or past the end of the walk.
func (sg *StateGraph) Terminal(i int) bool { return sg.states[i].Off >= sg.to }

// Instruction returns the instruction of state i, or nil for a terminal
// state.
func (sg *StateGraph) Instruction(i int) cfg.Instruction {
	if sg.Terminal(i) {
		return nil
	}
	return sg.g.Instruction(sg.states[i].Off)
}

// At returns the states at offset off.
func (sg *StateGraph) At(off int) []int { return sg.byOff[off] }

// Reached reports whether some state lies at off.
func (sg *StateGraph) Reached(off int) bool { return len(sg.byOff[off]) > 0 }

// Offsets returns the reached offsets in increasing order.
func (sg *StateGraph) Offsets() []int {
	out := make([]int, 0, len(sg.byOff))
	for off := range sg.byOff {
		out = append(out, off)
	}
	sort.Ints(out)
	return out
}

// Overflowed reports whether the walk lost call stack precision, either
// because a stack grew past the depth bound or because the state budget
// ran out. Results derived from an overflowed walk are conservative.
func (sg *StateGraph) Overflowed() bool { return sg.overflowed }
