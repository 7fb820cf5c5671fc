// Package walk traverses a control flow graph the way it would execute,
// matching every Return of a finally block with the Call that entered it.
package walk

import (
	"go.uber.org/zap"

	"github.com/gnolang/cflow/internal/analysis/cfg"
)

// Mode selects how precisely the walker tracks subroutine calls.
type Mode uint8

const (
	// ModeStack keys states by offset and call stack. A Return resumes
	// only after the Call that entered its block.
	ModeStack Mode = iota
	// ModeOffset keys states by offset alone. A Return without an
	// override resumes after every Call of its block.
	ModeOffset
)

func (m Mode) String() string {
	if m == ModeOffset {
		return "offset"
	}
	return "stack"
}

const (
	// DefaultMaxDepth bounds the call stack. Finally blocks nest only as
	// deep as the source does, so hitting the bound means the input is
	// pathological.
	DefaultMaxDepth = 32
	// DefaultMaxStates bounds the states of one exploration in ModeStack.
	DefaultMaxStates = 1 << 20
)

// State is a point of execution.
type State struct {
	Off   int
	Stack *Stack
}

// Step is a successor of a state.
type Step struct {
	State
	Kind cfg.EdgeKind
}

// Successors returns the states that follow off when it executes with
// stack. Jump targets outside the graph are clamped to its exit.
func Successors(g *cfg.Graph, off int, stack *Stack, mode Mode) []Step {
	push := func(s *Stack, f Frame) (*Stack, bool) { return s.Push(f), true }
	return successors(g, off, stack, mode, push)
}

type pushFunc func(*Stack, Frame) (*Stack, bool)

func successors(g *cfg.Graph, off int, s *Stack, mode Mode, push pushFunc) []Step {
	size := g.Size()
	if off < 0 || off >= size {
		return nil
	}
	clamp := func(t int) int {
		if t < 0 || t > size {
			return size
		}
		return t
	}
	if mode == ModeOffset {
		s = nil
	}
	step := func(to int, st *Stack, kind cfg.EdgeKind) Step {
		return Step{State{clamp(to), st}, kind}
	}

	switch i := g.Instruction(off).(type) {
	case cfg.Goto:
		return []Step{step(i.Target, s, cfg.EdgeJump)}
	case cfg.ConditionalGoto:
		return []Step{step(off+1, s, cfg.EdgeNormal), step(i.Target, s, cfg.EdgeJump)}
	case cfg.ThrowTo:
		return []Step{step(i.Target, s, cfg.EdgeThrow)}
	case cfg.ConditionalThrowTo:
		return []Step{step(off+1, s, cfg.EdgeNormal), step(i.Target, s, cfg.EdgeThrow)}
	case cfg.Call:
		if mode == ModeOffset {
			return []Step{step(i.ProcBegin, nil, cfg.EdgeJump)}
		}
		next, ok := push(s, Frame{Call: off, Proc: i.ProcBegin})
		if !ok {
			next = s
		}
		return []Step{step(i.ProcBegin, next, cfg.EdgeJump)}
	case cfg.Return:
		frame, below, found := s.Unwind(i.Proc)
		if i.Override >= 0 {
			return []Step{step(i.Override, below, cfg.EdgeReturn)}
		}
		if found {
			return []Step{step(frame.Call+1, below, cfg.EdgeReturn)}
		}
		calls := g.Calls(i.Proc)
		out := make([]Step, 0, len(calls))
		for _, c := range calls {
			out = append(out, step(c+1, s, cfg.EdgeReturn))
		}
		return out
	}
	return []Step{step(off+1, s, cfg.EdgeNormal)}
}

// Walker explores the states of one graph.
type Walker struct {
	g         *cfg.Graph
	mode      Mode
	maxDepth  int
	maxStates int
	logger    *zap.Logger
}

type Option func(*Walker)

func WithMode(m Mode) Option { return func(w *Walker) { w.mode = m } }

func WithMaxDepth(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxDepth = n
		}
	}
}

func WithMaxStates(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxStates = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

func New(g *cfg.Graph, opts ...Option) *Walker {
	w := &Walker{
		g:         g,
		mode:      ModeStack,
		maxDepth:  DefaultMaxDepth,
		maxStates: DefaultMaxStates,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Walker) Graph() *cfg.Graph { return w.g }

// Explore returns every state reachable from offset from. Offsets at or
// past to are terminal: they have no successors and no call stack.
func (w *Walker) Explore(from, to int) *StateGraph {
	if to > w.g.Size() || to < 0 {
		to = w.g.Size()
	}
	sg, complete := w.explore(from, to, w.mode)
	if complete {
		return sg
	}
	w.logger.Warn("state budget exhausted, falling back to offset mode",
		zap.Int("from", from),
		zap.Int("to", to),
		zap.Int("states", sg.Len()),
	)
	sg, _ = w.explore(from, to, ModeOffset)
	sg.overflowed = true
	return sg
}

type stateKey struct {
	off   int
	stack *Stack
}

func (w *Walker) explore(from, to int, mode Mode) (*StateGraph, bool) {
	sg := &StateGraph{
		g:     w.g,
		from:  from,
		to:    to,
		mode:  mode,
		byOff: make(map[int][]int),
	}
	index := make(map[stateKey]int)
	sp := make(spines)
	warned := false
	push := func(s *Stack, f Frame) (*Stack, bool) {
		if s.Depth() >= w.maxDepth {
			sg.overflowed = true
			if !warned {
				warned = true
				w.logger.Warn("call stack overflow, treating finally block as context free",
					zap.Int("call", f.Call),
					zap.Int("depth", s.Depth()),
				)
			}
			return s, false
		}
		return sp.push(s, f), true
	}

	intern := func(st State) (int, bool) {
		if st.Off >= to {
			st.Stack = nil
		}
		k := stateKey{st.Off, st.Stack}
		if i, ok := index[k]; ok {
			return i, false
		}
		i := len(sg.states)
		index[k] = i
		sg.states = append(sg.states, st)
		sg.succ = append(sg.succ, nil)
		sg.pred = append(sg.pred, nil)
		sg.byOff[st.Off] = append(sg.byOff[st.Off], i)
		return i, true
	}

	if from < 0 {
		from = 0
	}
	entry, _ := intern(State{Off: from})
	work := []int{entry}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		st := sg.states[i]
		if st.Off >= to {
			continue
		}
		if mode == ModeStack && len(sg.states) > w.maxStates {
			return sg, false
		}
		for _, step := range successors(w.g, st.Off, st.Stack, mode, push) {
			j, fresh := intern(step.State)
			sg.succ[i] = append(sg.succ[i], Edge{To: j, Kind: step.Kind})
			sg.pred[j] = append(sg.pred[j], Edge{To: i, Kind: step.Kind})
			if fresh {
				work = append(work, j)
			}
		}
	}
	return sg, true
}

// Walk calls visit for every state reachable from offset from, in depth
// first order, until visit returns false.
func (w *Walker) Walk(from, to int, visit func(State) bool) {
	sg := w.Explore(from, to)
	seen := make([]bool, sg.Len())
	stack := []int{sg.Entry()}
	seen[sg.Entry()] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(sg.states[i]) {
			return
		}
		succ := sg.succ[i]
		for k := len(succ) - 1; k >= 0; k-- {
			if j := succ[k].To; !seen[j] {
				seen[j] = true
				stack = append(stack, j)
			}
		}
	}
}
