// Package dataflow answers reachability and variable flow questions about a
// built control flow graph.
//
// Every query explores the graph again through a walk.Walker and solves a
// fixpoint over the explored states. Nothing is cached between queries, so an
// Analyzer is safe for concurrent use once configured.
package dataflow

import (
	"go.uber.org/zap"

	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/walk"
)

// Analyzer runs dataflow passes over graphs.
type Analyzer struct {
	logger    *zap.Logger
	mode      walk.Mode
	maxDepth  int
	maxStates int
}

type Option func(*Analyzer)

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMode selects how subroutine calls are tracked. The default is
// walk.ModeStack.
func WithMode(m walk.Mode) Option { return func(a *Analyzer) { a.mode = m } }

func WithMaxDepth(n int) Option { return func(a *Analyzer) { a.maxDepth = n } }

func WithMaxStates(n int) Option { return func(a *Analyzer) { a.maxStates = n } }

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:    zap.NewNop(),
		mode:      walk.ModeStack,
		maxDepth:  walk.DefaultMaxDepth,
		maxStates: walk.DefaultMaxStates,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// explore walks g between from and to for the named pass. A walk that lost
// call stack precision is still used; its results over-approximate the
// paths of the program.
func (a *Analyzer) explore(g *cfg.Graph, from, to int, pass string) *walk.StateGraph {
	w := walk.New(g,
		walk.WithMode(a.mode),
		walk.WithMaxDepth(a.maxDepth),
		walk.WithMaxStates(a.maxStates),
		walk.WithLogger(a.logger.With(zap.String("pass", pass))),
	)
	return w.Explore(from, to)
}

func (a *Analyzer) exploreAll(g *cfg.Graph, pass string) *walk.StateGraph {
	return a.explore(g, 0, g.Size(), pass)
}

// Reachable reports whether some path from offset from arrives at offset to
// by at least one step. An offset reaches itself only through a loop.
func (a *Analyzer) Reachable(g *cfg.Graph, from, to int) bool {
	if from < 0 || from >= g.Size() {
		return false
	}
	sg := a.explore(g, from, g.Size(), "reachable")
	for i := 0; i < sg.Len(); i++ {
		for _, e := range sg.Succ(i) {
			if sg.State(e.To).Off == to {
				return true
			}
		}
	}
	return false
}

// Dominates reports whether every path from the entry to offset target
// passes offset candidate. An unreachable target is dominated by every
// offset.
func (a *Analyzer) Dominates(g *cfg.Graph, candidate, target int) bool {
	if candidate == target {
		return true
	}
	sg := a.exploreAll(g, "dominates")
	if !sg.Reached(target) {
		return true
	}
	entry := sg.Entry()
	if sg.State(entry).Off == candidate {
		return true
	}
	seen := make([]bool, sg.Len())
	seen[entry] = true
	queue := []int{entry}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, e := range sg.Succ(i) {
			off := sg.State(e.To).Off
			if off == candidate || seen[e.To] {
				continue
			}
			if off == target {
				return false
			}
			seen[e.To] = true
			queue = append(queue, e.To)
		}
	}
	return true
}

func or(a, b bool) bool        { return a || b }
func sameBool(a, b bool) bool { return a == b }
