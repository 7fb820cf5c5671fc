package dataflow

import "github.com/gnolang/cflow/internal/analysis/walk"

// backward describes a problem whose value at a state summarizes the paths
// below it.
type backward[T any] struct {
	bottom T
	// exit is the value of a terminal state.
	exit     func(i int) T
	transfer func(i int, below T) T
	// edge adjusts the value crossing e out of state i. Nil keeps it.
	edge  func(i int, e walk.Edge, v T) T
	join  func(a, b T) T
	equal func(a, b T) bool
}

func (p backward[T]) solve(sg *walk.StateGraph) []T {
	n := sg.Len()
	val := make([]T, n)
	queued := make([]bool, n)
	work := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if sg.Terminal(i) {
			val[i] = p.exit(i)
			continue
		}
		val[i] = p.bottom
		queued[i] = true
		work = append(work, i)
	}
	// states were discovered depth first, so popping from the end visits
	// them roughly bottom up
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false

		below := p.bottom
		for k, e := range sg.Succ(i) {
			v := val[e.To]
			if p.edge != nil {
				v = p.edge(i, e, v)
			}
			if k == 0 {
				below = v
			} else {
				below = p.join(below, v)
			}
		}
		out := p.transfer(i, below)
		if p.equal(out, val[i]) {
			continue
		}
		val[i] = out
		for _, e := range sg.Pred(i) {
			if !queued[e.To] {
				queued[e.To] = true
				work = append(work, e.To)
			}
		}
	}
	return val
}

// forward describes a problem whose value at a state summarizes the paths
// from the entry to it.
type forward[T any] struct {
	bottom   T
	entry    T
	transfer func(i int, in T) T
	// edge adjusts the value crossing e into state i. Nil keeps it.
	edge  func(i int, e walk.Edge, v T) T
	join  func(a, b T) T
	equal func(a, b T) bool
}

// solve returns the values entering and leaving every state.
func (p forward[T]) solve(sg *walk.StateGraph) (in, out []T) {
	n := sg.Len()
	in = make([]T, n)
	out = make([]T, n)
	queued := make([]bool, n)
	work := make([]int, 0, n)
	for i := 0; i < n; i++ {
		in[i], out[i] = p.bottom, p.bottom
		queued[i] = true
		work = append(work, i)
	}
	for len(work) > 0 {
		i := work[0]
		work = work[1:]
		queued[i] = false

		v := p.bottom
		if i == sg.Entry() {
			v = p.entry
		}
		for _, e := range sg.Pred(i) {
			pv := out[e.To]
			if p.edge != nil {
				pv = p.edge(i, e, pv)
			}
			v = p.join(v, pv)
		}
		in[i] = v
		next := p.transfer(i, v)
		if p.equal(next, out[i]) {
			continue
		}
		out[i] = next
		for _, e := range sg.Succ(i) {
			if !queued[e.To] {
				queued[e.To] = true
				work = append(work, e.To)
			}
		}
	}
	return in, out
}
