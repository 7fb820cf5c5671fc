package lattice

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gnolang/cflow/ast"
)

// Sites maps variables to the sorted offsets where they were accessed. The
// zero value is empty. Put, Replace, Delete and Union never modify the
// receiver, and return it unchanged when the operation adds nothing, so
// merging at control flow joins does not copy in the common case.
type Sites struct {
	m map[*ast.Variable][]int
}

func (s Sites) Len() int { return len(s.m) }

func (s Sites) Has(v *ast.Variable) bool {
	_, ok := s.m[v]
	return ok
}

// Get returns the offsets of v in increasing order. The slice must not be
// modified.
func (s Sites) Get(v *ast.Variable) []int { return s.m[v] }

// Put adds off to the sites of v.
func (s Sites) Put(v *ast.Variable, off int) Sites {
	offs := s.m[v]
	k := sort.SearchInts(offs, off)
	if k < len(offs) && offs[k] == off {
		return s
	}
	next := make([]int, 0, len(offs)+1)
	next = append(next, offs[:k]...)
	next = append(next, off)
	next = append(next, offs[k:]...)
	return s.with(v, next)
}

// Replace makes off the only site of v.
func (s Sites) Replace(v *ast.Variable, off int) Sites {
	if offs := s.m[v]; len(offs) == 1 && offs[0] == off {
		return s
	}
	return s.with(v, []int{off})
}

func (s Sites) Delete(v *ast.Variable) Sites {
	if !s.Has(v) {
		return s
	}
	m := make(map[*ast.Variable][]int, len(s.m))
	for k, offs := range s.m {
		if k != v {
			m[k] = offs
		}
	}
	return Sites{m}
}

func (s Sites) with(v *ast.Variable, offs []int) Sites {
	m := make(map[*ast.Variable][]int, len(s.m)+1)
	for k, o := range s.m {
		m[k] = o
	}
	m[v] = offs
	return Sites{m}
}

// Union returns the sites in either map.
func (s Sites) Union(o Sites) Sites {
	if o.Subset(s) {
		return s
	}
	if s.Subset(o) {
		return o
	}
	m := make(map[*ast.Variable][]int, len(s.m)+len(o.m))
	for v, offs := range s.m {
		m[v] = offs
	}
	for v, offs := range o.m {
		m[v] = mergeSorted(m[v], offs)
	}
	return Sites{m}
}

func mergeSorted(a, b []int) []int {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Subset reports whether every site of s is in o.
func (s Sites) Subset(o Sites) bool {
	for v, offs := range s.m {
		other, ok := o.m[v]
		if !ok {
			return false
		}
		for _, off := range offs {
			k := sort.SearchInts(other, off)
			if k == len(other) || other[k] != off {
				return false
			}
		}
	}
	return true
}

func (s Sites) Equal(o Sites) bool {
	return s.Len() == o.Len() && s.Subset(o) && o.Subset(s)
}

// Vars returns the variables ordered by their first site, then by name.
func (s Sites) Vars() []*ast.Variable {
	out := make([]*ast.Variable, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.m[out[i]], s.m[out[j]]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s Sites) String() string {
	parts := make([]string, 0, len(s.m))
	for _, v := range s.Vars() {
		offs := make([]string, 0, len(s.m[v]))
		for _, off := range s.m[v] {
			offs = append(offs, strconv.Itoa(off))
		}
		parts = append(parts, v.Name+"@"+strings.Join(offs, ","))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
