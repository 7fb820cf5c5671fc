package lattice

import (
	"sort"
	"strings"

	"github.com/gnolang/cflow/ast"
)

// Assignment models whether a variable holds a value at some point.
type Assignment int

const (
	Bottom     Assignment = iota // unreachable
	Unassigned                   // no path writes the variable
	Assigned                     // every path writes the variable
	Maybe                        // some paths write the variable
	Top
)

func (v Assignment) String() string {
	switch v {
	case Bottom:
		return "Bottom"
	case Unassigned:
		return "Unassigned"
	case Assigned:
		return "Assigned"
	case Maybe:
		return "Maybe"
	case Top:
		return "Top"
	default:
		return "Unknown"
	}
}

// Join returns the least upper bound in the lattice.
func Join(a, b Assignment) Assignment {
	if a == Bottom {
		return b
	}
	if b == Bottom {
		return a
	}
	if a == Top || b == Top {
		return Top
	}
	if a == Maybe || b == Maybe {
		return Maybe
	}
	if a == b {
		return a
	}
	// Unassigned + Assigned.
	return Maybe
}

// Meet returns the greatest lower bound in the lattice.
func Meet(a, b Assignment) Assignment {
	if a == Bottom || b == Bottom {
		return Bottom
	}
	if a == Top {
		return b
	}
	if b == Top {
		return a
	}
	if a == b {
		return a
	}
	if a == Maybe && (b == Unassigned || b == Assigned) {
		return b
	}
	if b == Maybe && (a == Unassigned || a == Assigned) {
		return a
	}
	return Bottom
}

// State maps variables to their assignment status. Missing entries are
// Unassigned: analysis starts before any write.
type State map[*ast.Variable]Assignment

// Get returns the stored value. A nil state represents Bottom.
func Get(state State, v *ast.Variable) Assignment {
	if state == nil {
		return Bottom
	}
	if val, ok := state[v]; ok {
		return val
	}
	return Unassigned
}

// Set sets the entry or removes it when value is Unassigned.
func Set(state State, v *ast.Variable, value Assignment) {
	if state == nil {
		return
	}
	if value == Unassigned {
		delete(state, v)
		return
	}
	state[v] = value
}

// Clone returns a shallow copy of the state.
func Clone(state State) State {
	if state == nil {
		return nil
	}
	out := make(State, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// JoinStates merges two states using Join on each variable.
func JoinStates(a, b State) State {
	if a == nil {
		return Clone(b)
	}
	if b == nil {
		return Clone(a)
	}
	out := make(State)
	for v := range a {
		Set(out, v, Join(Get(a, v), Get(b, v)))
	}
	for v := range b {
		if _, ok := a[v]; ok {
			continue
		}
		Set(out, v, Join(Get(a, v), Get(b, v)))
	}
	return out
}

// Equal reports whether two states are identical.
func Equal(a, b State) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// VarSet is an immutable set of variables. The zero value is empty;
// With and Without return new sets and never modify the receiver.
type VarSet struct {
	m map[*ast.Variable]struct{}
}

func NewVarSet(vars ...*ast.Variable) VarSet {
	var s VarSet
	for _, v := range vars {
		s = s.With(v)
	}
	return s
}

func (s VarSet) Len() int { return len(s.m) }

func (s VarSet) Has(v *ast.Variable) bool {
	_, ok := s.m[v]
	return ok
}

func (s VarSet) With(v *ast.Variable) VarSet {
	if s.Has(v) {
		return s
	}
	m := make(map[*ast.Variable]struct{}, len(s.m)+1)
	for k := range s.m {
		m[k] = struct{}{}
	}
	m[v] = struct{}{}
	return VarSet{m}
}

func (s VarSet) Without(v *ast.Variable) VarSet {
	if !s.Has(v) {
		return s
	}
	m := make(map[*ast.Variable]struct{}, len(s.m))
	for k := range s.m {
		if k != v {
			m[k] = struct{}{}
		}
	}
	return VarSet{m}
}

// Union returns the variables in either set.
func (s VarSet) Union(o VarSet) VarSet {
	if o.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return o
	}
	if o.Subset(s) {
		return s
	}
	m := make(map[*ast.Variable]struct{}, len(s.m)+len(o.m))
	for v := range s.m {
		m[v] = struct{}{}
	}
	for v := range o.m {
		m[v] = struct{}{}
	}
	return VarSet{m}
}

// Subset reports whether every variable of s is in o.
func (s VarSet) Subset(o VarSet) bool {
	for v := range s.m {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

func (s VarSet) Equal(o VarSet) bool { return s.Len() == o.Len() && s.Subset(o) }

// Slice returns the variables ordered by name.
func (s VarSet) Slice() []*ast.Variable {
	out := make([]*ast.Variable, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s VarSet) String() string {
	names := make([]string, 0, len(s.m))
	for _, v := range s.Slice() {
		names = append(names, v.Name)
	}
	return "{" + strings.Join(names, ", ") + "}"
}
