package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnolang/cflow/ast"
)

func TestJoinMeet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b       Assignment
		join, meet Assignment
	}{
		{Bottom, Assigned, Assigned, Bottom},
		{Unassigned, Assigned, Maybe, Bottom},
		{Assigned, Assigned, Assigned, Assigned},
		{Maybe, Assigned, Maybe, Assigned},
		{Top, Unassigned, Top, Unassigned},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"/"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.join, Join(tt.a, tt.b))
			assert.Equal(t, tt.join, Join(tt.b, tt.a))
			assert.Equal(t, tt.meet, Meet(tt.a, tt.b))
			assert.Equal(t, tt.meet, Meet(tt.b, tt.a))
		})
	}
}

func TestJoinStates(t *testing.T) {
	t.Parallel()

	x, y := ast.NewLocal("x"), ast.NewLocal("y")
	a := State{x: Assigned}
	b := State{x: Assigned, y: Assigned}

	out := JoinStates(a, b)
	assert.Equal(t, Assigned, Get(out, x))
	assert.Equal(t, Maybe, Get(out, y))
	assert.Equal(t, Bottom, Get(nil, x))
	assert.True(t, Equal(JoinStates(nil, a), a))

	Set(out, y, Unassigned)
	assert.Len(t, out, 1)
}

func TestVarSet(t *testing.T) {
	t.Parallel()

	x, y := ast.NewLocal("x"), ast.NewLocal("y")
	s := NewVarSet(y, x)
	assert.Equal(t, "{x, y}", s.String())

	without := s.Without(x)
	assert.True(t, s.Has(x), "Without must not modify the receiver")
	assert.False(t, without.Has(x))

	assert.True(t, without.Subset(s))
	assert.True(t, s.Union(without).Equal(s))
}

func TestSitesPut(t *testing.T) {
	t.Parallel()

	x := ast.NewLocal("x")
	var s Sites
	a := s.Put(x, 7).Put(x, 3).Put(x, 5)
	assert.Equal(t, []int{3, 5, 7}, a.Get(x))
	assert.Equal(t, 0, s.Len())

	b := a.Put(x, 5)
	assert.Equal(t, a, b, "putting a present site returns the receiver")

	r := a.Replace(x, 9)
	assert.Equal(t, []int{9}, r.Get(x))
	assert.Equal(t, []int{3, 5, 7}, a.Get(x))

	d := a.Delete(x)
	assert.False(t, d.Has(x))
	assert.True(t, a.Has(x))
}

func TestSitesUnion(t *testing.T) {
	t.Parallel()

	x, y := ast.NewLocal("x"), ast.NewLocal("y")
	var empty Sites
	a := empty.Put(x, 1).Put(x, 4)
	b := empty.Put(x, 2).Put(y, 8)

	u := a.Union(b)
	assert.Equal(t, []int{1, 2, 4}, u.Get(x))
	assert.Equal(t, []int{8}, u.Get(y))
	assert.Equal(t, "{x@1,2,4 y@8}", u.String())
	assert.Equal(t, []*ast.Variable{x, y}, u.Vars())

	// no copy when one side already covers the other
	assert.Equal(t, u, u.Union(a))
	assert.Equal(t, u, a.Union(u))
	assert.True(t, a.Subset(u))
	assert.False(t, u.Subset(a))
	assert.True(t, u.Equal(b.Union(a)))
}
