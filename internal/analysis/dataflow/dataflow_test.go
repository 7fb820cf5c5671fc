package dataflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/lattice"
	"github.com/gnolang/cflow/internal/analysis/walk"
)

func build(t *testing.T, fn *ast.Function) *cfg.Graph {
	t.Helper()
	o := ast.NewBasicOracle()
	g, err := cfg.Build(context.Background(), fn, o, cfg.LocalsPolicy(o), cfg.DefaultOptions())
	require.NoError(t, err)
	return g
}

// branches builds
//
//	f(c) { int v; if (c) v = 1; else v = 2; use(v) }
//
// or, without withElse, the same function with no else branch. The listing
// with the else branch is
//
//	0: EMPTY
//	1: READ c
//	2: COND_GOTO [ELSE] 5
//	3: WRITE v
//	4: GOTO [END] 6
//	5: WRITE v
//	6: READ v
//	7: EMPTY
func branches(withElse bool) (fn *ast.Function, v *ast.Variable, use ast.Stmt) {
	c := ast.NewParam("c")
	v = ast.NewLocal("v")
	cond := &ast.If{Cond: ast.Ref(c), Then: ast.Seq(ast.Set(v, ast.IntLit(1)))}
	if withElse {
		cond.Else = ast.Seq(ast.Set(v, ast.IntLit(2)))
	}
	use = ast.Eval(ast.Invoke("use", ast.Ref(v)))
	fn = ast.NewFunction("f", []*ast.Variable{c}, ast.Let(v, nil), cond, use)
	return fn, v, use
}

func TestDefiniteAssignment(t *testing.T) {
	t.Parallel()

	a := New()

	t.Run("both branches write", func(t *testing.T) {
		fn, v, use := branches(true)
		g := build(t, fn)
		at := g.StartOffset(use)
		require.Equal(t, 6, at)

		assert.True(t, a.DefinitelyAssignedAt(g, v, at))
		assert.True(t, a.DefinitelyAssigned(g, v))
		assert.False(t, a.DefinitelyNotAssigned(g, v))
		assert.True(t, a.DefinitelyNotAssignedAt(g, v, 1))
		assert.False(t, a.DefinitelyNotAssignedAt(g, v, at))
		assert.Empty(t, a.ReadBeforeWrite(g))
	})

	t.Run("one branch writes", func(t *testing.T) {
		fn, v, use := branches(false)
		g := build(t, fn)
		at := g.StartOffset(use)

		assert.False(t, a.DefinitelyAssignedAt(g, v, at))
		assert.False(t, a.DefinitelyAssigned(g, v))
		assert.False(t, a.DefinitelyNotAssignedAt(g, v, at))

		reads := a.ReadBeforeWrite(g)
		require.Len(t, reads, 1)
		assert.Same(t, v, reads[0].Var)
		assert.Equal(t, at, reads[0].Off)
		assert.IsType(t, &ast.Ident{}, reads[0].Node)
	})

	t.Run("parameters are assigned on entry", func(t *testing.T) {
		fn, _, _ := branches(true)
		c := fn.Params[0]
		g := build(t, fn)
		assert.True(t, a.DefinitelyAssignedAt(g, c, 1))
		assert.False(t, a.DefinitelyNotAssignedAt(g, c, 1))
	})

	t.Run("unreached offsets are vacuous", func(t *testing.T) {
		v := ast.NewLocal("v")
		fn := ast.NewFunction("f", nil, ast.Let(v, nil), &ast.Return{}, ast.Set(v, ast.IntLit(1)))
		g := build(t, fn)
		assert.True(t, a.DefinitelyAssignedAt(g, v, g.Size()-1))
	})
}

func TestAssignments(t *testing.T) {
	t.Parallel()

	a := New()

	fn, v, use := branches(true)
	c := fn.Params[0]
	g := build(t, fn)
	state := a.Assignments(g, g.StartOffset(use))
	assert.Equal(t, lattice.Assigned, lattice.Get(state, v))
	assert.Equal(t, lattice.Assigned, lattice.Get(state, c))

	entry := a.Assignments(g, 0)
	assert.Equal(t, lattice.Unassigned, lattice.Get(entry, v))

	fn, v, use = branches(false)
	g = build(t, fn)
	state = a.Assignments(g, g.StartOffset(use))
	assert.Equal(t, lattice.Maybe, lattice.Get(state, v))
}

func TestFinallyPrecision(t *testing.T) {
	t.Parallel()

	v := ast.NewLocal("v")
	use := ast.Eval(ast.Invoke("use", ast.Ref(v)))
	fn := ast.NewFunction("f", nil,
		ast.Let(v, nil),
		&ast.Try{
			Body:    ast.Seq(ast.Set(v, ast.IntLit(1))),
			Finally: ast.Seq(ast.Eval(ast.Invoke("cleanup"))),
		},
		use,
	)
	g := build(t, fn)
	at := g.StartOffset(use)
	require.NotEqual(t, -1, at)

	// only the normal completion of the try body resumes after the finally
	// block, and it always writes v
	assert.True(t, New().DefinitelyAssignedAt(g, v, at))

	// without the call stack every completion resumes everywhere
	assert.False(t, New(WithMode(walk.ModeOffset)).DefinitelyAssignedAt(g, v, at))
}

func TestExitsRunFinally(t *testing.T) {
	t.Parallel()

	x := ast.NewLocal("x")
	ret := &ast.Return{}
	fn := ast.NewFunction("f", nil,
		ast.Let(x, nil),
		&ast.Try{
			Body:    ast.Seq(ast.Set(x, ast.IntLit(1)), ast.Eval(ast.Invoke("risky")), ret),
			Finally: ast.Seq(ast.Eval(ast.Invoke("cleanup"))),
		},
	)
	g := build(t, fn)
	require.Len(t, g.Subroutines(), 1)
	sub := g.Subroutines()[0]

	// the return enters the finally block instead of leaving the function
	ins := g.Instructions()
	jump, ok := ins[g.StartOffset(ret)].(cfg.Goto)
	require.True(t, ok, "return compiles to %v", ins[g.StartOffset(ret)])
	call, ok := ins[jump.Target].(cfg.Call)
	require.True(t, ok, "return jumps to %v", ins[jump.Target])
	assert.Equal(t, cfg.ReturnStatement, call.Reason)
	assert.Equal(t, sub.Begin, call.ProcBegin)

	// exits counts the exit edges reachable from the entry without passing
	// through a skipped offset
	sg := walk.New(g).Explore(0, g.Size())
	exits := func(skip func(off int) bool) int {
		n := 0
		seen := map[int]bool{sg.Entry(): true}
		queue := []int{sg.Entry()}
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, e := range sg.Succ(i) {
				switch {
				case sg.Terminal(e.To):
					n++
				case seen[e.To] || skip(sg.State(e.To).Off):
				default:
					seen[e.To] = true
					queue = append(queue, e.To)
				}
			}
		}
		return n
	}
	assert.Positive(t, exits(func(int) bool { return false }))
	assert.Zero(t, exits(func(off int) bool { return off >= sub.Begin && off < sub.End }))
}

func TestReachableAndDominates(t *testing.T) {
	t.Parallel()

	fn, _, _ := branches(true)
	g := build(t, fn)
	a := New()

	assert.True(t, a.Reachable(g, 3, 6))
	assert.False(t, a.Reachable(g, 3, 5), "the then branch skips the else branch")
	assert.False(t, a.Reachable(g, 0, 0), "no loop leads back to the entry")
	assert.True(t, a.Reachable(g, 0, g.Size()))
	assert.False(t, a.Reachable(g, -1, 3))

	assert.True(t, a.Dominates(g, 1, 6))
	assert.True(t, a.Dominates(g, 6, 6))
	assert.False(t, a.Dominates(g, 3, 6))
	assert.False(t, a.Dominates(g, 5, 6))
	assert.True(t, a.Dominates(g, 2, 3))
}

// sequence builds
//
//	f(c) { int x = 1; int y = 1; y = 2; int z; if (c) z = 3; use(x, y, z) }
//
// whose listing is
//
//	0: WRITE x
//	1: WRITE y
//	2: WRITE y
//	3: EMPTY
//	4: READ c
//	5: COND_GOTO [END] 7
//	6: WRITE z
//	7: READ x
//	8: READ y
//	9: READ z
//	10: EMPTY
func sequence() (fn *ast.Function, x, y, z *ast.Variable) {
	c := ast.NewParam("c")
	x, y, z = ast.NewLocal("x"), ast.NewLocal("y"), ast.NewLocal("z")
	fn = ast.NewFunction("f", []*ast.Variable{c},
		ast.Let(x, ast.IntLit(1)),
		ast.Let(y, ast.IntLit(1)),
		ast.Set(y, ast.IntLit(2)),
		ast.Let(z, nil),
		&ast.If{Cond: ast.Ref(c), Then: ast.Seq(ast.Set(z, ast.IntLit(3)))},
		ast.Eval(ast.Invoke("use", ast.Ref(x), ast.Ref(y), ast.Ref(z))),
	)
	return fn, x, y, z
}

func loop() (*ast.Function, *ast.Variable) {
	c := ast.NewParam("c")
	n := ast.NewLocal("n")
	fn := ast.NewFunction("f", []*ast.Variable{c},
		ast.Let(n, nil),
		&ast.While{Cond: ast.Ref(c), Body: ast.Seq(ast.Set(n, ast.IntLit(1)))},
	)
	return fn, n
}

func TestSingleStaticAssignment(t *testing.T) {
	t.Parallel()

	a := New()

	fn, x, _, _ := sequence()
	g := build(t, fn)
	assert.Equal(t, []*ast.Variable{x}, a.SingleStaticAssignment(g))

	c := fn.Params[0]
	assert.Equal(t, []*ast.Variable{c}, a.SingleStaticAssignment(g, c))

	fn, _ = loop()
	g = build(t, fn)
	assert.Empty(t, a.SingleStaticAssignment(g))
}

func TestSingleStaticAssignmentCountsThrowExits(t *testing.T) {
	t.Parallel()

	ioErr := &ast.Type{Name: "IOException"}
	guarded := func(bail ast.Stmt) (*ast.Function, *ast.Variable) {
		c := ast.NewParam("c")
		x := ast.NewLocal("x")
		fn := ast.NewFunction("f", []*ast.Variable{c},
			ast.Let(x, nil),
			&ast.If{Cond: ast.Ref(c), Then: bail},
			ast.Set(x, ast.IntLit(1)),
			ast.Eval(ast.Invoke("use", ast.Ref(x))),
		)
		return fn, x
	}

	a := New()

	fn, x := guarded(ast.Eval(ast.Invoke("log")))
	assert.Equal(t, []*ast.Variable{x}, a.SingleStaticAssignment(build(t, fn), x))

	// only the throw leaves before x is written
	fn, x = guarded(&ast.Throw{X: &ast.New{Type: ioErr}})
	assert.Empty(t, a.SingleStaticAssignment(build(t, fn), x))
}

func TestInitializedTwice(t *testing.T) {
	t.Parallel()

	a := New()

	fn, _, y, _ := sequence()
	g := build(t, fn)
	twice := a.InitializedTwice(g)
	require.Len(t, twice, 1)
	assert.Same(t, y, twice[0].Var)
	assert.Equal(t, 1, twice[0].First)
	assert.Equal(t, 2, twice[0].Second)
	assert.False(t, twice[0].Loop)
	assert.IsType(t, &ast.Assign{}, twice[0].Node)

	fn, n := loop()
	g = build(t, fn)
	twice = a.InitializedTwice(g)
	require.Len(t, twice, 1)
	assert.Same(t, n, twice[0].Var)
	assert.Equal(t, twice[0].First, twice[0].Second)
	assert.True(t, twice[0].Loop)

	assert.True(t, a.AssignedInLoop(g, n))
	fn, v, _ := branches(true)
	assert.False(t, a.AssignedInLoop(build(t, fn), v))
}

func TestCompletion(t *testing.T) {
	t.Parallel()

	c := ast.NewParam("c")
	tests := []struct {
		name          string
		body          []ast.Stmt
		params        []*ast.Variable
		completes     bool
		returnPresent bool
	}{
		{
			name:          "return",
			body:          []ast.Stmt{&ast.Return{}},
			returnPresent: true,
		},
		{
			name:      "plain",
			body:      []ast.Stmt{ast.Eval(ast.Invoke("a"))},
			completes: true,
		},
		{
			name:      "conditional return",
			params:    []*ast.Variable{c},
			body:      []ast.Stmt{&ast.If{Cond: ast.Ref(c), Then: ast.Seq(&ast.Return{})}},
			completes: true,
		},
		{
			name:          "endless loop",
			body:          []ast.Stmt{&ast.While{Cond: ast.BoolLit(true), Body: ast.Seq(ast.Eval(ast.Invoke("a")))}},
			returnPresent: true,
		},
		{
			name:          "throw",
			body:          []ast.Stmt{&ast.Throw{X: &ast.New{Type: &ast.Type{Name: "Error"}}}},
			returnPresent: true,
		},
		{
			name:      "break out of a loop",
			params:    []*ast.Variable{c},
			body:      []ast.Stmt{&ast.DoWhile{Body: ast.Seq(&ast.Break{}), Cond: ast.Ref(c)}},
			completes: true,
		},
	}
	a := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, ast.NewFunction("f", tt.params, tt.body...))
			assert.Equal(t, tt.completes, a.CanCompleteNormally(g, 0, g.Size()))
			assert.Equal(t, tt.returnPresent, a.ReturnPresent(g))
		})
	}
}

func TestCanCompleteNormallyRange(t *testing.T) {
	t.Parallel()

	body := ast.Seq(&ast.Break{})
	fn := ast.NewFunction("f", []*ast.Variable{ast.NewParam("c")},
		&ast.DoWhile{Body: body, Cond: ast.Name("c")},
	)
	g := build(t, fn)
	a := New()

	// the break leaves the loop, past the end of the body
	assert.False(t, a.CanCompleteNormally(g, g.StartOffset(body), g.EndOffset(body)))
	assert.True(t, a.CanCompleteNormally(g, 3, 3))
}

func TestUnreachableStatement(t *testing.T) {
	t.Parallel()

	a := New()

	t.Run("after return", func(t *testing.T) {
		x := ast.NewLocal("x")
		dead := ast.Set(x, ast.IntLit(1))
		g := build(t, ast.NewFunction("f", nil, ast.Let(x, nil), &ast.Return{}, dead))
		assert.Same(t, dead, a.UnreachableStatement(g))
	})

	t.Run("outermost statement", func(t *testing.T) {
		c := ast.NewParam("c")
		dead := &ast.If{Cond: ast.Ref(c), Then: ast.Seq(ast.Eval(ast.Invoke("a")))}
		g := build(t, ast.NewFunction("f", []*ast.Variable{c}, &ast.Return{}, dead))
		assert.Same(t, dead, a.UnreachableStatement(g))
	})

	t.Run("code generated for finally", func(t *testing.T) {
		fn := ast.NewFunction("f", nil, &ast.Try{
			Body:    ast.Seq(&ast.Return{}),
			Finally: ast.Seq(ast.Eval(ast.Invoke("cleanup"))),
		})
		assert.Nil(t, a.UnreachableStatement(build(t, fn)))
	})

	t.Run("none", func(t *testing.T) {
		fn, _, _ := branches(true)
		assert.Nil(t, a.UnreachableStatement(build(t, fn)))
	})
}

func TestVariables(t *testing.T) {
	t.Parallel()

	fn, v, use := branches(true)
	c := fn.Params[0]
	g := build(t, fn)
	a := New()

	assert.Equal(t, []*ast.Variable{v}, a.WrittenVariables(g, 0, g.Size()))
	assert.Equal(t, []*ast.Variable{c, v}, a.UsedVariables(g, 0, g.Size()))
	assert.Empty(t, a.UsedVariables(g, 0, 1))

	// the then branch overwrites v before anything reads it
	assert.Empty(t, a.InputVariables(g, 3, 4))
	at := g.StartOffset(use)
	assert.Equal(t, []*ast.Variable{v}, a.InputVariables(g, at, g.EndOffset(use)))

	exits := a.ExitPoints(g, 1, at)
	assert.Equal(t, []int{at}, exits)
	assert.Equal(t, []int{at}, a.ExitPoints(g, 3, 4), "gotos are followed to where control lands")
	assert.Equal(t, []int{2}, a.ExitPoints(g, 2, 2))

	assert.Equal(t, []*ast.Variable{v}, a.OutputVariables(g, 1, at, exits))
	assert.Empty(t, a.OutputVariables(g, at, g.Size(), []int{g.Size()}))
}

func TestOverflowIsLogged(t *testing.T) {
	t.Parallel()

	inner := &ast.Try{
		Body:    ast.Seq(ast.Eval(ast.Invoke("close"))),
		Finally: ast.Seq(ast.Eval(ast.Invoke("release"))),
	}
	fn := ast.NewFunction("f", nil, &ast.Try{
		Body:    ast.Seq(ast.Eval(ast.Invoke("open"))),
		Finally: ast.Seq(inner),
	})
	g := build(t, fn)

	core, logs := observer.New(zap.WarnLevel)
	a := New(WithMaxDepth(1), WithLogger(zap.New(core)))
	assert.False(t, a.ReturnPresent(g), "the conservative walk still completes normally")
	assert.Equal(t, 1, logs.FilterField(zap.String("pass", "return-present")).Len())

	core, logs = observer.New(zap.WarnLevel)
	New(WithLogger(zap.New(core))).ReturnPresent(g)
	assert.Zero(t, logs.Len())
}
