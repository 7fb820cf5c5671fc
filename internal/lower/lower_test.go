package lower

import (
	"context"
	"errors"
	goast "go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/dataflow"
)

func lowerFunc(t *testing.T, src string) *ast.Function {
	t.Helper()
	unit, err := Source("test.go", []byte("package main\n\n"+src))
	require.NoError(t, err)
	require.Len(t, unit.Functions, 1)
	return unit.Functions[0]
}

func buildFunc(t *testing.T, fn *ast.Function) *cfg.Graph {
	t.Helper()
	o := ast.NewBasicOracle(PanicType)
	g, err := cfg.Build(context.Background(), fn, o, cfg.LocalsPolicy(o), cfg.DefaultOptions())
	require.NoError(t, err)
	return g
}

func parseBody(t *testing.T, body string) *goast.FuncDecl {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "test.go", "package main\n\nfunc f() {\n"+body+"\n}\n", 0)
	require.NoError(t, err)
	return f.Decls[0].(*goast.FuncDecl)
}

func TestSourceWithoutFunctions(t *testing.T) {
	_, err := Source("test.go", []byte("package main\n\nvar x = 1\n"))
	assert.ErrorIs(t, err, ErrNoFunctions)

	_, err = Source("test.go", []byte("package main\n\nfunc broken( {\n"))
	assert.Error(t, err)
}

func TestFunctionSignature(t *testing.T) {
	fn := lowerFunc(t, `
type T struct{}

func (t *T) Get(a, b int, _ string) (n int) {
	return a + b
}`)
	assert.Equal(t, "T.Get", fn.Name)
	assert.True(t, fn.Results)

	names := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		names = append(names, p.Name)
		assert.Equal(t, ast.KindParam, p.Kind)
		assert.Equal(t, fn, p.Decl)
	}
	assert.Equal(t, []string{"t", "a", "b"}, names)

	// the named result starts at its zero value
	decl, ok := fn.Body.Stmts[0].(*ast.DeclStmt)
	require.True(t, ok)
	assert.Equal(t, "n", decl.Vars[0].Var.Name)
	assert.Equal(t, int64(0), decl.Vars[0].Init.(*ast.Literal).Value)
}

func TestPositions(t *testing.T) {
	fn := lowerFunc(t, `
func f() {
	x := 1
	_ = x
}`)
	assert.Equal(t, ast.Position{Filename: "test.go", Line: 4, Column: 6}, fn.Pos)

	decl := fn.Body.Stmts[0].(*ast.DeclStmt)
	assert.Equal(t, 5, decl.Pos.Line)
	assert.Equal(t, 2, decl.Pos.Column)
	assert.Equal(t, 5, decl.Vars[0].Pos.Line)
}

func TestShortVariableRedeclaration(t *testing.T) {
	fn := lowerFunc(t, `
func f() {
	a, err := g()
	b, err := g()
	use(a, b, err)
}`)
	stmts := fn.Body.Stmts
	require.Len(t, stmts, 5)

	var declared []string
	for _, s := range stmts {
		if d, ok := s.(*ast.DeclStmt); ok {
			declared = append(declared, d.Vars[0].Var.Name)
		}
	}
	assert.Equal(t, []string{"a", "err", "b"}, declared)

	// the second err is an assignment to the first
	set, ok := stmts[3].(*ast.ExprStmt)
	require.True(t, ok)
	target := set.X.(*ast.Assign).Target.(*ast.Ident)
	assert.Equal(t, stmts[1].(*ast.DeclStmt).Vars[0].Var, target.Decl)
}

func TestShadowingInNestedBlock(t *testing.T) {
	fn := lowerFunc(t, `
func f() {
	x := 1
	if true {
		x := 2
		use(x)
	}
	use(x)
}`)
	outer := fn.Body.Stmts[0].(*ast.DeclStmt).Vars[0].Var
	inner := fn.Body.Stmts[1].(*ast.If).Then.(*ast.Block).Stmts[0].(*ast.DeclStmt).Vars[0].Var
	assert.NotEqual(t, outer, inner)

	last := fn.Body.Stmts[2].(*ast.ExprStmt).X.(*ast.Call)
	assert.Equal(t, outer, last.Args[0].(*ast.Ident).Decl)
}

func TestDeferRunsInFinally(t *testing.T) {
	fn := lowerFunc(t, `
func f() {
	open()
	defer close()
	work()
}`)
	require.Len(t, fn.Body.Stmts, 2)
	try, ok := fn.Body.Stmts[1].(*ast.Try)
	require.True(t, ok)
	require.NotNil(t, try.Finally)

	call := try.Finally.Stmts[0].(*ast.ExprStmt).X.(*ast.Call)
	assert.Equal(t, "close", call.Func)
	work := try.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.Call)
	assert.Equal(t, "work", work.Func)
}

func TestDeferredClosureIsInlined(t *testing.T) {
	fn := lowerFunc(t, `
func f() (err error) {
	defer func() {
		err = wrap(err)
	}()
	return work()
}`)
	try := fn.Body.Stmts[1].(*ast.Try)
	assign := try.Finally.Stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
	result := fn.Body.Stmts[0].(*ast.DeclStmt).Vars[0].Var
	assert.Equal(t, result, assign.Target.(*ast.Ident).Decl)
}

func TestPanicThrows(t *testing.T) {
	fn := lowerFunc(t, `
func f(x int) int {
	if x < 0 {
		panic("negative")
	}
	return x
}`)
	then := fn.Body.Stmts[0].(*ast.If).Then.(*ast.Block)
	throw, ok := then.Stmts[0].(*ast.Throw)
	require.True(t, ok)
	assert.Equal(t, PanicType, throw.X.(*ast.New).Type)

	g := buildFunc(t, fn)
	a := dataflow.New()
	assert.False(t, a.CanCompleteNormally(g, 0, g.Size()))
}

func TestMissingReturnAfterSwitch(t *testing.T) {
	complete := lowerFunc(t, `
func f(x int) int {
	switch x {
	case 1:
		return 1
	default:
		return 0
	}
}`)
	g := buildFunc(t, complete)
	assert.False(t, dataflow.New().CanCompleteNormally(g, 0, g.Size()))

	partial := lowerFunc(t, `
func f(x int) int {
	switch x {
	case 1:
		return 1
	}
	return 0
}`)
	sw := partial.Body.Stmts[0].(*ast.Switch)
	clause := sw.Body.Stmts[1].(*ast.Block)
	_, ok := clause.Stmts[len(clause.Stmts)-1].(*ast.Return)
	assert.True(t, ok, "a terminating clause gets no synthetic break")
}

func TestSwitchClauses(t *testing.T) {
	fn := lowerFunc(t, `
func f(x int) {
	switch {
	case x > 1, x < -1:
		big()
		fallthrough
	case x == 0:
		zero()
	default:
		other()
	}
}`)
	sw := fn.Body.Stmts[0].(*ast.Switch)
	assert.Equal(t, true, sw.Tag.(*ast.Literal).Value)

	var kinds []string
	for _, s := range sw.Body.Stmts {
		switch s := s.(type) {
		case *ast.Case:
			if s.Value == nil {
				kinds = append(kinds, "default")
			} else {
				kinds = append(kinds, "case")
			}
		case *ast.Block:
			_, brk := s.Stmts[len(s.Stmts)-1].(*ast.Break)
			if brk {
				kinds = append(kinds, "body+break")
			} else {
				kinds = append(kinds, "body")
			}
		}
	}
	assert.Equal(t, []string{
		"case", "case", "body",
		"case", "body+break",
		"default", "body+break",
	}, kinds)
}

func TestRangeDeclaresLoopParams(t *testing.T) {
	fn := lowerFunc(t, `
func f(xs []int) {
	for i, x := range xs {
		use(i, x)
	}
}`)
	loop := fn.Body.Stmts[0].(*ast.ForEach)
	require.NotNil(t, loop.Param)
	assert.Equal(t, "i", loop.Param.Name)
	assert.Equal(t, ast.KindLoopParam, loop.Param.Kind)

	second := loop.Body.(*ast.Block).Stmts[0].(*ast.DeclStmt).Vars[0].Var
	assert.Equal(t, "x", second.Name)
}

func TestGotoIsRejected(t *testing.T) {
	fn := lowerFunc(t, `
func f() {
L:
	work()
	goto L
}`)
	o := ast.NewBasicOracle()
	_, err := cfg.Build(context.Background(), fn, o, cfg.LocalsPolicy(o), cfg.DefaultOptions())
	var canceled *cfg.CanceledError
	require.True(t, errors.As(err, &canceled))
	assert.Equal(t, ast.Node(fn.Body), canceled.Node)
}

func TestTerminates(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"return", "return", true},
		{"call", "work()", false},
		{"panic", `panic("x")`, true},
		{"if without else", "if c { return }", false},
		{"if else", "if c { return } else { panic(1) }", true},
		{"infinite for", "for { work() }", true},
		{"for with break", "for { break }", false},
		{"for with nested break", "for { switch { case c: break } }", true},
		{"labeled break", "L: for { for { break L } }", false},
		{"switch with default", "switch { case c: return; default: return }", true},
		{"switch without default", "switch { case c: return }", false},
		{"empty select", "select {}", true},
		{"trailing break", "break", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseBody(t, tt.body)
			assert.Equal(t, tt.want, terminates(fn.Body.List))
		})
	}
}
