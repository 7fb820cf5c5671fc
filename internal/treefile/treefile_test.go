package treefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	"github.com/gnolang/cflow/internal/analysis/dataflow"
)

const readFile = `
types:
  - {name: Exception}
  - {name: IOError, super: Exception}
  - {name: RuntimeError, super: Exception, unchecked: true}
functions:
  - name: read
    params: [path]
    results: true
    body:
      - let: n
      - try:
          - set: n
            value: {call: open, args: [path], throws: [IOError]}
        catch:
          - {param: e, types: [IOError], body: [{set: n, value: -1}]}
        finally:
          - eval: {call: close}
      - return: n
`

func TestParse(t *testing.T) {
	t.Parallel()

	unit, err := Parse("read.yaml", []byte(readFile))
	require.NoError(t, err)
	require.Len(t, unit.Functions, 1)

	io := unit.Types["IOError"]
	require.NotNil(t, io)
	assert.Equal(t, unit.Types["Exception"], io.Super)
	assert.True(t, unit.Types["RuntimeError"].Unchecked)

	fn := unit.Function("read")
	require.NotNil(t, fn)
	assert.True(t, fn.Results)
	require.Len(t, fn.Params, 1)
	assert.Equal(t, fn, fn.Params[0].Decl)

	stmts := fn.Body.Stmts
	require.Len(t, stmts, 3)
	n := stmts[0].(*ast.DeclStmt).Vars[0].Var
	assert.Nil(t, stmts[0].(*ast.DeclStmt).Vars[0].Init)
	assert.Equal(t, ast.Position{Filename: "read.yaml", Line: 11, Column: 9}, stmts[0].Meta().Pos)

	try := stmts[1].(*ast.Try)
	require.Len(t, try.Catches, 1)
	assert.Equal(t, []*ast.Type{io}, try.Catches[0].Types)
	assert.Equal(t, ast.KindCatchParam, try.Catches[0].Param.Kind)
	require.NotNil(t, try.Finally)

	call := try.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.Assign).Value.(*ast.Call)
	assert.Equal(t, "open", call.Func)
	assert.Equal(t, []*ast.Type{io}, call.Throws)
	assert.Equal(t, fn.Params[0], call.Args[0].(*ast.Ident).Decl)

	ret := stmts[2].(*ast.Return)
	assert.Equal(t, n, ret.Value.(*ast.Ident).Decl)
}

func TestParsedTreeBuildsAndAnalyzes(t *testing.T) {
	t.Parallel()

	unit, err := Parse("read.yaml", []byte(readFile))
	require.NoError(t, err)
	fn := unit.Functions[0]

	o := ast.NewBasicOracle(unit.Types["RuntimeError"])
	g, err := cfg.Build(context.Background(), fn, o, cfg.LocalsPolicy(o), cfg.DefaultOptions())
	require.NoError(t, err)

	a := dataflow.New()
	n := fn.Body.Stmts[0].(*ast.DeclStmt).Vars[0].Var
	ret := g.StartOffset(fn.Body.Stmts[2])
	require.NotEqual(t, -1, ret)
	// both the try body and the handler write n before the return
	assert.True(t, a.DefinitelyAssignedAt(g, n, ret))
	assert.Empty(t, a.ReadBeforeWrite(g))
	assert.False(t, a.CanCompleteNormally(g, 0, g.Size()))
}

func TestLiterals(t *testing.T) {
	t.Parallel()

	unit, err := Parse("lit.yaml", []byte(`
functions:
  - name: f
    body:
      - eval: {call: use, args: [1, 2.5, true, null, "text", name, {str: raw}]}
`))
	require.NoError(t, err)
	args := unit.Functions[0].Body.Stmts[0].(*ast.ExprStmt).X.(*ast.Call).Args
	require.Len(t, args, 7)

	values := make([]any, 0, 6)
	for _, a := range args[:5] {
		values = append(values, a.(*ast.Literal).Value)
	}
	assert.Equal(t, []any{int64(1), 2.5, true, nil, "text"}, values)
	assert.Equal(t, "name", args[5].(*ast.Ident).Name)
	assert.Equal(t, "raw", args[6].(*ast.Literal).Value)
}

func TestStatements(t *testing.T) {
	t.Parallel()

	unit, err := Parse("stmts.yaml", []byte(`
functions:
  - name: f
    params: [xs, c]
    body:
      - label: outer
        body:
          foreach: x
          in: xs
          body:
            - if: {and: [c, {not: x}]}
              then: {break: outer}
              else: continue
      - while: c
        body: [{set: c, value: false}]
      - repeat: [{eval: {inc: c}}]
        while: {op: "<", args: [c, 10]}
      - for: null
        init: {let: i, value: 0}
        update: {eval: {inc: i, postfix: true}}
        body: [break]
      - switch: c
        body:
          - case: 1
          - break
          - default: ~
          - {throw: {new: Error}}
      - assert: c
        message: "failed"
      - sync: c
        body: []
      - block: [empty]
`))
	require.NoError(t, err)
	stmts := unit.Functions[0].Body.Stmts
	require.Len(t, stmts, 8)

	labeled := stmts[0].(*ast.Labeled)
	assert.Equal(t, "outer", labeled.Label)
	loop := labeled.Body.(*ast.ForEach)
	assert.Equal(t, "x", loop.Param.Name)
	assert.Equal(t, ast.KindLoopParam, loop.Param.Kind)

	cond := loop.Body.(*ast.Block).Stmts[0].(*ast.If)
	and := cond.Cond.(*ast.Binary)
	assert.Equal(t, ast.OpAnd, and.Op)
	assert.Equal(t, loop.Param, and.Y.(*ast.Unary).X.(*ast.Ident).Decl)
	assert.Equal(t, "outer", cond.Then.(*ast.Break).Label)
	assert.IsType(t, &ast.Continue{}, cond.Else)

	assert.IsType(t, &ast.While{}, stmts[1])
	do := stmts[2].(*ast.DoWhile)
	assert.Equal(t, ast.OpLt, do.Cond.(*ast.Binary).Op)

	loop3 := stmts[3].(*ast.For)
	assert.Nil(t, loop3.Cond)
	assert.IsType(t, &ast.DeclStmt{}, loop3.Init)

	sw := stmts[4].(*ast.Switch)
	require.Len(t, sw.Body.Stmts, 4)
	assert.False(t, sw.Body.Stmts[0].(*ast.Case).Default())
	assert.True(t, sw.Body.Stmts[2].(*ast.Case).Default())

	assert.Equal(t, "failed", stmts[5].(*ast.Assert).Message.(*ast.Literal).Value)
	assert.IsType(t, &ast.Sync{}, stmts[6])
	assert.IsType(t, &ast.EmptyStmt{}, stmts[7].(*ast.Block).Stmts[0])
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		target error
		msg    string
	}{
		{
			name:   "unknown statement",
			src:    "functions:\n  - name: f\n    body: [{jump: x}]\n",
			target: ErrUnknownStatement,
			msg:    "stmts.yaml:3:12",
		},
		{
			name:   "unknown bare word",
			src:    "functions:\n  - name: f\n    body: [goto]\n",
			target: ErrUnknownStatement,
		},
		{
			name:   "unknown expression",
			src:    "functions:\n  - name: f\n    body: [{eval: {frob: 1}}]\n",
			target: ErrUnknownExpression,
		},
		{
			name: "no functions",
			src:  "types: []\n",
			msg:  "no functions",
		},
		{
			name: "undeclared supertype",
			src:  "types: [{name: A, super: B}]\nfunctions: [{name: f}]\n",
			msg:  "undeclared type B",
		},
		{
			name: "type cycle",
			src:  "types: [{name: A, super: B}, {name: B, super: A}]\nfunctions: [{name: f}]\n",
			msg:  "extends itself",
		},
		{
			name: "catch without types",
			src:  "functions:\n  - name: f\n    body: [{try: [], catch: [{param: e}]}]\n",
			msg:  "catch without types",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse("stmts.yaml", []byte(tt.src))
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "read.yaml")
	require.NoError(t, os.WriteFile(path, []byte(readFile), 0o644))

	unit, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, unit.Filename)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
