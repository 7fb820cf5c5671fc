package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/internal/analysis/cfg"
	tt "github.com/gnolang/cflow/internal/types"
)

func newTestEngine(t *testing.T, conf EngineConfig) *Engine {
	t.Helper()
	e, err := NewEngine(conf, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return e
}

func rulesOf(issues []tt.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Rule)
	}
	return out
}

const goSource = `package main

func f() int {
	return 1
	work()
}

func g(x int) int {
	if x > 0 {
		return 1
	}
}
`

func TestNewEngine(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())
	assert.Equal(t, []string{
		"final-reassigned",
		"missing-return",
		"single-assignment",
		"uninitialized-read",
		"unreachable-code",
	}, e.Rules())
	assert.Equal(t, cfg.DefaultOptions(), e.Options())
	assert.NotNil(t, e.Cache())
	assert.NotNil(t, e.Analyzer())

	_, err := NewEngine(EngineConfig{Policy: "globals"})
	assert.ErrorContains(t, err, "unknown variable policy")
}

func TestEngineRuleConfiguration(t *testing.T) {
	t.Parallel()

	conf := DefaultEngineConfig()
	conf.Rules = map[string]tt.ConfigRule{
		"single-assignment": {Severity: tt.SeverityOff},
		"missing-return":    {Severity: tt.SeverityWarning},
		"no-such-rule":      {Severity: tt.SeverityError},
	}
	e := newTestEngine(t, conf)
	assert.NotContains(t, e.Rules(), "single-assignment")
	assert.NotContains(t, e.Rules(), "no-such-rule")

	e.IgnoreRule("unreachable-code")
	assert.NotContains(t, e.Rules(), "unreachable-code")

	issues, err := e.RunSource(context.Background(), "main.go", []byte(goSource))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "missing-return", issues[0].Rule)
	assert.Equal(t, tt.SeverityWarning, issues[0].Severity)
}

func TestRunSourceGo(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())
	issues, err := e.RunSource(context.Background(), "main.go", []byte(goSource))
	require.NoError(t, err)
	require.Equal(t, []string{"unreachable-code", "missing-return"}, rulesOf(issues))

	unreachable := issues[0]
	assert.Equal(t, "main.go", unreachable.Filename)
	assert.Equal(t, "f", unreachable.Function)
	assert.Equal(t, 5, unreachable.Start.Line)
	assert.Equal(t, tt.SeverityError, unreachable.Severity)

	missing := issues[1]
	assert.Equal(t, "g", missing.Function)
	assert.Equal(t, 8, missing.Start.Line)
	assert.Equal(t, "missing return at end of g", missing.Message)
}

func TestRunSourceHonorsNolint(t *testing.T) {
	t.Parallel()

	src := `package main

func f() int {
	return 1
	work() //nolint:unreachable-code
}
`
	e := newTestEngine(t, DefaultEngineConfig())
	issues, err := e.RunSource(context.Background(), "main.go", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestRunSourceTreeFile(t *testing.T) {
	t.Parallel()

	src := `functions:
  - name: f
    params: [c]
    body:
      - let: x
      - if: c
        then: [{set: x, value: 1}]
      - eval: {call: use, args: [x]}
      - let: k
        final: true
        value: 1
      - set: k
        value: 2
`
	e := newTestEngine(t, DefaultEngineConfig())
	issues, err := e.RunSource(context.Background(), "f.yaml", []byte(src))
	require.NoError(t, err)

	rules := rulesOf(issues)
	assert.Contains(t, rules, "uninitialized-read")
	assert.Contains(t, rules, "final-reassigned")
	for _, issue := range issues {
		switch issue.Rule {
		case "uninitialized-read":
			assert.Equal(t, 8, issue.Start.Line)
			assert.Contains(t, issue.Message, "variable x")
		case "final-reassigned":
			assert.Contains(t, issue.Message, "final variable k")
		}
	}

	// a directive in a YAML comment silences the read
	silenced := strings.Replace(src, "args: [x]}", "args: [x]} # nolint:uninitialized-read", 1)
	issues, err = e.RunSource(context.Background(), "f.yaml", []byte(silenced))
	require.NoError(t, err)
	assert.NotContains(t, rulesOf(issues), "uninitialized-read")
}

func TestCheckSkipsMalformedFunctions(t *testing.T) {
	t.Parallel()

	src := `package main

func loop() {
L:
	work()
	goto L
}

func g(x int) int {
	if x > 0 {
		return 1
	}
}
`
	e := newTestEngine(t, DefaultEngineConfig())
	issues, err := e.RunSource(context.Background(), "main.go", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"missing-return"}, rulesOf(issues))
}

func TestCheckCanceled(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunSource(ctx, "main.go", []byte(goSource))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())

	_, _, err := e.Load("main.go", []byte("package main\n\nfunc ( {"))
	assert.ErrorContains(t, err, "error parsing file")

	_, _, err = e.Load("types.go", []byte("package main\n\ntype T int\n"))
	assert.ErrorContains(t, err, "no functions")

	_, _, err = e.Load("f.yaml", []byte("functions: [{name: f, body: [{jump: 1}]}]\n"))
	assert.ErrorContains(t, err, "unknown statement")

	_, _, err = e.Load(filepath.Join(t.TempDir(), "missing.go"), nil)
	assert.ErrorContains(t, err, "error reading")
}

func TestGraphIsShared(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())
	unit, _, err := e.Load("main.go", []byte(goSource))
	require.NoError(t, err)
	fn := unit.Function("g")
	require.NotNil(t, fn)

	ctx := context.Background()
	g1, err := e.Graph(ctx, fn, e.Options())
	require.NoError(t, err)
	g2, err := e.Graph(ctx, fn, e.Options())
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, uint64(1), e.Cache().Stats().Builds)

	e.Clock().Advance()
	g3, err := e.Graph(ctx, fn, e.Options())
	require.NoError(t, err)
	assert.NotSame(t, g1, g3)
	assert.Equal(t, g1.Fingerprint(), g3.Fingerprint())
}

func TestGraphCachesNestedBlocks(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())
	x, y := ast.NewLocal("x"), ast.NewLocal("y")
	then := ast.Seq(ast.Set(x, ast.IntLit(2)), ast.Set(y, ast.Ref(x)))
	fn := ast.NewFunction("f", []*ast.Variable{ast.NewParam("c")},
		ast.Let(x, ast.IntLit(1)),
		ast.Let(y, nil),
		&ast.If{Cond: ast.Name("c"), Then: then},
		&ast.Return{},
	)

	ctx := context.Background()
	_, err := e.Graph(ctx, fn, e.Options())
	require.NoError(t, err)
	require.Equal(t, uint64(1), e.Cache().Stats().Builds)

	inner, err := e.Graph(ctx, then, e.Options())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Cache().Stats().Builds)

	direct, err := cfg.Build(ctx, then, e.oracle, e.policy, e.Options())
	require.NoError(t, err)
	assert.Equal(t, direct.Instructions(), inner.Instructions())
	assert.Equal(t, direct.StartOffset(then), inner.StartOffset(then))
	assert.Equal(t, direct.EndOffset(then), inner.EndOffset(then))
}

func TestRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))

	e := newTestEngine(t, DefaultEngineConfig())
	issues, err := e.Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, path, issues[0].Filename)
}

func TestReadSourceCode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))

	src, err := ReadSourceCode(path)
	require.NoError(t, err)
	assert.Equal(t, "package main", src.Lines[0])
	assert.Equal(t, "\twork()", src.Lines[4])
}
