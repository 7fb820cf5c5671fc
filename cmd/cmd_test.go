package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnolang/cflow/flow"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const source = `package main

func f() int {
	return 1
	work()
}

func g(x int) int {
	switch {
	case x > 0:
		return 1
	}
	return 0
}
`

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func testEngine(t *testing.T) *flow.Engine {
	t.Helper()
	e, err := flow.New(flow.DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return e
}

func TestRunCheck(t *testing.T) {
	t.Parallel()

	path := writeSource(t)
	var out bytes.Buffer
	err := runCheck(context.Background(), zaptest.NewLogger(t), testEngine(t), []string{path}, &out, false, "")
	assert.ErrorIs(t, err, errIssuesFound)
	assert.Contains(t, out.String(), "error: unreachable-code\n")
	assert.Contains(t, out.String(), "5 | work()\n")
	assert.NotContains(t, out.String(), "missing-return")
}

func TestRunCheckJSON(t *testing.T) {
	t.Parallel()

	path := writeSource(t)
	jsonPath := filepath.Join(t.TempDir(), "issues.json")
	err := runCheck(context.Background(), zaptest.NewLogger(t), testEngine(t), []string{path}, nil, true, jsonPath)
	assert.ErrorIs(t, err, errIssuesFound)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var byFile map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &byFile))
	require.Len(t, byFile[path], 1)
	assert.Equal(t, "unreachable-code", byFile[path][0]["Rule"])
	assert.Equal(t, "ERROR", byFile[path][0]["Severity"])
}

func TestRunCheckClean(t *testing.T) {
	t.Parallel()

	path := writeSource(t)
	e := testEngine(t)
	ignore(e, "unreachable-code, single-assignment")

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), zaptest.NewLogger(t), e, []string{path}, &out, false, ""))
	assert.Empty(t, out.String())
}

func TestRunGraph(t *testing.T) {
	t.Parallel()

	path := writeSource(t)
	e := testEngine(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runGraph(ctx, e, path, "", &out, false, false))
	assert.True(t, strings.HasPrefix(out.String(), "f ("))
	assert.Contains(t, out.String(), "\ng (")

	out.Reset()
	require.NoError(t, runGraph(ctx, e, path, "g", &out, true, false))
	assert.True(t, strings.HasPrefix(out.String(), "digraph mgraph {"))

	out.Reset()
	require.NoError(t, runGraph(ctx, e, path, "", &out, false, true))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^[0-9a-f]{64} f$`, lines[0])

	assert.ErrorContains(t, runGraph(ctx, e, path, "h", &out, false, false), "function not found: h")
	assert.Error(t, runGraph(ctx, e, path, "", &out, true, false))
}

func TestStats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(source), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tree.yaml"), []byte(`functions:
  - name: t
    body:
      - return
`), 0o644))

	stats, err := collectStats(context.Background(), zaptest.NewLogger(t), testEngine(t), []string{dir})
	require.NoError(t, err)
	require.Len(t, stats, 3)

	byName := make(map[string]FunctionStats)
	for _, s := range stats {
		byName[s.Function] = s
	}
	assert.Equal(t, 1, byName["f"].Complexity)
	assert.Equal(t, 2, byName["g"].Complexity)
	assert.Equal(t, 8, byName["g"].Line)
	assert.Zero(t, byName["t"].Complexity)
	assert.Positive(t, byName["g"].Instructions)

	var out bytes.Buffer
	require.NoError(t, printStats(&out, stats, false))
	assert.True(t, strings.HasPrefix(out.String(), "FUNCTION"))
	assert.Contains(t, out.String(), "tree.yaml:")

	out.Reset()
	require.NoError(t, printStats(&out, stats, true))
	var decoded []FunctionStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, stats, decoded)
}

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yaml")
	got, err := initConfigurationFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	conf, err := flow.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, flow.DefaultConfig(), conf)
}

func TestRootCommand(t *testing.T) {
	path := writeSource(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)

	rootCmd.SetArgs([]string{"graph", "--func", "f", "--fingerprint", path})
	require.NoError(t, rootCmd.Execute())
	assert.Regexp(t, `^[0-9a-f]{64} f\n$`, out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"check", path})
	assert.ErrorIs(t, rootCmd.Execute(), errIssuesFound)
	assert.Contains(t, out.String(), "unreachable statement: work()")

	rootCmd.SetArgs([]string{"check"})
	assert.ErrorContains(t, rootCmd.Execute(), "please provide file or directory paths")
}
