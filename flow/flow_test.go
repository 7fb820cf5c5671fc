package flow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnolang/cflow/internal"
	tt "github.com/gnolang/cflow/internal/types"
)

const missingReturn = `package main

func f%d(x int) int {
	if x > 0 {
		return 1
	}
}
`

func writeFiles(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%d.go", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(missingReturn, i)), 0o644))
	}
}

func newEngine(t *testing.T) *internal.Engine {
	t.Helper()
	e, err := New(DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return e
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	conf, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`name: strict
options:
  short_circuit: false
policy: all
walker:
  max_call_depth: 4
rules:
  single-assignment:
    severity: OFF
  missing-return:
    severity: WARNING
`), 0o644))

	conf, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "strict", conf.Name)
	require.NotNil(t, conf.Options.ShortCircuit)
	assert.False(t, *conf.Options.ShortCircuit)
	assert.Nil(t, conf.Options.ExceptionAfterAssignment)

	ec := conf.EngineConfig()
	assert.False(t, ec.Options.ShortCircuitJumps)
	assert.True(t, ec.Options.ExceptionAfterAssignment)
	assert.Equal(t, internal.PolicyAll, ec.Policy)
	assert.Equal(t, 4, ec.MaxCallDepth)
	assert.Equal(t, tt.SeverityOff, ec.Rules["single-assignment"].Severity)
	assert.Equal(t, tt.SeverityWarning, ec.Rules["missing-return"].Severity)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "error opening configuration")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules: [1, 2"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "error parsing configuration")
}

func TestWriteConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, WriteConfig(path, DefaultConfig()))

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	t.Parallel()

	conf := DefaultConfig()
	conf.Policy = "globals"
	_, err := New(conf, nil)
	assert.Error(t, err)
}

func TestProcessPathDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, 5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package main\nfunc ("), 0o644))

	issues, err := ProcessPath(context.Background(), zaptest.NewLogger(t), newEngine(t), dir, ProcessFile)
	require.NoError(t, err)
	require.Len(t, issues, 5)
	for i, issue := range issues {
		assert.Equal(t, filepath.Join(dir, fmt.Sprintf("f%d.go", i)), issue.Filename)
		assert.Equal(t, "missing-return", issue.Rule)
	}
}

func TestProcessPathSingleFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, 1)
	e := newEngine(t)

	issues, err := ProcessPath(context.Background(), nil, e, filepath.Join(dir, "f0.go"), ProcessFile)
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	issues, err = ProcessPath(context.Background(), nil, e, other, ProcessFile)
	require.NoError(t, err)
	assert.Empty(t, issues)

	_, err = ProcessPath(context.Background(), nil, e, filepath.Join(dir, "missing.go"), ProcessFile)
	assert.ErrorContains(t, err, "error accessing")
}

func TestProcessPathCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	issues, err := ProcessPath(ctx, nil, newEngine(t), dir, ProcessFile)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, issues)
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()

	a, b := t.TempDir(), t.TempDir()
	writeFiles(t, a, 2)
	writeFiles(t, b, 1)
	e := newEngine(t)

	issues, err := ProcessFiles(context.Background(), nil, e, []string{a, b}, ProcessFile)
	require.NoError(t, err)
	assert.Len(t, issues, 3)

	issues, err = ProcessFiles(context.Background(), nil, e, []string{a, filepath.Join(b, "missing")}, ProcessFile)
	assert.Error(t, err)
	assert.Len(t, issues, 2)
}

func TestProcessSource(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	e.IgnoreRule("missing-return")

	issues, err := ProcessSource(context.Background(), e, "f.go", []byte(fmt.Sprintf(missingReturn, 0)))
	require.NoError(t, err)
	assert.Empty(t, issues)

	_, err = ProcessSource(context.Background(), e, "f.go", []byte("package main\nfunc ("))
	assert.ErrorContains(t, err, "error checking f.go")
}
