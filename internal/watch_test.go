package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/cflow/internal/types"
)

func TestIsSourceFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"main.go", true},
		{"tree.yaml", true},
		{"tree.YML", true},
		{".cflow.yaml", false},
		{"notes.txt", false},
		{"dir/sub/f.go", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSourceFile(tt.name), tt.name)
	}
}

type report struct {
	filename string
	issues   []tt.Issue
	err      error
}

func TestWatchRechecksChangedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := newTestEngine(t, DefaultEngineConfig())
	before := e.Clock().Version()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan report, 8)
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, []string{dir}, func(filename string, issues []tt.Issue, err error) {
			reports <- report{filename, issues, err}
		})
	}()

	path := filepath.Join(dir, "main.go")
	ignored := filepath.Join(dir, "notes.txt")
	// the watcher registers asynchronously; keep writing until it reports
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	var got report
wait:
	for {
		select {
		case got = <-reports:
			break wait
		case <-tick.C:
			require.NoError(t, os.WriteFile(ignored, []byte("x"), 0o644))
			require.NoError(t, os.WriteFile(path, []byte(goSource), 0o644))
		case <-deadline:
			t.Fatal("no report from watcher")
		}
	}

	require.NoError(t, got.err)
	assert.Equal(t, path, got.filename)
	assert.Equal(t, []string{"unreachable-code", "missing-return"}, rulesOf(got.issues))
	assert.Greater(t, e.Clock().Version(), before)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchMissingPath(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, DefaultEngineConfig())
	err := e.Watch(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Error(t, err)
}
