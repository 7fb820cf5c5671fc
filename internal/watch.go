package internal

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnolang/cflow/internal/types"
)

// debounce collapses bursts of writes to one file into one check.
const debounce = 100 * time.Millisecond

// ReportFunc receives the result of checking a changed file.
type ReportFunc func(filename string, issues []tt.Issue, err error)

// IsSourceFile reports whether the engine can load filename.
func IsSourceFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".go", ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(filename), ".")
	}
	return false
}

// Watch re-checks source files below paths whenever they change, until ctx
// is done. Every change advances the session clock first, so no graph built
// from the old content survives.
func (e *Engine) Watch(ctx context.Context, paths []string, report ReportFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !IsSourceFile(event.Name) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watch error", zap.Error(err))
		case <-timer.C:
			version := e.clock.Advance()
			e.logger.Debug("sources changed",
				zap.Int("files", len(pending)),
				zap.Uint64("version", version),
			)
			for filename := range pending {
				issues, err := e.Run(ctx, filename)
				report(filename, issues, err)
			}
			clear(pending)
		}
	}
}
