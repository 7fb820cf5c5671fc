// Package flow checks Go sources and tree files with the flow analyses.
package flow

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/gnolang/cflow/internal"
	"github.com/gnolang/cflow/scanner"
	tt "github.com/gnolang/cflow/internal/types"
)

type (
	Issue    = tt.Issue
	Severity = tt.Severity
	Engine   = internal.Engine
)

// Checker is the part of an engine the processing helpers need.
type Checker interface {
	Run(ctx context.Context, filename string) ([]tt.Issue, error)
	RunSource(ctx context.Context, filename string, src []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
}

var _ Checker = (*internal.Engine)(nil)

// Processor checks one file.
type Processor func(ctx context.Context, c Checker, path string) ([]tt.Issue, error)

// New creates an engine for conf.
func New(conf Config, logger *zap.Logger) (*internal.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return internal.NewEngine(conf.EngineConfig(), internal.WithLogger(logger))
}

// ProcessFile is the default Processor.
func ProcessFile(ctx context.Context, c Checker, path string) ([]tt.Issue, error) {
	issues, err := c.Run(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("error checking %s: %w", path, err)
	}
	return issues, nil
}

// ProcessSource checks src as the content of filename.
func ProcessSource(ctx context.Context, c Checker, filename string, src []byte) ([]tt.Issue, error) {
	issues, err := c.RunSource(ctx, filename, src)
	if err != nil {
		return nil, fmt.Errorf("error checking %s: %w", filename, err)
	}
	return issues, nil
}

// ProcessFiles checks every path in turn. The first path that cannot be
// processed stops the run.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	c Checker,
	paths []string,
	processor Processor,
) ([]tt.Issue, error) {
	var all []tt.Issue
	for _, path := range paths {
		issues, err := ProcessPath(ctx, logger, c, path, processor)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return all, err
		}
		all = append(all, issues...)
	}
	return all, nil
}

// ProcessPath checks a file, or every source file below a directory. Files
// of a directory are checked concurrently with a progress bar on stderr; a
// file that fails is logged and skipped. Cancellation returns the issues
// found so far with the context error.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	c Checker,
	path string,
	processor Processor,
) ([]tt.Issue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		if !internal.IsSourceFile(path) {
			return nil, nil
		}
		return processor(ctx, c, path)
	}

	files, err := sourceFiles(path)
	if err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	var (
		mu     sync.Mutex
		issues = []tt.Issue{}
		wg     sync.WaitGroup
		sem    = make(chan struct{}, runtime.NumCPU())
	)
	for _, file := range files {
		select {
		case <-ctx.Done():
			wg.Wait()
			return issues, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer bar.Add(1)

			found, err := processor(ctx, c, file)
			if err != nil {
				logger.Error("Error processing file", zap.String("file", file), zap.Error(err))
				return
			}
			mu.Lock()
			issues = append(issues, found...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	_ = bar.Finish()

	internal.SortIssues(issues)
	if err := ctx.Err(); err != nil {
		return issues, err
	}
	return issues, nil
}

func sourceFiles(root string) ([]string, error) {
	found, err := scanner.New(root, internal.IsSourceFile).Scan()
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", root, err)
	}
	files := make([]string, len(found))
	for i, f := range found {
		files[i] = f.Path
	}
	return files, nil
}
