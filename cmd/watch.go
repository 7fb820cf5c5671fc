package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cflow/flow"
	"github.com/gnolang/cflow/formatter"
	"github.com/gnolang/cflow/internal"
	tt "github.com/gnolang/cflow/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-check files whenever they change",
	Long: `Watches the given files and directories and prints the issues of every
source file that is written. Runs until interrupted; --timeout does not apply.`,
	Args: requirePaths,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		ignore(engine, ignoreRules)
		return runWatch(ctx, logger, engine, args, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
}

func runWatch(ctx context.Context, logger *zap.Logger, engine *flow.Engine, paths []string, w io.Writer) error {
	var mu sync.Mutex
	report := func(filename string, issues []tt.Issue, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			logger.Error("Error checking file", zap.String("file", filename), zap.Error(err))
			return
		}
		if len(issues) == 0 {
			fmt.Fprintf(w, "%s: no issues\n", filename)
			return
		}
		src, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Warn("Error reading source file", zap.String("file", filename), zap.Error(err))
		}
		fmt.Fprint(w, formatter.GenerateFormattedIssue(issues, src))
	}

	err := engine.Watch(ctx, paths, report)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
