package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cflow/flow"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger *zap.Logger
)

// errIssuesFound makes the process exit with status 1 after the issues
// have been printed.
var errIssuesFound = errors.New("issues found")

var rootCmd = &cobra.Command{
	Use:              "cflow [paths...]",
	Short:            "cflow - control flow and dataflow checks for Go sources and tree files",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// no subcommand
		if len(args) == 0 {
			return cmd.Help()
		}
		// cflow [path1 path2 ...] behaves like the check subcommand
		return check(cmd, args)
	},
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	conf := zap.NewProductionConfig()
	conf.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return conf.Build()
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errIssuesFound):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
}

// loadConfig reads the file named by --config. The default file is used
// when present; otherwise the built-in configuration applies.
func loadConfig() (flow.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(flow.DefaultConfigFile); err == nil {
			path = flow.DefaultConfigFile
		}
	}
	return flow.LoadConfig(path)
}

func newEngine() (*flow.Engine, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, err
	}
	engine, err := flow.New(conf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return engine, nil
}

func requirePaths(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("please provide file or directory paths")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to the configuration file (default "+flow.DefaultConfigFile+" when present)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Set a timeout for the run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}
