package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fzipp/gocyclo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cflow/flow"
	"github.com/gnolang/cflow/internal"
	"github.com/gnolang/cflow/scanner"
)

var statsJSONOutput bool

var statsCmd = &cobra.Command{
	Use:   "stats [paths...]",
	Short: "Print graph size and cyclomatic complexity per function",
	Args:  requirePaths,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		stats, err := collectStats(ctx, logger, engine, args)
		if err != nil {
			return err
		}
		if err := printStats(cmd.OutOrStdout(), stats, statsJSONOutput); err != nil {
			return err
		}
		if !statsJSONOutput {
			cs := engine.Cache().Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "\ncache: %d builds, %d hits, %d misses\n", cs.Builds, cs.Hits, cs.Misses)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSONOutput, "json", false, "Output statistics in JSON format")
}

// FunctionStats describes the graph of one function.
type FunctionStats struct {
	Filename     string `json:"filename"`
	Function     string `json:"function"`
	Line         int    `json:"line"`
	Instructions int    `json:"instructions"`
	Finally      int    `json:"finally"`
	// Complexity is the cyclomatic complexity of a Go function, 0 for tree
	// files.
	Complexity  int    `json:"complexity,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

func collectStats(ctx context.Context, logger *zap.Logger, engine *flow.Engine, paths []string) ([]FunctionStats, error) {
	var files []scanner.FileInfo
	for _, path := range paths {
		found, err := scanner.New(path, internal.IsSourceFile).Scan()
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", path, err)
		}
		files = append(files, found...)
	}

	var out []FunctionStats
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		stats, err := fileStats(ctx, engine, file.Path)
		if err != nil {
			logger.Error("Error collecting statistics", zap.String("file", file.Path), zap.Error(err))
			continue
		}
		out = append(out, stats...)
	}
	return out, nil
}

func fileStats(ctx context.Context, engine *flow.Engine, filename string) ([]FunctionStats, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	unit, _, err := engine.Load(filename, src)
	if err != nil {
		return nil, err
	}

	var complexity map[int]int
	if strings.HasSuffix(filename, ".go") {
		complexity, err = cyclomaticComplexity(filename, src)
		if err != nil {
			return nil, err
		}
	}

	out := make([]FunctionStats, 0, len(unit.Functions))
	for _, fn := range unit.Functions {
		g, err := engine.Graph(ctx, fn, engine.Options())
		if err != nil {
			return nil, fmt.Errorf("failed to build graph of %s: %w", fn.Name, err)
		}
		out = append(out, FunctionStats{
			Filename:     filename,
			Function:     fn.Name,
			Line:         fn.Pos.Line,
			Instructions: g.Size(),
			Finally:      len(g.Subroutines()),
			Complexity:   complexity[fn.Pos.Line],
			Fingerprint:  g.Fingerprint(),
		})
	}
	return out, nil
}

// cyclomaticComplexity maps the line of each function declaration to its
// complexity.
func cyclomaticComplexity(filename string, src []byte) (map[int]int, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[int]int)
	for _, stat := range gocyclo.AnalyzeASTFile(f, fset, nil) {
		out[stat.Pos.Line] = stat.Complexity
	}
	return out, nil
}

func printStats(w io.Writer, stats []FunctionStats, isJSON bool) error {
	if isJSON {
		if stats == nil {
			stats = []FunctionStats{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tINSTRUCTIONS\tFINALLY\tCOMPLEXITY\tFINGERPRINT")
	for _, s := range stats {
		complexity := "-"
		if s.Complexity > 0 {
			complexity = fmt.Sprint(s.Complexity)
		}
		fmt.Fprintf(tw, "%s:%d %s\t%d\t%d\t%s\t%s\n",
			s.Filename, s.Line, s.Function, s.Instructions, s.Finally, complexity, s.Fingerprint[:12])
	}
	return tw.Flush()
}
