package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnolang/cflow/ast"
	"github.com/gnolang/cflow/flow"
	"github.com/gnolang/cflow/formatter"
)

var (
	funcName    string
	dotOutput   bool
	fingerprint bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Print the instruction graph of the functions of a file",
	Long: `Prints the instruction listing of every function of a Go source or tree file,
or of the one named with --func.
Example) cflow graph --func Get --dot store.go | dot -Tsvg > get.svg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		return runGraph(ctx, engine, args[0], funcName, cmd.OutOrStdout(), dotOutput, fingerprint)
	},
}

func init() {
	graphCmd.Flags().StringVar(&funcName, "func", "", "Only print the function with this name")
	graphCmd.Flags().BoolVar(&dotOutput, "dot", false, "Write the graph in Graphviz format")
	graphCmd.Flags().BoolVar(&fingerprint, "fingerprint", false, "Print the fingerprint of each graph only")
}

func runGraph(ctx context.Context, engine *flow.Engine, path, name string, w io.Writer, dot, fp bool) error {
	unit, _, err := engine.Load(path, nil)
	if err != nil {
		return err
	}

	functions := unit.Functions
	if name != "" {
		fn := unit.Function(name)
		if fn == nil {
			return fmt.Errorf("function not found: %s", name)
		}
		functions = []*ast.Function{fn}
	}
	if dot && len(functions) > 1 {
		return errors.New("--dot needs a single function, select one with --func")
	}

	for _, fn := range functions {
		g, err := engine.Graph(ctx, fn, engine.Options())
		if err != nil {
			return fmt.Errorf("failed to build graph of %s: %w", fn.Name, err)
		}
		switch {
		case fp:
			_, err = fmt.Fprintf(w, "%s %s\n", g.Fingerprint(), fn.Name)
		case dot:
			err = formatter.WriteDot(w, g)
		default:
			err = formatter.WriteGraph(w, fn.Name, g)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
