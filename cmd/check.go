package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cflow/flow"
	"github.com/gnolang/cflow/formatter"
	"github.com/gnolang/cflow/internal"
	tt "github.com/gnolang/cflow/internal/types"
)

var (
	ignoreRules string
	jsonOutput  bool
	outPath     string
)

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Report flow issues in Go sources and tree files",
	Args:  requirePaths,
	RunE:  check,
}

func check(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	engine, err := newEngine()
	if err != nil {
		return err
	}
	ignore(engine, ignoreRules)

	return runCheck(ctx, logger, engine, args, cmd.OutOrStdout(), jsonOutput, outPath)
}

func init() {
	checkCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output issues in JSON format")
	checkCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
}

func ignore(engine flow.Checker, rules string) {
	if rules == "" {
		return
	}
	for _, rule := range strings.Split(rules, ",") {
		engine.IgnoreRule(strings.TrimSpace(rule))
	}
}

func runCheck(ctx context.Context, logger *zap.Logger, engine flow.Checker, paths []string, w io.Writer, isJSON bool, jsonPath string) error {
	issues, err := flow.ProcessFiles(ctx, logger, engine, paths, flow.ProcessFile)
	if err != nil {
		return fmt.Errorf("error processing files: %w", err)
	}

	if err := printIssues(logger, w, issues, isJSON, jsonPath); err != nil {
		return err
	}
	if len(issues) > 0 {
		return errIssuesFound
	}
	return nil
}

func groupByFile(issues []tt.Issue) ([]string, map[string][]tt.Issue) {
	issuesByFile := make(map[string][]tt.Issue)
	for _, issue := range issues {
		issuesByFile[issue.Filename] = append(issuesByFile[issue.Filename], issue)
	}
	sortedFiles := make([]string, 0, len(issuesByFile))
	for filename := range issuesByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)
	return sortedFiles, issuesByFile
}

func printIssues(logger *zap.Logger, w io.Writer, issues []tt.Issue, isJSON bool, jsonPath string) error {
	sortedFiles, issuesByFile := groupByFile(issues)

	if isJSON {
		d, err := json.Marshal(issuesByFile)
		if err != nil {
			return fmt.Errorf("error marshalling issues to JSON: %w", err)
		}
		if jsonPath == "" {
			_, err = fmt.Fprintln(w, string(d))
			return err
		}
		if err := os.WriteFile(jsonPath, d, 0o644); err != nil {
			return fmt.Errorf("error writing JSON output file: %w", err)
		}
		return nil
	}

	for _, filename := range sortedFiles {
		sourceCode, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
		}
		if _, err := fmt.Fprint(w, formatter.GenerateFormattedIssue(issuesByFile[filename], sourceCode)); err != nil {
			return err
		}
	}
	return nil
}
