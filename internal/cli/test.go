package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario name glob
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Note   string   `json:"note,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run edit-session scenarios",
		Long: `Run edit-session scenarios using the harness framework.

Each scenario feeds successive script versions through the full
pipeline with a fixed clock and sequential ids, then checks the
per-step expectations, the assertions and, when a golden file exists
under <scenarios-dir>/golden, the exact trace.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  scriptdelta test ./scenarios
  scriptdelta test ./scenarios --filter "title-*"
  scriptdelta test ./scenarios --update
  scriptdelta test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	formatter := opts.newFormatter(cmd)
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		res := evaluateScenario(file, opts.Update)
		formatter.VerboseLog("%s: pass=%t", file, res.Pass)
		if opts.Format != "json" {
			writeScenarioLine(formatter.Writer, res)
		}

		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.Format == "json" {
		if result.Failed == 0 {
			return formatter.Success(result)
		}
		return formatter.failWith(result, ErrCodeScenarioFailed, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return writeTestSummary(formatter.Writer, result)
}

// findScenarioFiles returns the YAML scenario files under dir whose base
// name matches filter, in lexical order.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			// The pattern was checked above.
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// evaluateScenario loads and runs a scenario, then either rewrites its
// golden file or compares the trace with it. A missing golden file leaves
// the verdict to the expectations and assertions.
func evaluateScenario(file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failedScenario(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failedScenario(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return failedScenario(scenario.Name, fmt.Sprintf("failed to snapshot trace: %v", err))
	}

	golden := goldenFilePath(file)
	if update {
		if err := writeGolden(golden, snapshot); err != nil {
			return failedScenario(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return ScenarioResult{Name: scenario.Name, Pass: true, Note: "golden updated"}
	}

	var errs []string
	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		errs = append(errs, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(want, snapshot):
		errs = append(errs, "trace does not match golden file (run with --update to regenerate)")
	}
	errs = append(errs, result.Errors...)

	if len(errs) > 0 || !result.Pass {
		return failedScenario(scenario.Name, errs...)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

func failedScenario(name string, errs ...string) ScenarioResult {
	return ScenarioResult{Name: name, Errors: slices.Clip(errs)}
}

// goldenFilePath maps <dir>/<name>.yaml to <dir>/golden/<name>.golden.
func goldenFilePath(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func writeScenarioLine(w io.Writer, res ScenarioResult) {
	switch {
	case !res.Pass:
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	case res.Note != "":
		fmt.Fprintf(w, "✓ %s (%s)\n", res.Name, res.Note)
	default:
		fmt.Fprintf(w, "✓ %s\n", res.Name)
	}
}

func writeTestSummary(w io.Writer, result TestResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return reportedError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
