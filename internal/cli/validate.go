package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/heuristic"
	"github.com/roach88/scriptdelta/internal/ir"
)

// ValidationIssue is one structural problem found in a script.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	ScriptID   string            `json:"script_id,omitempty"`
	Scenes     int               `json:"scenes"`
	Characters int               `json:"characters"`
	Errors     []ValidationIssue `json:"errors,omitempty"`
	Findings   *ir.Summary       `json:"findings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>",
		Short: "Check that a script can be tracked and analyzed",
		Long: `Validate a script document without recording anything.

Checks that the file parses and that scene, character and dialogue ids
are present and unique, which change tracking relies on. A valid script
is also run through the rule-based analyzer and its findings are
summarized; findings never fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	script, loadErrors := LoadScript(path, LoadModeCollectAll)

	// Unreadable scripts are command errors (exit code 2)
	if script == nil {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Loaded script %s: %d scene(s), %d character(s)", script.ID, len(script.Scenes), len(script.Characters))

	result := ValidationResult{
		Valid:      len(loadErrors) == 0,
		ScriptID:   script.ID,
		Scenes:     len(script.Scenes),
		Characters: len(script.Characters),
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toIssue(err))
	}
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := heuristic.New().Analyze(ctx, ir.AnalyzeRequest{Script: script})
	if err != nil {
		return outputValidateError(formatter, ErrCodeAnalysis, fmt.Sprintf("analysis failed: %v", err), nil)
	}
	result.Findings = &report.Summary

	return outputValidateSuccess(formatter, result)
}

func toIssue(err error) ValidationIssue {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Script %s valid (%d scene(s), %d character(s))\n", result.ScriptID, result.Scenes, result.Characters)
	if s := result.Findings; s != nil && s.TotalIssues > 0 {
		fmt.Fprintf(formatter.Writer, "  %d finding(s), consistency %d/100; run analyze for details\n", s.TotalIssues, s.OverallConsistency)
	}
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Validation errors are command-level errors (exit code 2)
	return reportedError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		// Validation failures = exit code 1 (test/validation failure)
		return formatter.failWith(result, errs[0].Code, errs[0].Message)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	return reportedError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
