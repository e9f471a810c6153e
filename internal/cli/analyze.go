package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/diffreport"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	OldPath    string
	ScriptID   string
	Mode       string
	Kinds      []string
	Threshold  string
	Max        int
	Diff       bool
	DiffFormat string
	FailOn     string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <script>",
		Short: "Analyze a script, incrementally when the previous version is given",
		Long: `Analyze a script version for consistency issues.

With --old, the previous version is analyzed first and the new version is
then re-analyzed incrementally: only the scenes and characters impacted by
the edit are sent to the analyzer. --diff compares the two reports.

Scripts may be YAML, JSON or CUE documents.

Exit codes:
  0 - Analysis completed (and no finding reached --fail-on)
  1 - A finding reached --fail-on, or the analysis failed
  2 - Command error (unreadable script, bad flags, etc.)

Examples:
  scriptdelta analyze draft.yaml
  scriptdelta analyze --old draft-v1.yaml draft-v2.yaml --diff
  scriptdelta analyze --kinds dialogue,character --threshold medium draft.cue
  scriptdelta analyze --fail-on high --format json draft.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OldPath, "old", "", "previous version of the script")
	cmd.Flags().StringVar(&opts.ScriptID, "script-id", "", "history key (defaults to the script's id)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "performance mode (aggressive|balanced|conservative)")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kinds", nil, "finding kinds to check (default all)")
	cmd.Flags().StringVar(&opts.Threshold, "threshold", "", "minimum severity to report")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "maximum findings per analyzed element (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "compare with the previous version's report (needs --old)")
	cmd.Flags().StringVar(&opts.DiffFormat, "diff-format", string(diffreport.FormatDetailed), "diff detail (detailed|summary|minimal)")
	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "", "exit 1 when a finding reaches this severity")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	analyzeOpts, err := opts.analyzeOptions()
	if err != nil {
		return err
	}
	failOn, err := parseSeverity("fail-on", opts.FailOn)
	if err != nil {
		return err
	}
	if opts.Diff && opts.OldPath == "" {
		return NewExitError(ExitCommandError, "--diff needs --old")
	}

	newScript, err := loadScriptOrExit(path)
	if err != nil {
		return err
	}
	var oldScript *ir.Script
	if opts.OldPath != "" {
		if oldScript, err = loadScriptOrExit(opts.OldPath); err != nil {
			return err
		}
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	orch, err := opts.newOrchestrator(st, opts.Mode)
	if err != nil {
		return err
	}
	defer orch.Close()

	scriptID := opts.ScriptID
	if scriptID == "" {
		scriptID = newScript.ID
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if oldScript != nil {
		formatter.VerboseLog("Analyzing previous version %s", opts.OldPath)
		if _, err := orch.AnalyzeChanges(ctx, scriptID, nil, oldScript, analyzeOpts); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeAnalysis, fmt.Sprintf("analysis of %s failed: %v", opts.OldPath, err), nil)
		}
	}

	res, err := orch.AnalyzeChanges(ctx, scriptID, oldScript, newScript, analyzeOpts)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeAnalysis, fmt.Sprintf("analysis of %s failed: %v", path, err), nil)
	}
	slog.Debug("analysis complete",
		"script_id", scriptID,
		"strategy", res.Strategy,
		"findings", len(res.Report.Findings))

	if err := formatter.Result(res, func(w io.Writer) error { return writeAnalysis(w, res) }); err != nil {
		return err
	}

	if n := countAtLeast(res.Report.Findings, failOn); failOn != "" && n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d finding(s) at or above %s", ErrCodeFindingsAbove, n, failOn))
	}
	return nil
}

// analyzeOptions converts the filter flags.
func (o *AnalyzeOptions) analyzeOptions() (orchestrator.AnalyzeOptions, error) {
	out := orchestrator.AnalyzeOptions{
		MaxFindings:  o.Max,
		GenerateDiff: o.Diff,
	}
	if o.Max < 0 {
		return out, NewExitError(ExitCommandError, "--max must be non-negative")
	}

	for _, k := range o.Kinds {
		kind := ir.FindingKind(strings.ToLower(strings.TrimSpace(k)))
		if !slices.Contains(ir.FindingKinds, kind) {
			return out, NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be one of %v", k, ir.FindingKinds))
		}
		out.CheckKinds = append(out.CheckKinds, kind)
	}

	threshold, err := parseSeverity("threshold", o.Threshold)
	if err != nil {
		return out, err
	}
	out.SeverityThreshold = threshold

	format, err := parseDiffFormat(o.DiffFormat)
	if err != nil {
		return out, err
	}
	out.DiffFormat = format
	return out, nil
}

// parseSeverity validates a severity flag. Empty stays empty.
func parseSeverity(flag, s string) (ir.Severity, error) {
	if s == "" {
		return "", nil
	}
	sev := ir.Severity(strings.ToLower(s))
	if sev.Rank() < 0 {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q: must be one of %v", flag, s, ir.Severities))
	}
	return sev, nil
}

var diffFormats = []diffreport.Format{diffreport.FormatDetailed, diffreport.FormatSummary, diffreport.FormatMinimal}

func parseDiffFormat(s string) (diffreport.Format, error) {
	f := diffreport.Format(strings.ToLower(s))
	if s == "" {
		return diffreport.FormatDetailed, nil
	}
	if !slices.Contains(diffFormats, f) {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("invalid --diff-format %q: must be one of %v", s, diffFormats))
	}
	return f, nil
}

func countAtLeast(findings []ir.Finding, threshold ir.Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity.AtLeast(threshold) {
			n++
		}
	}
	return n
}

// writeAnalysis renders an analysis result for humans.
func writeAnalysis(w io.Writer, res *orchestrator.Result) error {
	cache := "miss"
	if res.CacheHit {
		cache = "hit"
	}
	fmt.Fprintf(w, "Script %s: %s analysis (cache %s), impact %s\n", res.ScriptID, res.Strategy, cache, res.Impact.Level)

	if len(res.Changes) > 0 {
		fmt.Fprintf(w, "\nChanges (%d):\n", len(res.Changes))
		for _, c := range res.Changes {
			fmt.Fprintf(w, "  %-12s %s\n", c.Kind, c.Description)
		}
		fmt.Fprintf(w, "\nImpact: direct %v, indirect %v\n", res.Impact.DirectImpact, res.Impact.IndirectImpact)
	}

	summary := res.Report.Summary
	fmt.Fprintf(w, "\nFindings (%d), consistency %d/100:\n", summary.TotalIssues, summary.OverallConsistency)
	if len(res.Report.Findings) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, f := range res.Report.Findings {
		prefix := '*'
		if f.CarriedOver {
			prefix = '~'
		}
		fmt.Fprintf(w, "  %s\n", diffreport.FormatLine(prefix, f))
	}

	if res.Diff != nil {
		fmt.Fprintln(w)
		return diffreport.Render(w, res.Diff)
	}
	return nil
}
