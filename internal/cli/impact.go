package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/impact"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
	"github.com/roach88/scriptdelta/internal/tracker"
)

// ImpactOptions holds flags for the impact command.
type ImpactOptions struct {
	*RootOptions
	Scene string
	Mode  string
}

// ImpactResult is the impact command's output.
type ImpactResult struct {
	ScriptID string                 `json:"script_id"`
	Changes  []ir.ChangeEvent       `json:"changes"`
	Impact   *ir.ImpactAnalysis     `json:"impact"`
	Strategy orchestrator.Strategy  `json:"strategy"`
	Scene    *SceneDependencyResult `json:"scene,omitempty"`
}

// SceneDependencyResult describes one scene's neighbourhood in the new version.
type SceneDependencyResult struct {
	ID string `json:"id"`
	impact.SceneDeps
}

// NewImpactCommand creates the impact command.
func NewImpactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImpactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "impact <old> <new>",
		Short: "Show what an edit touches without analyzing it",
		Long: `Diff two versions of a script and propagate the changes through the
dependency graph. Prints the change events, the directly and indirectly
impacted elements, the impact level and the strategy the orchestrator
would choose. Nothing is analyzed or recorded.

Examples:
  scriptdelta impact draft-v1.yaml draft-v2.yaml
  scriptdelta impact draft-v1.yaml draft-v2.yaml --scene s3
  scriptdelta impact --mode conservative v1.cue v2.cue --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scene, "scene", "", "also show the dependencies of this scene")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "performance mode used for the strategy (default from config)")

	return cmd
}

func runImpact(opts *ImpactOptions, oldPath, newPath string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	mode := orchestrator.Mode(opts.config().Analysis.Mode)
	if opts.Mode != "" {
		m, err := orchestrator.ParseMode(opts.Mode)
		if err != nil {
			return NewExitError(ExitCommandError, err.Error())
		}
		mode = m
	}

	oldScript, err := loadScriptOrExit(oldPath)
	if err != nil {
		return err
	}
	newScript, err := loadScriptOrExit(newPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	changes := tracker.New().CompareVersions(newScript.ID, oldScript, newScript)
	analyzer := impact.NewAnalyzer()
	analysis := analyzer.AnalyzeImpact(ctx, changes, newScript)

	result := ImpactResult{
		ScriptID: newScript.ID,
		Changes:  changes,
		Impact:   analysis,
		Strategy: orchestrator.StrategyCached,
	}
	if len(changes) > 0 {
		result.Strategy = orchestrator.ChooseStrategy(mode, analysis, changes)
	}

	if opts.Scene != "" {
		if newScript.SceneIndex(opts.Scene) < 0 {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scene %q not found in %s", opts.Scene, newPath), nil)
		}
		result.Scene = &SceneDependencyResult{ID: opts.Scene, SceneDeps: analyzer.SceneDependencies(opts.Scene)}
	}
	formatter.VerboseLog("Graph has %d node(s)", analyzer.Graph().Len())

	return formatter.Result(result, func(w io.Writer) error {
		writeImpact(w, &result)
		return nil
	})
}

func writeImpact(w io.Writer, r *ImpactResult) {
	if len(r.Changes) == 0 {
		fmt.Fprintf(w, "Script %s: no changes\n", r.ScriptID)
		return
	}

	fmt.Fprintf(w, "Script %s: %d change(s), impact %s, strategy %s\n", r.ScriptID, len(r.Changes), r.Impact.Level, r.Strategy)
	for _, c := range r.Changes {
		fmt.Fprintf(w, "  %-12s %s\n", c.Kind, c.Description)
	}
	fmt.Fprintf(w, "\nDirect:   %v\n", r.Impact.DirectImpact)
	fmt.Fprintf(w, "Indirect: %v\n", r.Impact.IndirectImpact)
	for _, p := range r.Impact.PropagationPaths {
		fmt.Fprintf(w, "  path %v\n", p)
	}
	fmt.Fprintf(w, "Estimated analysis time: %s\n", r.Impact.EstimatedTime)

	if s := r.Scene; s != nil {
		fmt.Fprintf(w, "\nScene %s: characters %v, previous %v, next %v\n", s.ID, s.Characters, s.PreviousScenes, s.NextScenes)
	}
}
