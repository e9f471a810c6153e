package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/diffreport"
	"github.com/roach88/scriptdelta/internal/ir"
)

// TrendOptions holds flags for the trend command.
type TrendOptions struct {
	*RootOptions
	Limit int
}

// TrendPoint is one stored diff in the trend window.
type TrendPoint struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   ir.DiffSummary `json:"summary"`
}

// TrendResult is the trend command's output.
type TrendResult struct {
	ScriptID string           `json:"script_id"`
	Points   []TrendPoint     `json:"points"`
	Trend    diffreport.Trend `json:"trend"`
}

// NewTrendCommand creates the trend command.
func NewTrendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trend <script-id>",
		Short: "Summarize whether a script is getting more consistent",
		Long: `Compute the consistency trend of a script from its stored diff reports.

The trend is improving when improvements outweigh degradations by more
than 20%, degrading in the opposite case, and stable otherwise. Volatility
is the spread of the number of changes per diff.

Examples:
  scriptdelta trend --db history.db draft
  scriptdelta trend --db history.db draft --limit 5 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrend(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", diffreport.DefaultMaxHistory, "most recent diffs to consider (0 = all)")

	return cmd
}

func runTrend(opts *TrendOptions, scriptID string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	st, err := opts.openHistory()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	diffs, err := st.ReadDiffs(ctx, scriptID, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	result := TrendResult{
		ScriptID: scriptID,
		Points:   make([]TrendPoint, 0, len(diffs)),
		Trend:    diffreport.TrendAnalysis(diffs),
	}
	for _, d := range diffs {
		result.Points = append(result.Points, TrendPoint{ID: d.ID, Timestamp: d.Timestamp, Summary: d.Summary})
	}

	return formatter.Result(result, func(w io.Writer) error {
		writeTrend(w, &result)
		return nil
	})
}

func writeTrend(w io.Writer, r *TrendResult) {
	if len(r.Points) == 0 {
		fmt.Fprintf(w, "Script %s: no diffs recorded, trend %s\n", r.ScriptID, r.Trend.Direction)
		return
	}

	fmt.Fprintf(w, "Script %s: %s over %d diff(s)\n", r.ScriptID, r.Trend.Direction, len(r.Points))
	fmt.Fprintf(w, "  average improvements %.1f, degradations %.1f, volatility %.1f\n",
		r.Trend.AverageImprovements, r.Trend.AverageDegradations, r.Trend.Volatility)
	for _, p := range r.Points {
		fmt.Fprintf(w, "  %s  +%d improved  -%d degraded  %d change(s)\n",
			p.Timestamp.Format(time.RFC3339), p.Summary.Improvements, p.Summary.Degradations, p.Summary.TotalChanges)
	}
}
