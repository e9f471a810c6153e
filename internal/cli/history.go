package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// ScriptSummary is one row of the script listing.
type ScriptSummary struct {
	ID           string    `json:"id"`
	Reports      int       `json:"reports"`
	LastAnalyzed time.Time `json:"last_analyzed,omitempty"`
}

// HistoryResult is the recorded history of one script.
type HistoryResult struct {
	ScriptID string               `json:"script_id"`
	Changes  []ir.ChangeEvent     `json:"changes"`
	Reports  []store.ReportRecord `json:"reports"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [script-id]",
		Short: "Show recorded changes and reports",
		Long: `Show the analysis history recorded in the history database.

Without a script id, lists every script with recorded history. With one,
shows its most recent change events and every stored report.

Examples:
  scriptdelta history --db history.db
  scriptdelta history --db history.db draft --limit 20
  scriptdelta history --db history.db draft --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptID := ""
			if len(args) == 1 {
				scriptID = args[0]
			}
			return runHistory(opts, scriptID, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "most recent change events to show (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, scriptID string, cmd *cobra.Command) error {
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

	if scriptID == "" {
		scripts, err := listScripts(ctx, st)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		return formatter.Result(scripts, func(w io.Writer) error {
			writeScriptList(w, scripts)
			return nil
		})
	}

	changes, err := st.ReadChanges(ctx, scriptID, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	reports, err := st.ListReports(ctx, scriptID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if len(changes) == 0 && len(reports) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no history for script %q", scriptID), nil)
	}

	result := HistoryResult{ScriptID: scriptID, Changes: changes, Reports: reports}
	return formatter.Result(result, func(w io.Writer) error {
		writeHistory(w, &result)
		return nil
	})
}

// openHistory opens an existing history database for reading.
func (o *RootOptions) openHistory() (*store.Store, error) {
	path := o.config().Store.Path
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no history database: pass --db or set store.path")
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	return o.openStore()
}

func listScripts(ctx context.Context, st *store.Store) ([]ScriptSummary, error) {
	ids, err := st.ScriptIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ScriptSummary, 0, len(ids))
	for _, id := range ids {
		reports, err := st.ListReports(ctx, id)
		if err != nil {
			return nil, err
		}
		row := ScriptSummary{ID: id, Reports: len(reports)}
		if n := len(reports); n > 0 {
			row.LastAnalyzed = reports[n-1].Timestamp
		}
		out = append(out, row)
	}
	return out, nil
}

func writeScriptList(w io.Writer, scripts []ScriptSummary) {
	if len(scripts) == 0 {
		fmt.Fprintln(w, "No history recorded.")
		return
	}
	for _, s := range scripts {
		last := "never"
		if !s.LastAnalyzed.IsZero() {
			last = s.LastAnalyzed.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-24s %3d report(s), last analyzed %s\n", s.ID, s.Reports, last)
	}
}

func writeHistory(w io.Writer, r *HistoryResult) {
	fmt.Fprintf(w, "Script %s\n", r.ScriptID)

	fmt.Fprintf(w, "\nChanges (%d):\n", len(r.Changes))
	for _, c := range r.Changes {
		actor := ""
		if c.ActorID != "" {
			actor = " by " + c.ActorID
		}
		fmt.Fprintf(w, "  %s %-12s %-28s %s%s\n",
			c.Timestamp.Format(time.RFC3339), c.Kind, strings.Join(c.Location.Path, "."), c.Description, actor)
	}

	fmt.Fprintf(w, "\nReports (%d):\n", len(r.Reports))
	for _, rec := range r.Reports {
		fmt.Fprintf(w, "  #%-4d %s %-12s %d issue(s)\n", rec.Seq, rec.Timestamp.Format(time.RFC3339), rec.Strategy, rec.TotalIssues)
	}
}
