package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/diffreport"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
)

// DefaultDebounce is how long a file must stay quiet before it is reloaded.
const DefaultDebounce = 200 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	ScriptID string
	Mode     string
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <script>",
		Short: "Re-analyze a script every time it is saved",
		Long: `Analyze a script, then watch the file and re-analyze each saved version
incrementally against the previous one. Each analysis is followed by a
diff against the previous report.

A version that fails to load is reported and skipped; the next good save
is compared with the last good version.

Example:
  scriptdelta watch draft.yaml
  scriptdelta watch --db history.db --debounce 500ms draft.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ScriptID, "script-id", "", "history key (defaults to the script's id)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "performance mode (aggressive|balanced|conservative)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period before a change is picked up")

	return cmd
}

// watchSession carries the state of one watch run.
type watchSession struct {
	formatter *OutputFormatter
	orch      *orchestrator.Orchestrator
	scriptID  string
	prev      *ir.Script
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	if opts.Debounce < 0 {
		return NewExitError(ExitCommandError, "--debounce must be non-negative")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve path", err)
	}

	script, err := loadScriptOrExit(abs)
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	orch, err := opts.newOrchestrator(st, opts.Mode)
	if err != nil {
		return err
	}
	defer orch.Close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create file watcher", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often save by renaming a temp file over
	// the original, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}

	session := &watchSession{
		formatter: opts.newFormatter(cmd),
		orch:      orch,
		scriptID:  opts.ScriptID,
	}
	if session.scriptID == "" {
		session.scriptID = script.ID
	}

	if err := session.analyze(ctx, script); err != nil {
		return err
	}

	status := cmd.OutOrStdout()
	if opts.Format == "json" {
		status = cmd.ErrOrStderr()
	}
	fmt.Fprintf(status, "Watching %s. Press Ctrl-C to stop.\n", path)
	slog.Info("watch started", "path", abs, "script_id", session.scriptID)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped", "script_id", session.scriptID)
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("script changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			fire = timer.C

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", werr)

		case <-fire:
			fire = nil
			next, errs := LoadScript(abs, LoadModeFailFast)
			if len(errs) > 0 {
				session.reportLoadError(errs[0])
				continue
			}
			if err := session.analyze(ctx, next); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				session.reportError(ErrCodeAnalysis, err.Error())
			}
		}
	}
}

// analyze runs one analysis against the previous good version and prints
// it without waiting for the preloads it schedules. The initial analysis
// fails the command; later ones are reported.
func (s *watchSession) analyze(ctx context.Context, script *ir.Script) error {
	res, err := s.orch.AnalyzeChanges(ctx, s.scriptID, s.prev, script, orchestrator.AnalyzeOptions{
		GenerateDiff: s.prev != nil,
		DiffFormat:   diffreport.FormatDetailed,
	})
	if err != nil {
		if s.prev == nil {
			return s.formatter.Fail(ExitFailure, ErrCodeAnalysis, fmt.Sprintf("analysis failed: %v", err), nil)
		}
		return err
	}
	s.prev = script

	return s.formatter.Result(res, func(w io.Writer) error {
		if err := writeAnalysis(w, res); err != nil {
			return err
		}
		fmt.Fprintln(w)
		return nil
	})
}

func (s *watchSession) reportLoadError(err error) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		s.reportError(loadErr.Code, loadErr.Message)
		return
	}
	s.reportError(ErrCodeGeneric, err.Error())
}

func (s *watchSession) reportError(code, message string) {
	slog.Warn("watch iteration failed", "script_id", s.scriptID, "code", code, "error", message)
	if err := s.formatter.Error(code, message, nil); err != nil {
		slog.Error("failed to write error", "error", err)
	}
}
