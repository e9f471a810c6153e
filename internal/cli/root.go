package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptdelta/internal/config"
	"github.com/roach88/scriptdelta/internal/heuristic"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
	"github.com/roach88/scriptdelta/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DBPath     string // overrides store.path

	// Config is loaded by the root command before any subcommand runs.
	// Nil means defaults, which is what subcommands built on their own see.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the scriptdelta CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "scriptdelta",
		Version: ir.ToolVersion,
		Short:   "scriptdelta - incremental script consistency analysis",
		Long: `Re-analyze only what changed between two versions of a script.

Edits are diffed into change events, propagated through the scene and
character dependency graph, and only the impacted elements are re-analyzed.
Fresh results are merged with the preserved ones and compared with the
previous report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to history database (overrides store.path)")

	// Add subcommands
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewImpactCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTrendCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup validates global flags, loads the configuration and installs the
// default logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DBPath != "" {
		cfg.Store.Path = o.DBPath
	}
	o.Config = &cfg

	slog.SetDefault(cfg.Log.NewLogger(cmd.ErrOrStderr(), o.Verbose))
	return nil
}

// config returns the loaded configuration, or the defaults.
func (o *RootOptions) config() config.Config {
	if o.Config != nil {
		return *o.Config
	}
	cfg := config.Default()
	if o.DBPath != "" {
		cfg.Store.Path = o.DBPath
	}
	return cfg
}

// openStore opens the configured history database. It returns nil when no
// path is configured.
func (o *RootOptions) openStore() (*store.Store, error) {
	path := o.config().Store.Path
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// newOrchestrator builds an orchestrator over the rule-based analyzer,
// persisting to st when it is non-nil.
func (o *RootOptions) newOrchestrator(st *store.Store, mode string) (*orchestrator.Orchestrator, error) {
	cfg := o.config()
	ocfg := cfg.Orchestrator()
	if mode != "" {
		m, err := orchestrator.ParseMode(mode)
		if err != nil {
			return nil, NewExitError(ExitCommandError, err.Error())
		}
		ocfg.Mode = m
	}

	opts := []orchestrator.Option{
		orchestrator.WithHistoryLimits(cfg.History.MaxEventsPerScript, cfg.History.MaxScripts),
	}
	if st != nil {
		opts = append(opts, orchestrator.WithSink(st))
	}
	return orchestrator.New(heuristic.New(), ocfg, opts...), nil
}

// newFormatter builds the output formatter for a command.
func (o *RootOptions) newFormatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
