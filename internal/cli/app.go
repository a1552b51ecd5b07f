package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/thinkgraph/internal/audit"
	"github.com/roach88/thinkgraph/internal/config"
	"github.com/roach88/thinkgraph/internal/graphstore"
	"github.com/roach88/thinkgraph/internal/logging"
	"github.com/roach88/thinkgraph/internal/metrics"
	"github.com/roach88/thinkgraph/internal/snapshot"
	"github.com/roach88/thinkgraph/internal/store"
)

// app is the set of services one command invocation works with.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *store.Store
	graph     *graphstore.Store
	snapshots *snapshot.Engine
	audit     *audit.Trail
	meta      graphstore.Meta
}

// newFormatter builds the formatter for cmd's output streams.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// resolveConfig loads the config file and environment, then applies flag
// overrides.
func resolveConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Actor != "" {
		cfg.Actor = opts.Actor
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp resolves configuration and opens the database. Failures are
// reported through out and returned as ExitErrors.
func openApp(opts *RootOptions, out *OutputFormatter) (*app, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	out.VerboseLog("opening database %s", cfg.Database.Path)
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		_ = log.Sync()
		_ = out.Error(ErrCodeStorage, err.Error(), map[string]string{"path": cfg.Database.Path})
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	gs := graphstore.New(db, log)
	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		graph:     gs,
		snapshots: snapshot.New(gs),
		audit:     audit.NewTrail(db, log),
		meta:      graphstore.Meta{Actor: cfg.Actor, Reason: opts.Reason},
	}, nil
}

// Close releases the database and flushes the logger.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(a *app, out *OutputFormatter) error) error {
	out := newFormatter(cmd, opts)
	a, err := openApp(opts, out)
	if err != nil {
		return err
	}
	defer a.Close()
	err = fn(a, out)
	a.writeMetrics(opts.MetricsFile)
	return err
}

// writeMetrics dumps the process metrics to path. A failed dump is logged
// and never changes the command's outcome.
func (a *app) writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		a.log.Warn("failed to write metrics file", zap.String("path", path), zap.Error(err))
	}
}
