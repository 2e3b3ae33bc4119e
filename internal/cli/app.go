package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pantry/internal/activity"
	"github.com/roach88/pantry/internal/catalog"
	"github.com/roach88/pantry/internal/config"
	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/hierarchy"
	"github.com/roach88/pantry/internal/lookup"
	"github.com/roach88/pantry/internal/settings"
)

// app is the set of stores one command invocation works with. Databases are
// opened on first use and closed when the command returns.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	out       *OutputFormatter
	manager   *conn.Manager
	hierarchy *hierarchy.Store
	activity  *activity.Log
	catalog   *catalog.Catalog
	settings  *settings.Store
	lookup    *lookup.Client
	now       func() time.Time
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func openApp(opts *RootOptions, cmd *cobra.Command, out *OutputFormatter) (*app, error) {
	path, explicit := config.ResolvePath(opts.ConfigPath)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, &codedError{code: ErrCodeConfig, exit: ExitCommandError, err: err}
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	logger := newLogger(cfg.Logging, opts.Verbose, cmd.ErrOrStderr())
	out.VerboseLog("Using data directory %s", cfg.DataDir)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var refs catalog.RefGenerator = catalog.UUIDv7Generator{}
	if opts.Refs != nil {
		refs = opts.Refs
	}

	m := conn.NewManager(cfg.DataDir,
		conn.WithSchemas(
			hierarchy.Schema(cfg.Hierarchy.SeedRooms),
			catalog.Schema(),
			activity.Schema(),
			settings.Schema(),
		),
		conn.WithLogger(logger),
	)

	log := activity.New(m, activity.WithClock(now), activity.WithLogger(logger))
	return &app{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		manager: m,
		hierarchy: hierarchy.New(m,
			hierarchy.WithSeedRooms(cfg.Hierarchy.SeedRooms),
			hierarchy.WithRejectDuplicates(cfg.Hierarchy.RejectDuplicates),
			hierarchy.WithLogger(logger),
		),
		activity: log,
		catalog: catalog.New(m,
			catalog.WithActivityLog(log),
			catalog.WithRefGenerator(refs),
			catalog.WithLogger(logger),
		),
		settings: settings.New(m, logger),
		lookup: lookup.NewClient(cfg.Lookup.BaseURL,
			lookup.WithLocale(cfg.Lookup.Locale),
			lookup.WithTimeout(cfg.Lookup.Timeout),
			lookup.WithLogger(logger),
		),
		now: now,
	}, nil
}

func (a *app) close() {
	if err := a.manager.CloseAll(); err != nil {
		a.logger.Warn("failed to close databases", "error", err)
	}
}

// withApp opens the stores, runs fn and reports its error through the
// formatter.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	out := newFormatter(opts, cmd)
	a, err := openApp(opts, cmd, out)
	if err != nil {
		return fail(out, err)
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, a); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return fail(out, err)
	}
	return nil
}
