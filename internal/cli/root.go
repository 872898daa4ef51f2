package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/kiosk/internal/config"
	"github.com/roach88/kiosk/internal/logging"
	"github.com/roach88/kiosk/internal/schema"
	"github.com/roach88/kiosk/internal/store"
)

// RootOptions holds the resolved configuration shared by all commands.
type RootOptions struct {
	*config.Config

	Log zerolog.Logger

	// StoreOpts are applied after the defaults when a command opens the
	// store. Tests use them to pin the clock and id generator.
	StoreOpts []store.Option
}

// NewRootCommand creates the root command for the kiosk CLI.
func NewRootCommand(storeOpts ...store.Option) *cobra.Command {
	opts := &RootOptions{
		Config:    config.Default(),
		Log:       zerolog.Nop(),
		StoreOpts: storeOpts,
	}

	cmd := &cobra.Command{
		Use:   "kiosk",
		Short: "kiosk - commerce resource storage",
		Long: `Operate on the relational store behind a headless commerce backend.

Every setting can also be given as a KIOSK_* environment variable or in the
file named by --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	opts.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewValuesCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewUpsertCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup resolves the configuration and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if err := config.Load(cmd.Root().PersistentFlags()); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if err := o.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	level := o.LogLevel
	if o.Verbose {
		level = "debug"
	}
	log, err := logging.New(cmd.ErrOrStderr(), level, o.LogFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Log = log
	return nil
}

// openStore opens the configured database with document validation on.
func (o *RootOptions) openStore(ctx context.Context) (*store.Store, error) {
	validator, err := schema.New()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load document schema", err)
	}
	storeOpts := append([]store.Option{
		store.WithLogger(o.Log),
		store.WithValidator(validator),
	}, o.StoreOpts...)

	o.Log.Debug().Str("dialect", o.Dialect).Msg("opening store")
	st, err := store.Open(ctx, o.StoreOptions(), storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s database", o.Dialect), err)
	}
	return st, nil
}

// withStore opens the store, runs fn and closes the store.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := o.openStore(ctx)
	if err != nil {
		return o.fail(cmd, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			o.Log.Error().Err(closeErr).Msg("error closing database")
		}
	}()
	return fn(ctx, st)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// fail reports err in the JSON envelope when asked to and converts it to
// an ExitError.
func (o *RootOptions) fail(cmd *cobra.Command, err error) error {
	exitErr := AsExitError(err)
	if o.Format == config.FormatJSON {
		_ = o.formatter(cmd).Error(ErrorCode(err), exitErr.Error(), nil)
	}
	return exitErr
}
