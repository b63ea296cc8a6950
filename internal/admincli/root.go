// Package admincli implements fundctl, the operator command line for a
// fundkeeper database: it applies migrations and manages accounts without
// going through the HTTP API, which is how the first administrator is made.
package admincli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/storage"
	"github.com/spf13/cobra"
)

// openStorage is a test seam for storage.Open.
var openStorage = storage.Open

type options struct {
	dsn      string
	logLevel string
	out      io.Writer
}

// NewRootCmd builds the fundctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	var defaults config.Config
	defaults.LoadDefaults()

	opts := &options{out: out}

	cmd := &cobra.Command{
		Use:           "fundctl",
		Short:         "Administer a fundkeeper database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", defaults.DatabaseDSN, `database DSN, or "memory"`)
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(migrateCmd(opts))
	cmd.AddCommand(userCmd(opts))

	return cmd
}

// Execute runs fundctl with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdout).ExecuteContext(ctx)
}

func (o *options) logger() (logging.Logger, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewJSONLogger(os.Stderr, level), nil
}

// withStorage opens storage, applies migrations and hands it to fn.
func (o *options) withStorage(ctx context.Context, fn func(*storage.Storage, logging.Logger) error) error {
	logger, err := o.logger()
	if err != nil {
		return err
	}

	st, err := openStorage(ctx, o.dsn)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return fn(st, logger)
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorage(cmd.Context(), func(*storage.Storage, logging.Logger) error {
				_, err := fmt.Fprintln(opts.out, "migrations applied")
				return err
			})
		},
	}
}
