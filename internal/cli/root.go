// Package cli builds the habitbot command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
	"habitbot/internal/storage"
)

const defaultConfigPath = "./config.yaml"

type options struct {
	configPath string
}

// NewRootCommand returns the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "habitbot",
		Short: "Habit tracker REST API with Telegram reminders",
		Long: `habitbot serves a REST API for tracking habits and sends a Telegram
reminder at each habit's time of day.

Configuration is read from a JSON or YAML file. Secrets may be supplied
through HABITBOT_* environment variables instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config file (json or yaml)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newUserCommand(opts),
		newJobCommand(opts),
	)
	return root
}

// Execute runs the command tree with ctx and returns the first error.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

// withStore bootstraps config and logging, opens the store, runs fn and
// closes everything.
func withStore(ctx context.Context, opts *options, fn func(ctx context.Context, base *app.Base, st *storage.Store) error) error {
	base, err := app.Bootstrap(opts.configPath)
	if err != nil {
		return err
	}
	defer base.Close()

	st, err := base.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = st.Close() }()
	return fn(ctx, base, st)
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(_ context.Context, _ *app.Base, st *storage.Store) error {
				fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", st.Dialect())
				return nil
			})
		},
	}
}
