package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
	logx "habitbot/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.configPath)
		},
	}
}

func serve(ctx context.Context, cfgPath string) error {
	base, err := app.Bootstrap(cfgPath)
	if err != nil {
		return err
	}
	a, err := app.NewApp(ctx, base)
	if err != nil {
		base.Close()
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx, app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
		if a.Err() == nil {
			reason = app.StopUnknown
		}
	}
	runErr := a.Err()
	if runErr != nil {
		base.Log.Error("app failed", logx.Err(runErr))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	return runErr
}
