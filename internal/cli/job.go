package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
	"habitbot/internal/reminder"
	"habitbot/internal/storage"
)

func newJobCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect, pause or resume a habit's reminder job",
		Long: `Inspect, pause or resume the reminder job of a habit without deleting it.

A running server sees the change at the job's next trigger. A job that was
paused when the server started is armed again on the next restart.`,
	}
	cmd.AddCommand(
		newJobStatusCommand(opts),
		newJobToggleCommand(opts, "pause", false),
		newJobToggleCommand(opts, "resume", true),
	)
	return cmd
}

func parseHabitID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid habit id %q", raw)
	}
	return id, nil
}

func newJobStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status HABIT_ID",
		Short: "Show the reminder job of a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHabitID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), opts, func(ctx context.Context, base *app.Base, st *storage.Store) error {
				// registry reads only; no trigger or sender is needed
				mgr := reminder.NewManager(st, nil, nil, base.Log)
				ok, err := mgr.Exists(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "habit %d has no reminder job\n", id)
					return nil
				}
				j, err := st.Q(ctx).GetJob(ctx, reminder.JobName(id))
				if err != nil {
					return err
				}
				last := "never"
				if j.LastRunAt != nil {
					last = j.LastRunAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "job %s every=%dd enabled=%t runs=%d last_run=%s\n",
					j.Name, j.IntervalDays, j.Enabled, j.TotalRunCount, last)
				return nil
			})
		},
	}
}

func newJobToggleCommand(opts *options, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " HABIT_ID",
		Short: use + " the reminder job of a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHabitID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), opts, func(ctx context.Context, _ *app.Base, st *storage.Store) error {
				name := reminder.JobName(id)
				if err := st.Q(ctx).SetJobEnabled(ctx, name, enabled); err != nil {
					return fmt.Errorf("job %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s enabled=%t\n", name, enabled)
				return nil
			})
		},
	}
}
