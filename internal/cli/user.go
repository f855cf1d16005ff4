package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"habitbot/internal/app"
	"habitbot/internal/auth"
	"habitbot/internal/config"
	"habitbot/internal/storage"
)

func newUserCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts and issue API tokens",
	}
	cmd.AddCommand(
		newUserAddCommand(opts),
		newUserListCommand(opts),
		newUserChatCommand(opts),
		newUserTokenCommand(opts),
	)
	return cmd
}

func newUserAddCommand(opts *options) *cobra.Command {
	var (
		chatID int64
		staff  bool
	)
	cmd := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			if email == "" {
				return errors.New("email is required")
			}
			u := storage.User{Email: email, IsStaff: staff}
			if cmd.Flags().Changed("chat-id") {
				u.TelegramChatID = &chatID
			}
			return withStore(cmd.Context(), opts, func(ctx context.Context, _ *app.Base, st *storage.Store) error {
				id, err := st.Q(ctx).CreateUser(ctx, u)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d created\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "Telegram chat id that receives reminders")
	cmd.Flags().BoolVar(&staff, "staff", false, "grant access to every user's habits")
	return cmd
}

func newUserListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, _ *app.Base, st *storage.Store) error {
				users, err := st.Q(ctx).ListUsers(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tEMAIL\tCHAT\tSTAFF")
				for _, u := range users {
					chat := "-"
					if u.TelegramChatID != nil {
						chat = strconv.FormatInt(*u.TelegramChatID, 10)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", u.ID, u.Email, chat, u.IsStaff)
				}
				return tw.Flush()
			})
		},
	}
}

func newUserChatCommand(opts *options) *cobra.Command {
	var unlink bool
	cmd := &cobra.Command{
		Use:   "chat EMAIL [CHAT_ID]",
		Short: "Link or unlink the Telegram chat of an account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var chatID *int64
			switch {
			case unlink:
			case len(args) == 2:
				v, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid chat id %q", args[1])
				}
				chatID = &v
			default:
				return errors.New("pass CHAT_ID or --unlink")
			}
			return withStore(cmd.Context(), opts, func(ctx context.Context, _ *app.Base, st *storage.Store) error {
				q := st.Q(ctx)
				u, err := q.GetUserByEmail(ctx, strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("find user: %w", err)
				}
				if err := q.SetUserChatID(ctx, u.ID, chatID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d updated\n", u.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unlink, "unlink", false, "remove the linked chat")
	return cmd
}

func newUserTokenCommand(opts *options) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token EMAIL",
		Short: "Print a bearer token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, base *app.Base, st *storage.Store) error {
				u, err := st.Q(ctx).GetUserByEmail(ctx, strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("find user: %w", err)
				}
				life := ttl
				if !cmd.Flags().Changed("ttl") {
					life = config.DurationOr(base.Cfg.Auth.TokenTTL, auth.DefaultTokenTTL)
				}
				tok, err := auth.Issue([]byte(strings.TrimSpace(base.Cfg.Auth.JWTSecret)), u.ID, life, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}
