package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"audioconv/internal/api"
	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/services"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API clients",
	}
	userCmd.AddCommand(newUserCreateCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserShowCommand(ctx))
	return userCmd
}

func newUserCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Register a client and print its id and secret token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				user, err := api.NewUserService(store, logging.NewNop()).RegisterUser(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, services.ErrConflict) {
						return fmt.Errorf("user name %q is already taken", api.NormalizeDisplayName(args[0]))
					}
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.RegisterUserResponse{UserID: user.UserID, Token: user.SecretToken})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "User ID: %d\n", user.UserID)
				fmt.Fprintf(out, "Token:   %s\n", user.SecretToken)
				fmt.Fprintln(out, "Store the token now; it is required for every upload.")
				return nil
			})
		},
	}
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				users, err := store.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					type userView struct {
						UserID    int64  `json:"user_id"`
						Name      string `json:"user_name"`
						CreatedAt string `json:"created_at"`
					}
					views := make([]userView, 0, len(users))
					for _, u := range users {
						views = append(views, userView{UserID: u.UserID, Name: u.DisplayName, CreatedAt: api.FormatTime(u.CreatedAt)})
					}
					return writeJSON(cmd, views)
				}
				if len(users) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users registered")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{strconv.FormatInt(u.UserID, 10), u.DisplayName, formatTimestamp(api.FormatTime(u.CreatedAt))})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Created"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	}
}

func newUserShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a client and its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				name := api.NormalizeDisplayName(args[0])
				user, err := store.GetUserByName(cmd.Context(), name)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %q not found", name)
				}
				jobs, err := api.NewJobService(store).ListForUser(cmd.Context(), user.UserID)
				if err != nil {
					return err
				}
				if jobs == nil {
					jobs = []api.Job{}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, struct {
						UserID    int64     `json:"user_id"`
						Name      string    `json:"user_name"`
						CreatedAt string    `json:"created_at"`
						Jobs      []api.Job `json:"jobs"`
					}{user.UserID, user.DisplayName, api.FormatTime(user.CreatedAt), jobs})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "User ID: %d\n", user.UserID)
				fmt.Fprintf(out, "Name:    %s\n", user.DisplayName)
				fmt.Fprintf(out, "Created: %s\n", formatTimestamp(api.FormatTime(user.CreatedAt)))
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTable(
					[]string{"Job", "User", "Status", "Size", "Created", "Error"},
					buildJobRows(jobs, shouldColorize(out)),
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
