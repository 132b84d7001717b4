package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/pkg/client"
)

func newLoginCmd(a *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := newPrompter(cmd)
			var err error
			if username == "" {
				if username, err = in.line("Username: "); err != nil {
					return err
				}
			}
			if username == "" {
				return errors.New("username is required")
			}
			password, err := in.password("Password: ")
			if err != nil {
				return err
			}

			resp, err := a.client.Login(cmd.Context(), username, password)
			if _, rejected := client.AsServerError(err); rejected {
				return err
			}
			if err != nil {
				return describe(err)
			}
			if err := a.store.Login(resp); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			logging.Info("logged in", logging.String("username", resp.Username), logging.Int64("user_id", resp.ID))
			fmt.Fprintf(out, "Logged in as %s (%s). Session saved to %s\n", resp.Username, resp.UserType, a.store.Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.Current().Valid() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err := a.store.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			sess, err := a.store.Require()
			if err != nil {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}
			fmt.Fprintf(out, "User:    %s (id %d)\n", sess.Username, sess.UserID)
			fmt.Fprintf(out, "Type:    %s\n", sess.UserType)
			fmt.Fprintf(out, "Server:  %s\n", a.cfg.ServerURL)
			if exp, ok := a.store.TokenExpiry(); ok {
				state := "valid"
				if time.Now().After(exp) {
					state = "expired"
				}
				fmt.Fprintf(out, "Token:   %s until %s\n", state, exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}
