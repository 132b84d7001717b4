package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fruitsalade/docdesk/internal/settings"
)

func (a *app) settings(userID int64) *settings.Service {
	s := settings.New(a.client, a.store, userID)
	s.SystemDark = lipgloss.HasDarkBackground
	return s
}

func newProfileCmd(a *app) *cobra.Command {
	var fullName string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			svc := a.settings(sess.UserID)

			var p settings.Profile
			if cmd.Flags().Changed("full-name") {
				p, err = svc.UpdateProfile(cmd.Context(), fullName)
			} else {
				p, err = svc.LoadProfile(cmd.Context())
			}
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Username:  %s\n", p.Username)
			fmt.Fprintf(out, "Full name: %s\n", p.FullName)
			fmt.Fprintf(out, "Email:     %s\n", p.Email)
			if p.UserType != "" {
				fmt.Fprintf(out, "Type:      %s\n", p.UserType)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "full-name", "", "set a new full name")
	return cmd
}

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			in := newPrompter(cmd)

			pw, err := in.password("New password: ")
			if err != nil {
				return err
			}
			again, err := in.password("Confirm new password: ")
			if err != nil {
				return err
			}

			if err := a.settings(sess.UserID).ChangePassword(cmd.Context(), pw, again); err != nil {
				return describe(err)
			}
			fmt.Fprintln(out, "Password updated.")
			return nil
		},
	}
}

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system]",
		Short:     "Show or set the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{settings.ThemeLight, settings.ThemeDark, settings.ThemeSystem},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.settings(a.store.Current().UserID)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				theme, dark := svc.Theme()
				fmt.Fprintf(out, "Theme: %s (dark mode %v)\n", theme, dark)
				return nil
			}

			dark, err := svc.SetTheme(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Theme set to %s (dark mode %v)\n", args[0], dark)
			return nil
		},
	}
}
