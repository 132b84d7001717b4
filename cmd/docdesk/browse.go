package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fruitsalade/docdesk/internal/browser"
	"github.com/fruitsalade/docdesk/internal/events"
	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/internal/metrics"
	"github.com/fruitsalade/docdesk/internal/settings"
	"github.com/fruitsalade/docdesk/internal/tui"
	"github.com/fruitsalade/docdesk/pkg/vpath"
)

func newBrowseCmd(a *app) *cobra.Command {
	var downloadDir string

	cmd := &cobra.Command{
		Use:   "browse [folder]",
		Short: "Browse your files interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if a.cfg.MetricsAddr != "" {
				stop := serveMetrics(a.cfg.MetricsAddr)
				defer stop()
			}

			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			bc := events.NewBroadcaster()
			b := browser.New(a.client, sess.UserID, browser.Options{
				Start:        vpath.Parse(start),
				RefreshDelay: a.cfg.RefreshDelay,
				MaxParallel:  a.cfg.MaxParallelUploads,
				Events:       bc,
			})

			dark := a.store.DarkMode()
			if a.store.Theme() == settings.ThemeSystem {
				dark = lipgloss.HasDarkBackground()
			}

			m := tui.New(ctx, b, tui.Options{
				Username:    sess.Username,
				Dark:        dark,
				DownloadDir: downloadDir,
				Events:      bc,
			})
			defer m.Close()

			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&downloadDir, "download-dir", "d", ".", "directory for downloaded files")
	return cmd
}

// serveMetrics exposes the Prometheus handler for the lifetime of the
// session.
func serveMetrics(addr string) func() {
	srv := &http.Server{
		Addr:    addr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", logging.Err(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
