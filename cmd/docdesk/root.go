package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/docdesk/internal/config"
	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/internal/metrics"
	"github.com/fruitsalade/docdesk/internal/session"
	"github.com/fruitsalade/docdesk/pkg/client"
	"github.com/fruitsalade/docdesk/pkg/models"
	"github.com/fruitsalade/docdesk/pkg/retry"
)

// app is the state shared by every command, built once in the root
// command's pre-run.
type app struct {
	cfgFile   string
	server    string
	logLevel  string
	logFormat string

	cfg    *config.Config
	store  *session.Store
	client *client.Client
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "docdesk",
		Short:         "Terminal client for the document management server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/docdesk/config.yaml)")
	flags.StringVar(&a.server, "server", "", "server URL (overrides DOCDESK_SERVER)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: console or json")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newLsCmd(a),
		newUploadCmd(a),
		newRmCmd(a),
		newMkdirCmd(a),
		newGetCmd(a),
		newDocumentCmd(a, "certificate"),
		newDocumentCmd(a, "transcript"),
		newProfileCmd(a),
		newPasswdCmd(a),
		newThemeCmd(a),
		newBrowseCmd(a),
	)
	return rootCmd
}

func (a *app) setup() error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.server != "" {
		cfg.ServerURL = a.server
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	a.store = session.NewStore(cfg.StateDir)
	if err := a.store.Load(); err != nil {
		logging.Warn("state file unreadable, starting logged out", logging.Err(err))
	}

	a.client = client.New(client.Config{
		BaseURL:     cfg.ServerURL,
		Timeout:     cfg.Timeout,
		AuthToken:   a.store.Current().Token,
		RetryConfig: retry.Backoff(cfg.RetryAttempts),
		Transport:   &metrics.Transport{Base: &logging.Transport{}},
	})
	logging.Debug("client ready",
		logging.String("server", cfg.ServerURL),
		logging.String("state_dir", cfg.StateDir))
	return nil
}

// session returns the logged-in identity. Expired tokens count as logged
// out.
func (a *app) session() (models.Session, error) {
	sess, err := a.store.Require()
	if err != nil {
		return sess, errors.New("not logged in, run 'docdesk login' first")
	}
	if a.store.Expired(0) {
		return models.Session{}, errors.New("session expired, run 'docdesk login' again")
	}
	return sess, nil
}

// describe turns client errors into the message shown to the user.
func describe(err error) error {
	if se, ok := client.AsServerError(err); ok {
		switch se.Status {
		case 401, 403:
			return fmt.Errorf("%w (try 'docdesk login')", err)
		}
		return err
	}
	if client.IsNetworkError(err) {
		return fmt.Errorf("cannot reach server: %w", err)
	}
	return err
}
