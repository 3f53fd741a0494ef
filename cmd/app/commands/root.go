package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Domenick1991/tailorbook/config"
	"github.com/Domenick1991/tailorbook/internal/bootstrap"
	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/logger"
	"github.com/Domenick1991/tailorbook/internal/session"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// env is shared by every command of one invocation.
type env struct {
	cfgPath string
	asJSON  bool

	app  *bootstrap.App
	stop func()
}

// Execute runs one invocation of the CLI and releases everything it opened.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd, e := newRootCmd()
	defer e.close()

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() (*cobra.Command, *env) {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "tailorbook",
		Short:         "Find tailors and manage tailoring bookings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&e.cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&e.asJSON, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(
		newLoginCommand(e),
		newRegisterCommand(e),
		newLogoutCommand(e),
		newWhoamiCommand(e),
		newBookingsCommand(e),
		newTailorsCommand(e),
		newServicesCommand(e),
		newProfileCommand(e),
		newGeocodeCommand(e),
		newServePaymentsCommand(e),
	)

	return rootCmd, e
}

func (e *env) open(cmd *cobra.Command) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	app, err := bootstrap.NewApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	e.app = app

	stderr := cmd.ErrOrStderr()
	e.stop = app.Session.OnSessionExpired(func(ev session.ExpiredEvent) {
		warn := color.New(color.FgYellow, color.Bold)
		warn.Fprintln(stderr, "Your session has expired. Please log in again to continue.")
		if ev.LastPath != "" {
			fmt.Fprintf(stderr, "Run `tailorbook login` and retry; you were working with %s\n", ev.LastPath)
		}
	})
	return nil
}

func (e *env) close() {
	if e.stop != nil {
		e.stop()
	}
	if e.app != nil {
		e.app.Close()
		_ = e.app.Log.Sync()
		e.app = nil
	}
}

func (e *env) loadConfig() (*config.Config, error) {
	path := e.cfgPath
	explicit := path != ""
	if !explicit {
		if path = os.Getenv("CONFIG_PATH"); path != "" {
			explicit = true
		} else {
			path = "config.yaml"
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// role returns the signed-in user's role, asking the backend when the stored
// session carries no user record.
func (e *env) role(cmd *cobra.Command) (domain.Role, error) {
	if u := e.app.Session.CurrentUser(); u != nil && u.Role != "" {
		return u.Role, nil
	}
	u, err := e.app.API.Me(cmd.Context())
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// Describe turns a command error into the line printed before exiting.
func Describe(err error) string {
	msg := domain.UserMessage(err)
	if msg == domain.GenericMessage {
		msg = err.Error()
	}
	return color.RedString("Error: ") + msg
}
