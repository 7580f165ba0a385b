package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
	"github.com/difyz9/fail2ban-web/pkg/session"
)

// app holds the flags and the lazily built session of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer
	v      *viper.Viper

	cfgFile    string
	outputJSON bool
	verbose    bool

	logger zerolog.Logger
	sess   *cliSession
}

// cliSession is the session layer of the process: cookies in a file jar,
// a client carrying their token and the auth service on top.
type cliSession struct {
	store   *session.Store
	client  *apiclient.Client
	svc     *auth.Service
	api     *f2bapi.API
	machine *auth.Machine
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, v: viper.New(), logger: zerolog.Nop()}
}

func (a *app) root() *cobra.Command {
	root := &cobra.Command{
		Use:   "f2bctl",
		Short: "fail2ban-web command-line interface",
		Long: `f2bctl is the command-line interface for fail2ban-web.

It signs in to the fail2ban-web API and manages banned addresses, jails,
logs, the whitelist and system settings from the terminal.`,
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/f2b/cli.yaml)")
	pf.String("url", "", "fail2ban-web API URL")
	pf.String("dir", "", "directory for the session files (default is $HOME/.config/f2b)")
	pf.BoolVar(&a.outputJSON, "json", false, "output in JSON format")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	_ = a.v.BindPFlag("url", pf.Lookup("url"))
	_ = a.v.BindPFlag("dir", pf.Lookup("dir"))

	root.AddCommand(
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newPasswdCmd(),
		a.newRefreshCmd(),
		a.newWatchCmd(),
		a.newStatsCmd(),
		a.newBansCmd(),
		a.newJailsCmd(),
		a.newLogsCmd(),
		a.newWhitelistCmd(),
		a.newAnalysisCmd(),
		a.newSystemCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("cli")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(defaultDir())
		a.v.AddConfigPath(".")
	}

	a.v.SetEnvPrefix("F2B")
	a.v.AutomaticEnv()

	a.v.SetDefault("url", apiclient.DefaultBaseURL)
	a.v.SetDefault("timeout", apiclient.DefaultTimeout)
	a.v.SetDefault("refresh_interval", auth.DefaultRefreshInterval)

	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: a.errOut, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	if err := a.v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &nf) {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		a.logger.Debug().Str("file", a.v.ConfigFileUsed()).Msg("using config file")
	}
	return nil
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "f2b")
	}
	return filepath.Join(home, ".config", "f2b")
}

func (a *app) dir() string {
	if d := a.v.GetString("dir"); d != "" {
		return d
	}
	return defaultDir()
}

func (a *app) session() (*cliSession, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	dir := a.dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	key, err := session.LoadOrCreateKey(filepath.Join(dir, "cookie.key"))
	if err != nil {
		return nil, fmt.Errorf("load cookie key: %w", err)
	}
	store := session.NewStore(session.NewFileJar(filepath.Join(dir, "session.json")), session.Options{
		HashKey: key,
		Logger:  a.logger,
	})
	client := apiclient.New(apiclient.Options{
		BaseURL: a.v.GetString("url"),
		Timeout: a.v.GetDuration("timeout"),
		Tokens:  store,
		Logger:  a.logger,
	})
	a.sess = &cliSession{
		store:  store,
		client: client,
		svc:    auth.NewService(client, store, a.logger),
		api:    f2bapi.New(client),
	}
	return a.sess, nil
}

// machine builds the auth machine for this process and routes 401s to it.
func (a *app) machine(s *cliSession, opts auth.MachineOptions) *auth.Machine {
	opts.Logger = a.logger
	m := auth.NewMachine(s.svc, opts)
	s.client.OnAuthFailure(m.HandleAuthExpired)
	s.machine = m
	return m
}

// signedIn returns the session of a logged-in user, or ErrNotAuthenticated.
func (a *app) signedIn() (*cliSession, error) {
	s, err := a.session()
	if err != nil {
		return nil, err
	}
	m := a.machine(s, auth.MachineOptions{})
	m.Restore()
	if m.State() != auth.Authenticated {
		return nil, auth.ErrNotAuthenticated
	}
	return s, nil
}

func (a *app) api() (*f2bapi.API, error) {
	s, err := a.signedIn()
	if err != nil {
		return nil, err
	}
	return s.api, nil
}

func (a *app) close() {
	if a.sess != nil && a.sess.machine != nil {
		a.sess.machine.Close()
	}
}

// describeError turns a command error into the line printed to the user.
func describeError(err error) string {
	switch {
	case errors.Is(err, apiclient.ErrAuthExpired):
		return "session expired, run f2bctl login"
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "not logged in, run f2bctl login"
	}
	var ve *f2bapi.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return apiclient.UserMessage(err)
}
