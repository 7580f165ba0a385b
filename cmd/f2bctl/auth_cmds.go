package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

func (a *app) newLoginCmd() *cobra.Command {
	var creds f2bapi.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to fail2ban-web",
		Long: `Sign in with a username and password. The session is kept in the
config directory and is valid for seven days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Username == "" {
				if err := survey.AskOne(&survey.Input{Message: "Username:"}, &creds.Username, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if creds.Password == "" {
				if err := survey.AskOne(&survey.Password{Message: "Password:"}, &creds.Password, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}

			s, err := a.session()
			if err != nil {
				return err
			}
			m := a.machine(s, auth.MachineOptions{})
			if err := m.Login(cmd.Context(), creds); err != nil {
				// Bad credentials also come back as 401; keep the server's reason.
				return fmt.Errorf("login failed: %s", apiclient.UserMessage(err))
			}
			u := m.User()
			return a.emit(u, func() {
				a.success("Logged in as %s (%s)", u.Username, u.Role)
			})
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			m := a.machine(s, auth.MachineOptions{})
			m.Restore()
			m.Logout(cmd.Context())
			a.success("Logged out")
			return nil
		},
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn()
			if err != nil {
				return err
			}
			if err := s.machine.RefreshUser(cmd.Context()); err != nil {
				return err
			}
			u := s.machine.User()
			return a.emit(u, func() {
				fmt.Fprintf(a.out, "%s (%s)\n", u.Username, u.Role)
				if u.Email != "" {
					fmt.Fprintf(a.out, "Email: %s\n", u.Email)
				}
			})
		},
	}
}

func (a *app) newPasswdCmd() *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn()
			if err != nil {
				return err
			}
			if oldPassword == "" {
				if err := survey.AskOne(&survey.Password{Message: "Current password:"}, &oldPassword, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if newPassword == "" {
				var confirm string
				qs := []*survey.Question{
					{Name: "new", Prompt: &survey.Password{Message: "New password:"}, Validate: survey.MinLength(6)},
					{Name: "confirm", Prompt: &survey.Password{Message: "Repeat new password:"}},
				}
				answers := struct {
					New     string `survey:"new"`
					Confirm string `survey:"confirm"`
				}{}
				if err := survey.Ask(qs, &answers); err != nil {
					return err
				}
				newPassword, confirm = answers.New, answers.Confirm
				if newPassword != confirm {
					return errors.New("passwords do not match")
				}
			}
			if err := s.svc.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}
			a.success("Password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password (prompted when empty)")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password (prompted when empty)")
	return cmd
}

func (a *app) newRefreshCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Renew the stored token when the server no longer accepts it",
		Long: `refresh verifies the stored token and exchanges it for a fresh one
only when verification fails. --force always exchanges it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn()
			if err != nil {
				return err
			}
			before := s.svc.Token()
			var renewed bool
			if force {
				renewed = s.svc.RefreshToken(cmd.Context())
			} else {
				renewed = s.svc.AutoRefresh(cmd.Context())
			}
			if !renewed {
				return apiclient.ErrAuthExpired
			}
			if s.svc.Token() == before {
				a.success("Token still valid")
				return nil
			}
			a.success("Token refreshed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "exchange the token even if it still verifies")
	return cmd
}

func (a *app) newWatchCmd() *cobra.Command {
	var statsEvery time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and print statistics periodically",
		Long: `watch stays signed in until interrupted. The token is refreshed on
the refresh interval; when the server refuses it, watch exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.session()
			if err != nil {
				return err
			}
			sched := auth.NewCronScheduler(a.logger)
			defer sched.Stop()

			lost := make(chan struct{}, 1)
			m := a.machine(s, auth.MachineOptions{
				Scheduler:       sched,
				RefreshInterval: a.v.GetDuration("refresh_interval"),
				Navigate: func(r auth.Route) {
					if r != auth.RouteLogin {
						return
					}
					select {
					case lost <- struct{}{}:
					default:
					}
				},
			})
			defer m.Close()

			m.Init(ctx)
			if m.State() != auth.Authenticated {
				return auth.ErrNotAuthenticated
			}
			unsubscribe := m.Subscribe(func(snap auth.Snapshot) {
				a.logger.Debug().Str("state", snap.State.String()).Msg("auth state changed")
			})
			defer unsubscribe()

			a.success("Watching as %s, token refresh every %s", m.User().Username, a.v.GetDuration("refresh_interval"))
			if statsEvery > 0 {
				cancel := sched.Every(statsEvery, func() { a.printStatsLine(ctx, s) })
				defer cancel()
			}

			select {
			case <-ctx.Done():
				return nil
			case <-lost:
				return apiclient.ErrAuthExpired
			}
		},
	}
	cmd.Flags().DurationVar(&statsEvery, "stats-every", time.Minute, "statistics interval, 0 disables")
	cmd.Flags().Duration("refresh-interval", auth.DefaultRefreshInterval, "token refresh interval")
	_ = a.v.BindPFlag("refresh_interval", cmd.Flags().Lookup("refresh-interval"))
	return cmd
}

func (a *app) printStatsLine(ctx context.Context, s *cliSession) {
	st, err := s.api.Stats.System(ctx)
	if err != nil {
		a.warn("stats: %s", describeError(err))
		return
	}
	fmt.Fprintf(a.out, "%s banned=%d jails=%d failed_today=%d\n",
		time.Now().Format(time.TimeOnly), st.TotalBannedIPs, st.ActiveJails, st.FailedAttemptsToday)
}
