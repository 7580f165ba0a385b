package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

// listFlags registers the common pagination and filter flags.
func listFlags(cmd *cobra.Command) *f2bapi.QueryParams {
	q := &f2bapi.QueryParams{}
	f := cmd.Flags()
	f.IntVar(&q.Page, "page", 0, "page number")
	f.IntVar(&q.PerPage, "per-page", 0, "items per page")
	f.StringVarP(&q.Search, "search", "s", "", "search text")
	f.StringVar(&q.SortBy, "sort", "", "sort field")
	f.StringVar(&q.SortOrder, "order", "", "sort order (asc or desc)")
	f.StringToStringVarP(&q.Filter, "filter", "f", nil, "filter as key=value, repeatable")
	return q
}

func pageFooter[T any](a *app, p *f2bapi.Page[T]) {
	fmt.Fprintf(a.out, "\nPage %d of %d, %d total\n", p.Page, p.TotalPages, p.Total)
}

func (a *app) newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ban statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			st, err := api.Stats.System(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(st, func() {
				fmt.Fprintf(a.out, "Banned IPs:       %d\n", st.TotalBannedIPs)
				fmt.Fprintf(a.out, "Active jails:     %d\n", st.ActiveJails)
				fmt.Fprintf(a.out, "Failed today:     %d\n", st.FailedAttemptsToday)
				fmt.Fprintf(a.out, "Uptime:           %s\n", dash(st.SystemUptime))
				fmt.Fprintf(a.out, "Last ban:         %s\n", dash(st.LastBanTime))
			})
		},
	}

	var days int
	history := &cobra.Command{
		Use:   "history",
		Short: "Show per-day statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			obj, err := api.Stats.History(cmd.Context(), days)
			if err != nil {
				return err
			}
			return a.emit(obj, func() { a.printObject(obj) })
		},
	}
	history.Flags().IntVar(&days, "days", 7, "number of days")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "today",
			Short: "Show today's statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				obj, err := api.Stats.Today(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(obj, func() { a.printObject(obj) })
			},
		},
		history,
	)
	return cmd
}

func (a *app) newBansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bans",
		Short: "Manage banned IP addresses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List banned IP addresses",
		Args:  cobra.NoArgs,
	}
	q := listFlags(list)
	list.RunE = func(cmd *cobra.Command, args []string) error {
		api, err := a.api()
		if err != nil {
			return err
		}
		page, err := api.IPs.Banned(cmd.Context(), q)
		if err != nil {
			return err
		}
		return a.emit(page, func() {
			rows := [][]string{}
			for _, b := range page.Data {
				rows = append(rows, []string{b.IP, b.Jail, b.BanTime, strconv.Itoa(b.Attempts), dash(b.Country)})
			}
			a.printTable([]string{"IP", "Jail", "Banned", "Attempts", "Country"}, rows)
			pageFooter(a, page)
		})
	}

	var jail string
	var banTime int
	ban := &cobra.Command{
		Use:   "ban [ip]",
		Short: "Ban an IP address in a jail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			if err := api.IPs.Ban(cmd.Context(), args[0], jail, banTime); err != nil {
				return err
			}
			a.success("%s banned in %s", args[0], jail)
			return nil
		},
	}
	ban.Flags().StringVarP(&jail, "jail", "j", "", "jail name")
	ban.Flags().IntVar(&banTime, "time", 0, "ban time in seconds (jail default when 0)")
	_ = ban.MarkFlagRequired("jail")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "show [ip]",
			Short: "Show details of a banned IP address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				b, err := api.IPs.Details(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(b, func() {
					fmt.Fprintf(a.out, "IP:        %s\n", b.IP)
					fmt.Fprintf(a.out, "Jail:      %s\n", b.Jail)
					fmt.Fprintf(a.out, "Banned:    %s\n", b.BanTime)
					fmt.Fprintf(a.out, "Unban:     %s\n", dash(b.UnbanTime))
					fmt.Fprintf(a.out, "Attempts:  %d\n", b.Attempts)
					fmt.Fprintf(a.out, "Country:   %s\n", dash(b.Country))
					fmt.Fprintf(a.out, "Active:    %s\n", yesNo(b.IsActive))
				})
			},
		},
		ban,
		&cobra.Command{
			Use:   "unban [ip...]",
			Short: "Unban one or more IP addresses",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				if len(args) == 1 {
					err = api.IPs.Unban(cmd.Context(), args[0])
				} else {
					err = api.IPs.BatchUnban(cmd.Context(), args)
				}
				if err != nil {
					return err
				}
				a.success("%d address(es) unbanned", len(args))
				return nil
			},
		},
	)
	return cmd
}

func (a *app) newJailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jails",
		Short: "Manage fail2ban jails",
	}

	update := &cobra.Command{
		Use:   "update [name]",
		Short: "Change jail settings",
		Long:  `Only the flags given are sent. Settings are checked before the request is made.`,
		Args:  cobra.ExactArgs(1),
	}
	uf := update.Flags()
	uf.Bool("enabled", false, "enable or disable the jail")
	uf.String("filter", "", "filter name")
	uf.String("logpath", "", "log file path")
	uf.Int("maxretry", 0, "failures before a ban")
	uf.Int("findtime", 0, "window for counting failures, in seconds")
	uf.Int("bantime", 0, "ban duration in seconds, -1 for permanent")
	uf.String("backend", "", "log backend")
	uf.String("action", "", "ban action")
	update.RunE = func(cmd *cobra.Command, args []string) error {
		var upd f2bapi.JailUpdate
		f := cmd.Flags()
		if f.Changed("enabled") {
			v, _ := f.GetBool("enabled")
			upd.Enabled = &v
		}
		for name, dst := range map[string]**string{"filter": &upd.Filter, "logpath": &upd.LogPath, "backend": &upd.Backend, "action": &upd.Action} {
			if f.Changed(name) {
				v, _ := f.GetString(name)
				*dst = &v
			}
		}
		for name, dst := range map[string]**int{"maxretry": &upd.MaxRetry, "findtime": &upd.FindTime, "bantime": &upd.BanTime} {
			if f.Changed(name) {
				v, _ := f.GetInt(name)
				*dst = &v
			}
		}
		api, err := a.api()
		if err != nil {
			return err
		}
		if err := api.Jails.Update(cmd.Context(), args[0], upd); err != nil {
			return err
		}
		a.success("Jail %s updated", args[0])
		return nil
	}

	toggle := func(use string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [name]",
			Short: use + " a jail",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				if err := api.Jails.Toggle(cmd.Context(), args[0], enabled); err != nil {
					return err
				}
				a.success("Jail %s %sd", args[0], use)
				return nil
			},
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List jails",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				jails, err := api.Jails.List(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(jails, func() {
					rows := [][]string{}
					for _, j := range jails {
						rows = append(rows, []string{j.Name, yesNo(j.Enabled), j.Filter,
							strconv.Itoa(j.MaxRetry), strconv.Itoa(j.FindTime), strconv.Itoa(j.BanTime)})
					}
					a.printTable([]string{"Name", "Enabled", "Filter", "MaxRetry", "FindTime", "BanTime"}, rows)
				})
			},
		},
		&cobra.Command{
			Use:   "show [name]",
			Short: "Show a jail",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				j, err := api.Jails.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(j, func() {
					fmt.Fprintf(a.out, "Name:      %s\n", j.Name)
					fmt.Fprintf(a.out, "Enabled:   %s\n", yesNo(j.Enabled))
					fmt.Fprintf(a.out, "Filter:    %s\n", j.Filter)
					fmt.Fprintf(a.out, "Log path:  %s\n", j.LogPath)
					fmt.Fprintf(a.out, "MaxRetry:  %d\n", j.MaxRetry)
					fmt.Fprintf(a.out, "FindTime:  %d\n", j.FindTime)
					fmt.Fprintf(a.out, "BanTime:   %d\n", j.BanTime)
					fmt.Fprintf(a.out, "Backend:   %s\n", dash(j.Backend))
					fmt.Fprintf(a.out, "Action:    %s\n", dash(j.Action))
				})
			},
		},
		update,
		toggle("enable", true),
		toggle("disable", false),
		&cobra.Command{
			Use:   "restart [name]",
			Short: "Restart a jail",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				if err := api.Jails.Restart(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.success("Jail %s restarted", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "status [name]",
			Short: "Show the runtime status of a jail",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				obj, err := api.Jails.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(obj, func() { a.printObject(obj) })
			},
		},
	)
	return cmd
}

func (a *app) newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read and manage fail2ban logs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List log entries",
		Args:  cobra.NoArgs,
	}
	q := listFlags(list)
	list.RunE = func(cmd *cobra.Command, args []string) error {
		api, err := a.api()
		if err != nil {
			return err
		}
		page, err := api.Logs.List(cmd.Context(), q)
		if err != nil {
			return err
		}
		return a.emit(page, func() {
			a.printLogs(page.Data)
			pageFooter(a, page)
		})
	}

	var jail string
	realtime := &cobra.Command{
		Use:   "realtime",
		Short: "Show the most recent log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			entries, err := api.Logs.Realtime(cmd.Context(), jail)
			if err != nil {
				return err
			}
			return a.emit(entries, func() { a.printLogs(entries) })
		},
	}
	realtime.Flags().StringVarP(&jail, "jail", "j", "", "only this jail")

	var from, to, output string
	download := &cobra.Command{
		Use:   "download",
		Short: "Download logs for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			raw, err := api.Logs.Download(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = a.out.Write(append(raw, '\n'))
				return err
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.success("Logs written to %s", output)
			return nil
		},
	}
	download.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	download.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	download.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")

	var before string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete log entries older than a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			if err := api.Logs.Clear(cmd.Context(), before); err != nil {
				return err
			}
			a.success("Logs before %s cleared", before)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&before, "before", "", "delete entries before this date (YYYY-MM-DD)")
	_ = clearCmd.MarkFlagRequired("before")

	cmd.AddCommand(list, realtime, download, clearCmd)
	return cmd
}

func (a *app) printLogs(entries []f2bapi.LogEntry) {
	rows := [][]string{}
	for _, e := range entries {
		rows = append(rows, []string{e.Timestamp, e.Level, e.Jail, dash(e.IP), e.Message})
	}
	a.printTable([]string{"Time", "Level", "Jail", "IP", "Message"}, rows)
}

func (a *app) newWhitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage whitelisted IP addresses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List whitelist entries",
		Args:  cobra.NoArgs,
	}
	q := listFlags(list)
	list.RunE = func(cmd *cobra.Command, args []string) error {
		api, err := a.api()
		if err != nil {
			return err
		}
		page, err := api.Whitelist.List(cmd.Context(), q)
		if err != nil {
			return err
		}
		return a.emit(page, func() {
			rows := [][]string{}
			for _, e := range page.Data {
				rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.IP, dash(e.Description), e.CreatedBy, e.CreatedAt})
			}
			a.printTable([]string{"ID", "IP", "Description", "By", "Created"}, rows)
			pageFooter(a, page)
		})
	}

	var description string
	add := &cobra.Command{
		Use:   "add [ip]",
		Short: "Whitelist an IP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			e, err := api.Whitelist.Add(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			return a.emit(e, func() { a.success("%s whitelisted (id %d)", e.IP, e.ID) })
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "description")

	var in f2bapi.WhitelistInput
	update := &cobra.Command{
		Use:   "update [id]",
		Short: "Replace a whitelist entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			api, err := a.api()
			if err != nil {
				return err
			}
			e, err := api.Whitelist.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return a.emit(e, func() { a.success("Entry %d updated", e.ID) })
		},
	}
	update.Flags().StringVar(&in.IP, "ip", "", "IP address")
	update.Flags().StringVarP(&in.Description, "description", "d", "", "description")
	_ = update.MarkFlagRequired("ip")

	cmd.AddCommand(
		list,
		add,
		update,
		&cobra.Command{
			Use:   "remove [id]",
			Short: "Remove a whitelist entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", args[0])
				}
				api, err := a.api()
				if err != nil {
					return err
				}
				if err := api.Whitelist.Remove(cmd.Context(), id); err != nil {
					return err
				}
				a.success("Entry %d removed", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "import [file]",
			Short: "Whitelist the addresses listed in a YAML or JSON file",
			Long: `The file holds a list of entries:

  - ip: 10.0.0.0/8
    description: internal`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				var entries []f2bapi.WhitelistInput
				if err := yaml.Unmarshal(data, &entries); err != nil {
					return fmt.Errorf("parse %s: %w", args[0], err)
				}
				if len(entries) == 0 {
					return fmt.Errorf("%s lists no entries", args[0])
				}
				api, err := a.api()
				if err != nil {
					return err
				}
				if err := api.Whitelist.BatchAdd(cmd.Context(), entries); err != nil {
					return err
				}
				a.success("%d entries whitelisted", len(entries))
				return nil
			},
		},
	)
	return cmd
}

func (a *app) newAnalysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Threat analysis and reports",
	}

	object := func(use, short string, fetch func(cmd *cobra.Command) (f2bapi.Object, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				obj, err := fetch(cmd)
				if err != nil {
					return err
				}
				return a.emit(obj, func() { a.printObject(obj) })
			},
		}
	}

	var period string
	trends := object("trends", "Show attack trends", func(cmd *cobra.Command) (f2bapi.Object, error) {
		api, err := a.api()
		if err != nil {
			return nil, err
		}
		return api.Analysis.Trends(cmd.Context(), period)
	})
	trends.Flags().StringVar(&period, "period", "7d", "period such as 24h, 7d or 30d")

	var from, to string
	report := object("report", "Generate a security report", func(cmd *cobra.Command) (f2bapi.Object, error) {
		api, err := a.api()
		if err != nil {
			return nil, err
		}
		return api.Analysis.SecurityReport(cmd.Context(), from, to)
	})
	report.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	report.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "threat [ip]",
			Short: "Analyse the threat posed by an IP address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				t, err := api.Analysis.Threat(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(t, func() {
					fmt.Fprintf(a.out, "IP:          %s\n", t.IP)
					fmt.Fprintf(a.out, "Risk score:  %.1f\n", t.RiskScore)
					fmt.Fprintf(a.out, "Threats:     %v\n", t.ThreatTypes)
					fmt.Fprintf(a.out, "Location:    %s\n", dash(t.GeoLocation.Country))
					fmt.Fprintf(a.out, "Attempts:    %d (first %s, last %s)\n",
						t.HistoricalData.TotalAttempts, t.HistoricalData.FirstSeen, t.HistoricalData.LastSeen)
					for _, r := range t.Recommendations {
						fmt.Fprintf(a.out, "  - %s\n", r)
					}
				})
			},
		},
		trends,
		object("geo", "Show bans by country", func(cmd *cobra.Command) (f2bapi.Object, error) {
			api, err := a.api()
			if err != nil {
				return nil, err
			}
			return api.Analysis.GeoStats(cmd.Context())
		}),
		object("attack-types", "Show bans by attack type", func(cmd *cobra.Command) (f2bapi.Object, error) {
			api, err := a.api()
			if err != nil {
				return nil, err
			}
			return api.Analysis.AttackTypes(cmd.Context())
		}),
		report,
	)
	return cmd
}

func (a *app) newSystemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "System information and settings",
	}

	object := func(use, short string, fetch func(api *f2bapi.API, cmd *cobra.Command) (f2bapi.Object, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				obj, err := fetch(api, cmd)
				if err != nil {
					return err
				}
				return a.emit(obj, func() { a.printObject(obj) })
			},
		}
	}

	setConfig := &cobra.Command{
		Use:   "set-config",
		Short: "Change system settings",
		Long:  `Reads the current settings, applies the flags given and writes them back.`,
		Args:  cobra.NoArgs,
	}
	sf := setConfig.Flags()
	sf.Bool("fail2ban", false, "fail2ban service enabled")
	sf.Bool("auto-ban", false, "automatic banning enabled")
	sf.Int("max-retry", 0, "default failures before a ban")
	sf.Int("ban-time", 0, "default ban duration in seconds")
	sf.Int("find-time", 0, "default failure window in seconds")
	sf.Bool("email", false, "email notifications enabled")
	sf.String("log-level", "", "log level")
	setConfig.RunE = func(cmd *cobra.Command, args []string) error {
		api, err := a.api()
		if err != nil {
			return err
		}
		cfg, err := api.System.Config(cmd.Context())
		if err != nil {
			return err
		}
		f := cmd.Flags()
		for name, dst := range map[string]*bool{"fail2ban": &cfg.Fail2banStatus, "auto-ban": &cfg.AutoBanEnabled, "email": &cfg.EmailNotifications} {
			if f.Changed(name) {
				*dst, _ = f.GetBool(name)
			}
		}
		for name, dst := range map[string]*int{"max-retry": &cfg.MaxRetry, "ban-time": &cfg.BanTime, "find-time": &cfg.FindTime} {
			if f.Changed(name) {
				*dst, _ = f.GetInt(name)
			}
		}
		if f.Changed("log-level") {
			cfg.LogLevel, _ = f.GetString("log-level")
		}
		if err := api.System.UpdateConfig(cmd.Context(), *cfg); err != nil {
			return err
		}
		return a.emit(cfg, func() { a.success("System settings updated") })
	}

	var yes bool
	restart := &cobra.Command{
		Use:   "restart",
		Short: "Restart fail2ban",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			if !yes {
				if err := survey.AskOne(&survey.Confirm{Message: "Restart fail2ban now?"}, &yes); err != nil {
					return err
				}
				if !yes {
					return nil
				}
			}
			if err := api.System.Restart(cmd.Context()); err != nil {
				return err
			}
			a.success("fail2ban restarting")
			return nil
		},
	}
	restart.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(
		object("info", "Show system information", func(api *f2bapi.API, cmd *cobra.Command) (f2bapi.Object, error) {
			return api.System.Info(cmd.Context())
		}),
		&cobra.Command{
			Use:   "config",
			Short: "Show system settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := a.api()
				if err != nil {
					return err
				}
				cfg, err := api.System.Config(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cfg, func() {
					b, _ := json.Marshal(cfg)
					var obj map[string]any
					_ = json.Unmarshal(b, &obj)
					a.printObject(obj)
				})
			},
		},
		setConfig,
		restart,
		object("status", "Show fail2ban service status", func(api *f2bapi.API, cmd *cobra.Command) (f2bapi.Object, error) {
			return api.System.Status(cmd.Context())
		}),
		object("test-config", "Check the fail2ban configuration", func(api *f2bapi.API, cmd *cobra.Command) (f2bapi.Object, error) {
			return api.System.TestConfig(cmd.Context())
		}),
	)
	return cmd
}
