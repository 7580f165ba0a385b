package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{"login", "dashboard", "bans", "jails", "logs", "whitelist", "threats", "settings", "error"}

type pageSet struct {
	pages map[string]*template.Template
}

func loadPages() (*pageSet, error) {
	funcs := template.FuncMap{
		"activeIf": func(cur, name string) string {
			if cur == name {
				return "active"
			}
			return ""
		},
		"join": strings.Join,
	}
	ps := &pageSet{pages: map[string]*template.Template{}}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		ps.pages[name] = t
	}
	return ps, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (ps *pageSet) render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := ps.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.Error().Err(err).Str("page", name).Msg("render page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type loginView struct {
	Username string
	Next     string
	Error    string
}

// pageView is what every dashboard page receives.
type pageView struct {
	Page  string
	User  *f2bapi.User
	Data  any
	Query string
	// RefreshSec drives the token refresh timer in static/session.js.
	RefreshSec int
}

type dashboardData struct {
	Stats *f2bapi.SystemStats
	Bans  *f2bapi.Page[f2bapi.BannedIP]
}

type threatData struct {
	IP       string
	Analysis *f2bapi.ThreatAnalysis
	Error    string
}

func (s *Server) pageRoutes(r chi.Router) {
	r.Get("/dashboard", s.page("dashboard", func(r *http.Request, api *f2bapi.API) (any, error) {
		stats, err := api.Stats.System(r.Context())
		if err != nil {
			return nil, err
		}
		bans, err := api.IPs.Banned(r.Context(), &f2bapi.QueryParams{Page: 1, PerPage: 10, SortBy: "ban_time", SortOrder: "desc"})
		if err != nil {
			return nil, err
		}
		return dashboardData{Stats: stats, Bans: bans}, nil
	}))
	r.Get("/dashboard/bans", s.page("bans", func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.IPs.Banned(r.Context(), queryParams(r))
	}))
	r.Get("/dashboard/jails", s.page("jails", func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Jails.List(r.Context())
	}))
	r.Get("/dashboard/logs", s.page("logs", func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Logs.List(r.Context(), queryParams(r))
	}))
	r.Get("/dashboard/whitelist", s.page("whitelist", func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Whitelist.List(r.Context(), queryParams(r))
	}))
	r.Get("/dashboard/threats", s.page("threats", func(r *http.Request, api *f2bapi.API) (any, error) {
		ip := strings.TrimSpace(r.URL.Query().Get("ip"))
		if ip == "" {
			return threatData{}, nil
		}
		a, err := api.Analysis.Threat(r.Context(), ip)
		var rf *apiclient.RequestFailedError
		if errors.As(err, &rf) {
			return threatData{IP: ip, Error: rf.Message}, nil
		}
		if err != nil {
			return nil, err
		}
		return threatData{IP: ip, Analysis: a}, nil
	}))
	r.Get("/dashboard/settings", s.page("settings", func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.System.Config(r.Context())
	}))
}

// page renders name with whatever load returns. A 401 on the way sends the
// browser to the login page; other failures render the error page.
func (s *Server) page(name string, load func(r *http.Request, api *f2bapi.API) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := consoleFrom(r)
		data, err := load(r, c.api)
		if errors.Is(err, apiclient.ErrAuthExpired) {
			http.Redirect(w, r, string(c.lastRoute(auth.RouteLogin)), http.StatusSeeOther)
			return
		}
		if err != nil {
			s.renderError(w, r, http.StatusBadGateway, apiclient.UserMessage(err))
			return
		}
		view := s.view(r, name, data)
		view.Query = r.URL.Query().Get("search")
		s.pages.render(w, http.StatusOK, name, view)
	}
}

func (s *Server) view(r *http.Request, name string, data any) pageView {
	return pageView{
		Page:       name,
		User:       consoleFrom(r).machine.User(),
		Data:       data,
		RefreshSec: int(s.cfg.RefreshInterval.Seconds()),
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.pages.render(w, status, "error", s.view(r, "error", msg))
}

// staticHandler serves the console's scripts from the embedded FS.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
