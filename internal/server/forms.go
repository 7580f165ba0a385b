package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

// formRoutes are the dashboard's POST actions. Each redirects back to the
// page that holds the form.
func (s *Server) formRoutes(r chi.Router) {
	r.Post("/dashboard/bans/ban", s.action("/dashboard/bans", func(r *http.Request, api *f2bapi.API) error {
		ip := strings.TrimSpace(r.PostFormValue("ip"))
		jail := strings.TrimSpace(r.PostFormValue("jail"))
		if ip == "" || jail == "" {
			return badRequest("IP and jail are required")
		}
		var banTime int
		if v := strings.TrimSpace(r.PostFormValue("ban_time")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return badRequest("ban time must be a number of seconds")
			}
			banTime = n
		}
		return api.IPs.Ban(r.Context(), ip, jail, banTime)
	}))
	r.Post("/dashboard/bans/{ip}/unban", s.action("/dashboard/bans", func(r *http.Request, api *f2bapi.API) error {
		return api.IPs.Unban(r.Context(), chi.URLParam(r, "ip"))
	}))

	r.Post("/dashboard/jails/{name}/toggle", s.action("/dashboard/jails", func(r *http.Request, api *f2bapi.API) error {
		enabled, err := strconv.ParseBool(r.PostFormValue("enabled"))
		if err != nil {
			return badRequest("enabled must be true or false")
		}
		return api.Jails.Toggle(r.Context(), chi.URLParam(r, "name"), enabled)
	}))
	r.Post("/dashboard/jails/{name}/restart", s.action("/dashboard/jails", func(r *http.Request, api *f2bapi.API) error {
		return api.Jails.Restart(r.Context(), chi.URLParam(r, "name"))
	}))

	r.Post("/dashboard/whitelist", s.action("/dashboard/whitelist", func(r *http.Request, api *f2bapi.API) error {
		ip := strings.TrimSpace(r.PostFormValue("ip"))
		if ip == "" {
			return badRequest("IP is required")
		}
		_, err := api.Whitelist.Add(r.Context(), ip, strings.TrimSpace(r.PostFormValue("description")))
		return err
	}))
	r.Post("/dashboard/whitelist/{id}/remove", s.action("/dashboard/whitelist", func(r *http.Request, api *f2bapi.API) error {
		id, err := pathID(r)
		if err != nil {
			return err
		}
		return api.Whitelist.Remove(r.Context(), id)
	}))
}

// action runs do and sends the browser back to page. A 401 ends at the
// login page like any other dashboard request.
func (s *Server) action(page string, do func(r *http.Request, api *f2bapi.API) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := consoleFrom(r)
		err := do(r, c.api)
		if errors.Is(err, apiclient.ErrAuthExpired) {
			http.Redirect(w, r, string(c.lastRoute(auth.RouteLogin)), http.StatusSeeOther)
			return
		}
		if err != nil {
			status, msg := actionFailure(err)
			s.logger.Info().Err(err).Str("path", r.URL.Path).Msg("dashboard action failed")
			s.renderError(w, r, status, msg)
			return
		}
		http.Redirect(w, r, page, http.StatusSeeOther)
	}
}

func actionFailure(err error) (int, string) {
	var (
		br badRequest
		rf *apiclient.RequestFailedError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, string(br)
	case errors.As(err, &rf) && rf.Status >= 400 && rf.Status < 500:
		return rf.Status, rf.Message
	default:
		return http.StatusBadGateway, apiclient.UserMessage(err)
	}
}
