package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

// apiRoutes are the dashboard's JSON actions. Each is a thin call into the
// facades; errors map through writeAPIError.
func (s *Server) apiRoutes(r chi.Router) {
	r.Get("/ui/api/stats", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Stats.System(r.Context())
	}))
	r.Get("/ui/api/stats/today", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Stats.Today(r.Context())
	}))
	r.Get("/ui/api/stats/history", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		return api.Stats.History(r.Context(), days)
	}))

	r.Get("/ui/api/bans", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.IPs.Banned(r.Context(), queryParams(r))
	}))
	r.Get("/ui/api/bans/{ip}", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.IPs.Details(r.Context(), chi.URLParam(r, "ip"))
	}))
	r.Post("/ui/api/bans", handleBody(func(r *http.Request, api *f2bapi.API, body banRequest) (any, error) {
		return ok(api.IPs.Ban(r.Context(), body.IP, body.Jail, body.BanTime))
	}))
	r.Post("/ui/api/bans/{ip}/unban", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return ok(api.IPs.Unban(r.Context(), chi.URLParam(r, "ip")))
	}))
	r.Post("/ui/api/bans/batch-unban", handleBody(func(r *http.Request, api *f2bapi.API, body struct {
		IPs []string `json:"ips"`
	}) (any, error) {
		return ok(api.IPs.BatchUnban(r.Context(), body.IPs))
	}))

	r.Get("/ui/api/jails", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Jails.List(r.Context())
	}))
	r.Get("/ui/api/jails/{name}", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Jails.Get(r.Context(), chi.URLParam(r, "name"))
	}))
	r.Put("/ui/api/jails/{name}", handleBody(func(r *http.Request, api *f2bapi.API, body f2bapi.JailUpdate) (any, error) {
		return ok(api.Jails.Update(r.Context(), chi.URLParam(r, "name"), body))
	}))
	r.Post("/ui/api/jails/{name}/toggle", handleBody(func(r *http.Request, api *f2bapi.API, body struct {
		Enabled bool `json:"enabled"`
	}) (any, error) {
		return ok(api.Jails.Toggle(r.Context(), chi.URLParam(r, "name"), body.Enabled))
	}))
	r.Post("/ui/api/jails/{name}/restart", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return ok(api.Jails.Restart(r.Context(), chi.URLParam(r, "name")))
	}))
	r.Get("/ui/api/jails/{name}/status", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Jails.Status(r.Context(), chi.URLParam(r, "name"))
	}))

	r.Get("/ui/api/logs", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Logs.List(r.Context(), queryParams(r))
	}))
	r.Get("/ui/api/logs/realtime", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Logs.Realtime(r.Context(), r.URL.Query().Get("jail"))
	}))
	r.Delete("/ui/api/logs", func(w http.ResponseWriter, r *http.Request) {
		before := r.URL.Query().Get("before_date")
		if before == "" {
			writeError(w, http.StatusBadRequest, "before_date is required")
			return
		}
		if err := consoleFrom(r).api.Logs.Clear(r.Context(), before); err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	})

	r.Get("/ui/api/whitelist", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Whitelist.List(r.Context(), queryParams(r))
	}))
	r.Post("/ui/api/whitelist", handleBody(func(r *http.Request, api *f2bapi.API, body f2bapi.WhitelistInput) (any, error) {
		return api.Whitelist.Add(r.Context(), body.IP, body.Description)
	}))
	r.Put("/ui/api/whitelist/{id}", handleBody(func(r *http.Request, api *f2bapi.API, body f2bapi.WhitelistInput) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		return api.Whitelist.Update(r.Context(), id, body)
	}))
	r.Delete("/ui/api/whitelist/{id}", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		id, err := pathID(r)
		if err != nil {
			return nil, err
		}
		return ok(api.Whitelist.Remove(r.Context(), id))
	}))

	r.Get("/ui/api/analysis/threat/{ip}", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Analysis.Threat(r.Context(), chi.URLParam(r, "ip"))
	}))
	r.Get("/ui/api/analysis/trends", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Analysis.Trends(r.Context(), r.URL.Query().Get("period"))
	}))
	r.Get("/ui/api/analysis/geo-stats", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Analysis.GeoStats(r.Context())
	}))
	r.Get("/ui/api/analysis/attack-types", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.Analysis.AttackTypes(r.Context())
	}))

	r.Get("/ui/api/system/info", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.System.Info(r.Context())
	}))
	r.Get("/ui/api/system/config", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.System.Config(r.Context())
	}))
	r.Put("/ui/api/system/config", handleBody(func(r *http.Request, api *f2bapi.API, body f2bapi.SystemConfig) (any, error) {
		return ok(api.System.UpdateConfig(r.Context(), body))
	}))
	r.Post("/ui/api/system/restart", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return ok(api.System.Restart(r.Context()))
	}))
	r.Post("/ui/api/system/test-config", handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		return api.System.TestConfig(r.Context())
	}))
}

type banRequest struct {
	IP      string `json:"ip"`
	Jail    string `json:"jail"`
	BanTime int    `json:"ban_time"`
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func handle(fn func(r *http.Request, api *f2bapi.API) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r, consoleFrom(r).api)
		if err != nil {
			if br, isBad := err.(badRequest); isBad {
				writeError(w, http.StatusBadRequest, string(br))
				return
			}
			writeAPIError(w, err)
			return
		}
		writeJSON(w, out)
	}
}

func handleBody[T any](fn func(r *http.Request, api *f2bapi.API, body T) (any, error)) http.HandlerFunc {
	return handle(func(r *http.Request, api *f2bapi.API) (any, error) {
		var body T
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			return nil, badRequest("invalid JSON body: " + err.Error())
		}
		return fn(r, api, body)
	})
}

func ok(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id")
	}
	return id, nil
}

// queryParams reads list parameters; filter[key]=value pairs become Filter.
func queryParams(r *http.Request) *f2bapi.QueryParams {
	q := r.URL.Query()
	p := &f2bapi.QueryParams{
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	for k, v := range q {
		if strings.HasPrefix(k, "filter[") && strings.HasSuffix(k, "]") && len(v) > 0 {
			if p.Filter == nil {
				p.Filter = map[string]string{}
			}
			p.Filter[k[len("filter["):len(k)-1]] = v[0]
		}
	}
	return p
}
