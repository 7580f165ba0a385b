package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
	"github.com/difyz9/fail2ban-web/pkg/session"
)

type ctxKey string

const ctxConsole ctxKey = "console"

// console is the per-request composition of the session layer: cookies in
// the browser, a client carrying their token, and a machine without a
// refresh loop. Open pages run static/session.js, which posts to
// /ui/api/session/refresh on the refresh interval.
type console struct {
	store   *session.Store
	client  *apiclient.Client
	svc     *auth.Service
	machine *auth.Machine
	api     *f2bapi.API

	mu        sync.Mutex
	navigated auth.Route
}

func (c *console) navigate(r auth.Route) {
	c.mu.Lock()
	c.navigated = r
	c.mu.Unlock()
}

// lastRoute returns the most recent navigation, or def if there was none.
func (c *console) lastRoute(def auth.Route) auth.Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.navigated == "" {
		return def
	}
	return c.navigated
}

func (s *Server) newConsole(w http.ResponseWriter, r *http.Request) *console {
	logger := s.logger.With().Str("request_id", requestID(r)).Logger()
	store := session.NewStore(session.NewRequestJar(w, r), session.Options{
		HashKey: s.hashKey,
		TTL:     s.cfg.SessionTTL,
		Secure:  s.cfg.SecureCookies,
		Logger:  logger,
	})
	client := apiclient.New(apiclient.Options{
		BaseURL: s.cfg.APIURL,
		HTTP:    s.httpc,
		Tokens:  store,
		Metrics: s.apiMetrics,
		Logger:  logger,
	})
	c := &console{store: store, client: client, api: f2bapi.New(client)}
	c.svc = auth.NewService(client, store, logger)
	c.machine = auth.NewMachine(c.svc, auth.MachineOptions{Navigate: c.navigate, Logger: logger})
	client.OnAuthFailure(c.machine.HandleAuthExpired)
	return c
}

// withConsole attaches a console to every request.
func (s *Server) withConsole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := s.newConsole(w, r)
		defer c.machine.Close()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxConsole, c)))
	})
}

func consoleFrom(r *http.Request) *console {
	c, _ := r.Context().Value(ctxConsole).(*console)
	return c
}

// guard resolves the auth state and enforces access before next runs.
// Pages confirm the session with the server; JSON routes trust the signed
// cookies and learn about a revoked token from the first 401.
func (s *Server) guard(access auth.Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := consoleFrom(r)
			if wantsJSON(r) {
				c.machine.Restore()
			} else {
				c.machine.Init(r.Context())
			}
			d := auth.Decide(c.machine.State(), access)
			switch {
			case d.Render:
				next.ServeHTTP(w, r)
			case d.Loading:
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "session not resolved")
			case d.RedirectTo == auth.RouteLogin && wantsJSON(r):
				writeTypedError(w, http.StatusUnauthorized, "unauthenticated", "sign in required", 0)
			default:
				http.Redirect(w, r, redirectTarget(d.RedirectTo, r), http.StatusSeeOther)
			}
		})
	}
}

// wantsJSON reports whether the caller is a script rather than a browser
// navigation.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/ui/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// redirectTarget remembers the page a signed-out visitor asked for.
func redirectTarget(to auth.Route, r *http.Request) string {
	if to == auth.RouteLogin && r.Method == http.MethodGet && safeNext(r.URL.Path) != "" {
		return string(to) + "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	return string(to)
}
