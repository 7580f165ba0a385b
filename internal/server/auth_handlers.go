package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

// allowLogin applies the per-IP login limit. It writes the refusal itself
// and reports false when the caller must stop.
func (s *Server) allowLogin(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := "login:" + clientIP(r, s.cfg.TrustProxy)
	res := s.limiter.Allow(key)
	if res.Allowed {
		return key, true
	}
	s.loginEvents.WithLabelValues("limited").Inc()
	retry := int(res.RetryAfter(time.Now()).Seconds()) + 1
	if wantsJSON(r) {
		writeTypedError(w, http.StatusTooManyRequests, "rate_limited", "too many sign-in attempts", retry)
	} else {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		s.pages.render(w, http.StatusTooManyRequests, "login", loginView{Error: "Too many sign-in attempts, try again later."})
	}
	return key, false
}

func (s *Server) login(r *http.Request, key string, creds f2bapi.LoginRequest) error {
	c := consoleFrom(r)
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return errMissingCredentials
	}
	if err := c.machine.Login(r.Context(), creds); err != nil {
		s.loginEvents.WithLabelValues("failed").Inc()
		s.logger.Info().Str("user", creds.Username).Str("ip", clientIP(r, s.cfg.TrustProxy)).Err(err).Msg("sign-in failed")
		return err
	}
	s.limiter.Reset(key)
	s.loginEvents.WithLabelValues("ok").Inc()
	return nil
}

var errMissingCredentials = errors.New("username and password are required")

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, http.StatusOK, "login", loginView{Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	key, ok := s.allowLogin(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.pages.render(w, http.StatusBadRequest, "login", loginView{Error: "Malformed form."})
		return
	}
	creds := f2bapi.LoginRequest{Username: r.PostFormValue("username"), Password: r.PostFormValue("password")}
	next := safeNext(r.PostFormValue("next"))
	if err := s.login(r, key, creds); err != nil {
		status := http.StatusUnauthorized
		var ne *apiclient.NetworkError
		if errors.As(err, &ne) {
			status = http.StatusBadGateway
		}
		s.pages.render(w, status, "login", loginView{Username: creds.Username, Next: next, Error: apiclient.UserMessage(err)})
		return
	}
	target := string(consoleFrom(r).lastRoute(auth.RouteHome))
	if next != "" {
		target = next
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	c.machine.Logout(r.Context())
	http.Redirect(w, r, string(c.lastRoute(auth.RouteLogin)), http.StatusSeeOther)
}

type sessionInfo struct {
	State         string       `json:"state"`
	Authenticated bool         `json:"authenticated"`
	User          *f2bapi.User `json:"user,omitempty"`
}

func snapshotInfo(c *console) sessionInfo {
	snap := c.machine.Snapshot()
	return sessionInfo{State: snap.State.String(), Authenticated: c.svc.IsAuthenticated(), User: snap.User}
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, snapshotInfo(consoleFrom(r)))
}

func (s *Server) handleSessionLogin(w http.ResponseWriter, r *http.Request) {
	key, ok := s.allowLogin(w, r)
	if !ok {
		return
	}
	var creds f2bapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.login(r, key, creds); err != nil {
		if errors.Is(err, errMissingCredentials) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeAPIError(w, err)
		return
	}
	writeJSON(w, snapshotInfo(consoleFrom(r)))
}

func (s *Server) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	c.machine.Logout(r.Context())
	writeJSON(w, snapshotInfo(c))
}

// handleSessionRefresh is the browser's refresh tick. A failed refresh
// signs the session out.
func (s *Server) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	if !c.svc.RefreshToken(r.Context()) {
		c.machine.Logout(r.Context())
		writeTypedError(w, http.StatusUnauthorized, "session_expired", "session could not be refreshed", 0)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "refresh_interval_sec": int(s.cfg.RefreshInterval.Seconds())})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Old string `json:"old_password"`
		New string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Old == "" || body.New == "" {
		writeError(w, http.StatusBadRequest, "old_password and new_password are required")
		return
	}
	if err := consoleFrom(r).svc.ChangePassword(r.Context(), body.Old, body.New); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// safeNext only accepts local dashboard paths as post-login targets.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/dashboard") && !strings.HasPrefix(next, "//") && !strings.Contains(next, "\\") {
		return next
	}
	return ""
}
