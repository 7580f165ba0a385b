// Package testbackend is an in-memory stand-in for the fail2ban-web REST API
// used by tests across the module. It speaks the real envelope format and
// enforces bearer tokens.
package testbackend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

const (
	AdminUser     = "admin"
	AdminPassword = "admin123"
	AdminToken    = "abc"
)

type Backend struct {
	srv *httptest.Server

	mu            sync.Mutex
	tokens        map[string]bool
	refreshes     int
	logoutStatus  int
	refreshStatus int
	verifyStatus  int
	password      string
	calls         map[string]int
	auth          map[string]string
	bodies        map[string][]byte
	bans          map[string]f2bapi.BannedIP
	jails         map[string]f2bapi.JailConfig
	whitelist     []f2bapi.WhitelistEntry
	nextID        int64
	sysConfig     f2bapi.SystemConfig
}

// New starts a backend that is closed when t finishes.
func New(t testing.TB) *Backend {
	b := &Backend{
		tokens:   map[string]bool{},
		password: AdminPassword,
		calls:    map[string]int{},
		auth:     map[string]string{},
		bodies:   map[string][]byte{},
		bans: map[string]f2bapi.BannedIP{
			"203.0.113.7": {ID: 1, IP: "203.0.113.7", Jail: "sshd", BanTime: "2024-05-01T10:00:00Z", Attempts: 6, Country: "NL", IsActive: true},
			"198.51.100.4": {ID: 2, IP: "198.51.100.4", Jail: "nginx-http-auth", BanTime: "2024-05-01T11:30:00Z", Attempts: 9, IsActive: true},
		},
		jails: map[string]f2bapi.JailConfig{
			"sshd":            {Name: "sshd", Enabled: true, Filter: "sshd", LogPath: "/var/log/auth.log", MaxRetry: 5, FindTime: 600, BanTime: 3600, Backend: "auto", Action: "iptables"},
			"nginx-http-auth": {Name: "nginx-http-auth", Enabled: false, Filter: "nginx-http-auth", LogPath: "/var/log/nginx/error.log", MaxRetry: 3, FindTime: 600, BanTime: 86400, Backend: "auto"},
		},
		whitelist: []f2bapi.WhitelistEntry{{ID: 1, IP: "10.0.0.1", Description: "office", CreatedAt: "2024-04-01T00:00:00Z", CreatedBy: AdminUser}},
		nextID:    2,
		sysConfig: f2bapi.SystemConfig{Fail2banStatus: true, AutoBanEnabled: true, MaxRetry: 5, BanTime: 3600, FindTime: 600, LogLevel: "info"},
	}
	b.srv = httptest.NewServer(b.routes())
	t.Cleanup(b.srv.Close)
	return b
}

// URL is the API base URL, ending in /api/v1.
func (b *Backend) URL() string { return b.srv.URL + "/api/v1" }

func (b *Backend) Close() { b.srv.Close() }

// SetLogoutStatus makes /auth/logout answer with status. 0 restores 200.
func (b *Backend) SetLogoutStatus(status int) {
	b.mu.Lock()
	b.logoutStatus = status
	b.mu.Unlock()
}

// SetRefreshStatus makes /auth/refresh fail with status. 0 restores 200.
func (b *Backend) SetRefreshStatus(status int) {
	b.mu.Lock()
	b.refreshStatus = status
	b.mu.Unlock()
}

// SetVerifyStatus makes /auth/verify fail with status. 0 restores 200.
func (b *Backend) SetVerifyStatus(status int) {
	b.mu.Lock()
	b.verifyStatus = status
	b.mu.Unlock()
}

// Revoke invalidates every issued token.
func (b *Backend) Revoke() {
	b.mu.Lock()
	b.tokens = map[string]bool{}
	b.mu.Unlock()
}

// Calls reports how often "METHOD /path" was hit, path relative to URL().
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// LastAuth returns the Authorization header last seen on route.
func (b *Backend) LastAuth(route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[route]
}

// LastBody returns the request body last sent to route.
func (b *Backend) LastBody(route string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[route]
}

// Password is the admin password currently accepted by /auth/login.
func (b *Backend) Password() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.password
}

func (b *Backend) Banned() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.bans))
	for ip := range b.bans {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}

func (b *Backend) Jail(name string) (f2bapi.JailConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jails[name]
	return j, ok
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", b.login)
		r.Group(func(r chi.Router) {
			r.Use(b.requireToken)
			r.Post("/auth/logout", b.logout)
			r.Get("/auth/profile", b.profile)
			r.Get("/auth/verify", b.verify)
			r.Post("/auth/refresh", b.refresh)
			r.Post("/auth/change-password", b.changePassword)
			r.Route("/api", b.domainRoutes)
		})
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/v1")
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		b.mu.Lock()
		b.calls[route]++
		b.auth[route] = r.Header.Get("Authorization")
		b.bodies[route] = body
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		valid := tok != "" && b.tokens[tok]
		b.mu.Unlock()
		if !valid {
			fail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func adminUser() f2bapi.User {
	return f2bapi.User{ID: 1, Username: AdminUser, Role: "admin", Email: "admin@example.com"}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req f2bapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.mu.Lock()
	good := req.Username == AdminUser && req.Password == b.password
	if good {
		b.tokens[AdminToken] = true
	}
	b.mu.Unlock()
	if !good {
		fail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	ok(w, f2bapi.LoginResponse{Token: AdminToken, User: adminUser(), ExpiresAt: time.Now().Add(24 * time.Hour).Unix()})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := b.logoutStatus
	if status == 0 {
		delete(b.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	b.mu.Unlock()
	if status != 0 && status != http.StatusOK {
		fail(w, status, "logout failed")
		return
	}
	ok(w, nil)
}

func (b *Backend) profile(w http.ResponseWriter, r *http.Request) {
	ok(w, adminUser())
}

func (b *Backend) verify(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := b.verifyStatus
	b.mu.Unlock()
	if status != 0 && status != http.StatusOK {
		fail(w, status, "token verification failed")
		return
	}
	ok(w, map[string]bool{"valid": true})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := b.refreshStatus
	var tok string
	if status == 0 {
		b.refreshes++
		tok = fmt.Sprintf("%s-%d", AdminToken, b.refreshes)
		b.tokens[tok] = true
	}
	b.mu.Unlock()
	if status != 0 {
		fail(w, status, "refresh rejected")
		return
	}
	ok(w, map[string]any{"token": tok, "expires_at": time.Now().Add(24 * time.Hour).Unix()})
}

func (b *Backend) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Old string `json:"old_password"`
		New string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.New == "" {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Old != b.password {
		fail(w, http.StatusBadRequest, "old password is incorrect")
		return
	}
	b.password = req.New
	ok(w, nil)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data, "message": "ok"})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pageOf[T any](r *http.Request, items []T) f2bapi.Page[T] {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	per, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if per < 1 {
		per = 20
	}
	total := len(items)
	start := (page - 1) * per
	if start > total {
		start = total
	}
	end := start + per
	if end > total {
		end = total
	}
	return f2bapi.Page[T]{
		Data:       items[start:end],
		Total:      total,
		Page:       page,
		PerPage:    per,
		TotalPages: (total + per - 1) / per,
	}
}
