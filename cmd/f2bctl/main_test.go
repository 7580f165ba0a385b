package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/difyz9/fail2ban-web/internal/testbackend"
	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

type cli struct {
	t       *testing.T
	backend *testbackend.Backend
	dir     string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("F2B_URL", "")
	return &cli{t: t, backend: testbackend.New(t), dir: filepath.Join(home, "state")}
}

func (c *cli) runContext(ctx context.Context, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	root := a.root()
	root.SetArgs(append([]string{"--url", c.backend.URL(), "--dir", c.dir}, args...))
	err := root.ExecuteContext(ctx)
	a.close()
	return out.String(), err
}

func (c *cli) run(args ...string) (string, error) {
	return c.runContext(context.Background(), args...)
}

func (c *cli) login() {
	c.t.Helper()
	if _, err := c.run("login", "-u", testbackend.AdminUser, "-p", testbackend.AdminPassword); err != nil {
		c.t.Fatalf("login: %v", err)
	}
}

func TestLoginPersistsSession(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("login", "-u", "admin", "-p", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as admin (admin)") {
		t.Fatalf("unexpected output %q", out)
	}
	fi, err := os.Stat(filepath.Join(c.dir, "session.json"))
	if err != nil {
		t.Fatalf("session file: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("session file mode %v", fi.Mode().Perm())
	}

	out, err = c.run("whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "admin (admin)") {
		t.Fatalf("whoami output %q", out)
	}
	if got := c.backend.LastAuth("GET /auth/profile"); got != "Bearer abc" {
		t.Fatalf("profile auth %q", got)
	}
}

func TestBadLoginKeepsServerReason(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("login", "-u", "admin", "-p", "wrong")
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := describeError(err)
	if !strings.Contains(msg, "Invalid username or password") {
		t.Fatalf("message %q", msg)
	}
	if _, err := c.run("stats"); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("bans", "list")
	if !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if got := describeError(err); got != "not logged in, run f2bctl login" {
		t.Fatalf("message %q", got)
	}
	if c.backend.Calls("GET /api/banned-ips") != 0 {
		t.Fatalf("request sent without a session")
	}
}

func TestRevokedTokenClearsSession(t *testing.T) {
	c := newCLI(t)
	c.login()
	c.backend.Revoke()

	_, err := c.run("jails", "list")
	if !errors.Is(err, apiclient.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if got := describeError(err); got != "session expired, run f2bctl login" {
		t.Fatalf("message %q", got)
	}
	if _, err := c.run("jails", "list"); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("session should be cleared, got %v", err)
	}
}

func TestBansAndJails(t *testing.T) {
	c := newCLI(t)
	c.login()

	out, err := c.run("--json", "bans", "list", "--filter", "jail=sshd")
	if err != nil {
		t.Fatalf("bans list: %v", err)
	}
	var page f2bapi.Page[f2bapi.BannedIP]
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(page.Data) != 1 || page.Data[0].IP != "203.0.113.7" {
		t.Fatalf("unexpected page %+v", page)
	}

	if _, err := c.run("bans", "unban", "203.0.113.7"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	for _, ip := range c.backend.Banned() {
		if ip == "203.0.113.7" {
			t.Fatalf("still banned")
		}
	}

	if _, err := c.run("jails", "update", "sshd", "--maxretry", "7"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if j, _ := c.backend.Jail("sshd"); j.MaxRetry != 7 {
		t.Fatalf("maxretry %d", j.MaxRetry)
	}

	_, err = c.run("jails", "update", "sshd", "--maxretry", "0")
	var ve *f2bapi.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if c.backend.Calls("PUT /api/jails/sshd") != 1 {
		t.Fatalf("invalid update reached the server")
	}

	out, err = c.run("jails", "list")
	if err != nil {
		t.Fatalf("jails list: %v", err)
	}
	if !strings.Contains(out, "nginx-http-auth") || !strings.Contains(out, "MaxRetry") {
		t.Fatalf("jails table %q", out)
	}
}

func TestWhitelistImport(t *testing.T) {
	c := newCLI(t)
	c.login()
	file := filepath.Join(t.TempDir(), "allow.yaml")
	data := "- ip: 192.0.2.10\n  description: monitoring\n- ip: 192.0.2.11\n"
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := c.run("whitelist", "import", file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "2 entries whitelisted") {
		t.Fatalf("output %q", out)
	}
	if c.backend.Calls("POST /api/whitelist/batch") != 1 {
		t.Fatalf("batch endpoint not called")
	}
}

func TestLogoutDespiteServerError(t *testing.T) {
	c := newCLI(t)
	c.login()
	c.backend.SetLogoutStatus(http.StatusInternalServerError)

	out, err := c.run("logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "Logged out") {
		t.Fatalf("output %q", out)
	}
	if c.backend.Calls("POST /auth/logout") != 1 {
		t.Fatalf("logout not sent")
	}
	if _, err := c.run("whoami"); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected signed out, got %v", err)
	}
}

func TestRefreshCommand(t *testing.T) {
	c := newCLI(t)
	c.login()
	out, err := c.run("refresh")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !strings.Contains(out, "Token still valid") {
		t.Fatalf("output %q", out)
	}
	if c.backend.Calls("GET /auth/verify") != 1 || c.backend.Calls("POST /auth/refresh") != 0 {
		t.Fatalf("valid token was exchanged")
	}

	if _, err := c.run("refresh", "--force"); err != nil {
		t.Fatalf("refresh --force: %v", err)
	}
	if _, err := c.run("stats"); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got := c.backend.LastAuth("GET /api/stats"); got != "Bearer abc-1" {
		t.Fatalf("stats auth %q", got)
	}

	c.backend.SetVerifyStatus(http.StatusBadGateway)
	out, err = c.run("refresh")
	if err != nil {
		t.Fatalf("refresh after failed verify: %v", err)
	}
	if !strings.Contains(out, "Token refreshed") || c.backend.Calls("POST /auth/refresh") != 2 {
		t.Fatalf("output %q, refreshes %d", out, c.backend.Calls("POST /auth/refresh"))
	}

	c.backend.SetRefreshStatus(http.StatusUnauthorized)
	if _, err := c.run("refresh", "--force"); !errors.Is(err, apiclient.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if _, err := c.run("stats"); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected signed out, got %v", err)
	}
}

func TestPasswdCommand(t *testing.T) {
	c := newCLI(t)
	c.login()
	if _, err := c.run("passwd", "--old", "wrong", "--new", "n3w-secret"); err == nil {
		t.Fatalf("wrong current password accepted")
	}
	if _, err := c.run("passwd", "--old", testbackend.AdminPassword, "--new", "n3w-secret"); err != nil {
		t.Fatalf("passwd: %v", err)
	}
	if c.backend.Password() != "n3w-secret" {
		t.Fatalf("password unchanged")
	}
	if _, err := c.run("whoami"); err != nil {
		t.Fatalf("session lost after passwd: %v", err)
	}
}

func TestWatchRefreshesToken(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the refresh schedule")
	}
	c := newCLI(t)
	c.login()

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	out, err := c.runContext(ctx, "watch", "--refresh-interval", "1s", "--stats-every", "0")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out, "Watching as admin") {
		t.Fatalf("output %q", out)
	}
	if c.backend.Calls("POST /auth/refresh") == 0 {
		t.Fatalf("token was never refreshed")
	}
	if _, err := c.run("whoami"); err != nil {
		t.Fatalf("whoami after watch: %v", err)
	}
	if got := c.backend.LastAuth("GET /auth/profile"); !strings.HasPrefix(got, "Bearer abc-") {
		t.Fatalf("rotated token not stored, got %q", got)
	}
}

func TestWatchExitsWhenRefreshFails(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the refresh schedule")
	}
	c := newCLI(t)
	c.login()
	c.backend.SetRefreshStatus(http.StatusInternalServerError)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.runContext(ctx, "watch", "--refresh-interval", "1s", "--stats-every", "0")
	if !errors.Is(err, apiclient.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if _, err := c.run("whoami"); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected signed out, got %v", err)
	}
}

func TestWatchNeedsSession(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("watch")
	if !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
