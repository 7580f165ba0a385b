package session

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestStore(jar Jar) *Store {
	return NewStore(jar, Options{HashKey: testKey, Logger: zerolog.Nop()})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	jar := NewMemoryJar()
	s := newTestStore(jar)
	if s.Load() != nil {
		t.Fatalf("empty store returned a session")
	}
	u := f2bapi.User{ID: 1, Username: "admin", Role: "admin"}
	if err := s.Save("abc", u); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := s.Load()
	if got == nil || got.Token != "abc" || got.User.Username != "admin" || got.User.ID != 1 {
		t.Fatalf("load: %+v", got)
	}
	if d := time.Until(got.ExpiresAt); d < DefaultTTL-time.Minute || d > DefaultTTL+time.Minute {
		t.Fatalf("expiry %v not ~7 days out", got.ExpiresAt)
	}
	if s.Token() != "abc" {
		t.Fatalf("token %q", s.Token())
	}
}

func TestSaveTokenKeepsUser(t *testing.T) {
	s := newTestStore(NewMemoryJar())
	if err := s.Save("abc", f2bapi.User{Username: "admin"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveToken("def"); err != nil {
		t.Fatal(err)
	}
	got := s.Load()
	if got == nil || got.Token != "def" || got.User.Username != "admin" {
		t.Fatalf("load after refresh: %+v", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	jar := NewMemoryJar()
	s := newTestStore(jar)
	s.Clear()
	_ = s.Save("abc", f2bapi.User{Username: "admin"})
	s.Clear()
	s.Clear()
	if s.Load() != nil || s.Token() != "" || jar.Len() != 0 {
		t.Fatalf("store not empty after clear")
	}
}

func TestTokenWithoutUserIsNoSession(t *testing.T) {
	s := newTestStore(NewMemoryJar())
	_ = s.SaveToken("abc")
	if s.Load() != nil {
		t.Fatalf("token alone should not form a session")
	}
	if s.Token() != "abc" {
		t.Fatalf("token should still be readable")
	}
}

func TestCorruptCookieIsCleared(t *testing.T) {
	for _, name := range []string{TokenCookie, UserCookie} {
		t.Run(name, func(t *testing.T) {
			jar := NewMemoryJar()
			s := newTestStore(jar)
			_ = s.Save("abc", f2bapi.User{Username: "admin"})
			jar.Set(&http.Cookie{Name: name, Value: "not-json{", MaxAge: 60})
			if s.Load() != nil {
				t.Fatalf("corrupt %s produced a session", name)
			}
			if jar.Len() != 0 {
				t.Fatalf("corrupt session not cleared, %d cookies left", jar.Len())
			}
		})
	}
}

func TestForeignKeyRejected(t *testing.T) {
	jar := NewMemoryJar()
	_ = NewStore(jar, Options{HashKey: []byte("another-key-another-key-another-"), Logger: zerolog.Nop()}).Save("abc", f2bapi.User{})
	if newTestStore(jar).Load() != nil {
		t.Fatalf("cookie signed with another key accepted")
	}
}

func TestExpiredTokenIgnored(t *testing.T) {
	jar := NewMemoryJar()
	s := newTestStore(jar)
	s.now = func() time.Time { return time.Now().Add(-DefaultTTL - time.Hour) }
	_ = s.Save("abc", f2bapi.User{Username: "admin"})
	s.now = time.Now
	if s.Load() != nil {
		t.Fatalf("expired session loaded")
	}
}

func TestRequestJarCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := NewStore(NewRequestJar(rec, req), Options{HashKey: testKey, Secure: true, Logger: zerolog.Nop()})
	if err := s.Save("abc", f2bapi.User{Username: "admin"}); err != nil {
		t.Fatal(err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("want 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Name != TokenCookie && c.Name != UserCookie {
			t.Fatalf("unexpected cookie %q", c.Name)
		}
		if c.Path != "/" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %s attributes: %+v", c.Name, c)
		}
		if c.MaxAge != int(DefaultTTL/time.Second) {
			t.Fatalf("cookie %s max-age %d", c.Name, c.MaxAge)
		}
	}

	// The next request carries the cookies back.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req2.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec2 := httptest.NewRecorder()
	s2 := newTestStore(NewRequestJar(rec2, req2))
	if got := s2.Load(); got == nil || got.Token != "abc" {
		t.Fatalf("session did not survive the round trip: %+v", got)
	}
	s2.Clear()
	if s2.Load() != nil {
		t.Fatalf("cleared cookies still visible within the request")
	}
	for _, c := range rec2.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("clear should expire %s, got max-age %d", c.Name, c.MaxAge)
		}
	}
}

func TestFileJarPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := newTestStore(NewFileJar(path))
	if err := s.Save("abc", f2bapi.User{Username: "admin"}); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("jar file: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("jar file mode %v", fi.Mode().Perm())
	}
	// A second process opening the same file sees the session.
	if got := newTestStore(NewFileJar(path)).Load(); got == nil || got.Token != "abc" {
		t.Fatalf("file jar lost the session: %+v", got)
	}
	s.Clear()
	if newTestStore(NewFileJar(path)).Load() != nil {
		t.Fatalf("cleared session still on disk")
	}
}

func TestFileJarDropsExpired(t *testing.T) {
	jar := NewFileJar(filepath.Join(t.TempDir(), "jar.json"))
	jar.Set(&http.Cookie{Name: "a", Value: "1", Expires: time.Now().Add(time.Hour)})
	if v, ok := jar.Get("a"); !ok || v != "1" {
		t.Fatalf("get a: %q %v", v, ok)
	}
	jar.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok := jar.Get("a"); ok {
		t.Fatalf("expired cookie returned")
	}
}

func TestLoadOrCreateKeyStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie.key")
	k1, err := LoadOrCreateKey(path)
	if err != nil || len(k1) != 32 {
		t.Fatalf("create key: %v len=%d", err, len(k1))
	}
	k2, err := LoadOrCreateKey(path)
	if err != nil || string(k1) != string(k2) {
		t.Fatalf("key changed between loads")
	}
}
