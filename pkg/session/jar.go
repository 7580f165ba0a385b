package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/difyz9/fail2ban-web/internal/fsatomic"
)

// Jar is where session cookies live: the browser (RequestJar), a file for
// the CLI (FileJar) or memory (MemoryJar). Writing a cookie with MaxAge < 0
// or an Expires in the past removes it.
type Jar interface {
	Get(name string) (string, bool)
	Set(c *http.Cookie)
}

// RequestJar reads the cookies a browser sent and answers with Set-Cookie.
// Cookies set during the request shadow the ones that came in.
type RequestJar struct {
	w http.ResponseWriter
	r *http.Request

	mu      sync.Mutex
	written map[string]*http.Cookie
}

func NewRequestJar(w http.ResponseWriter, r *http.Request) *RequestJar {
	return &RequestJar{w: w, r: r, written: map[string]*http.Cookie{}}
}

func (j *RequestJar) Get(name string) (string, bool) {
	j.mu.Lock()
	c, ok := j.written[name]
	j.mu.Unlock()
	if ok {
		if c.MaxAge < 0 || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
	ck, err := j.r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (j *RequestJar) Set(c *http.Cookie) {
	j.mu.Lock()
	j.written[c.Name] = c
	j.mu.Unlock()
	http.SetCookie(j.w, c)
}

type storedCookie struct {
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires"`
	SameSite string    `json:"same_site,omitempty"`
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

func apply(m map[string]storedCookie, c *http.Cookie, now time.Time) {
	exp := c.Expires
	if c.MaxAge > 0 {
		exp = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	if c.MaxAge < 0 || c.Value == "" || (!exp.IsZero() && !now.Before(exp)) {
		delete(m, c.Name)
		return
	}
	m[c.Name] = storedCookie{Value: c.Value, Expires: exp, SameSite: sameSiteName(c.SameSite)}
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteNoneMode:
		return "none"
	}
	return ""
}

// MemoryJar keeps cookies in process, honouring expiry.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]storedCookie
	now     func() time.Time
}

func NewMemoryJar() *MemoryJar {
	return &MemoryJar{cookies: map[string]storedCookie{}, now: time.Now}
}

func (j *MemoryJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return "", false
	}
	if c.expired(j.now()) {
		delete(j.cookies, name)
		return "", false
	}
	return c.Value, true
}

func (j *MemoryJar) Set(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	apply(j.cookies, c, j.now())
}

// Len reports how many live cookies the jar holds.
func (j *MemoryJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, c := range j.cookies {
		if !c.expired(j.now()) {
			n++
		}
	}
	return n
}

type jarFile struct {
	Version int                     `json:"version"`
	Cookies map[string]storedCookie `json:"cookies"`
}

// FileJar persists cookies to a 0600 JSON file. Every read goes back to disk
// so separate processes sharing the file agree on the session.
type FileJar struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileJar(path string) *FileJar {
	return &FileJar{path: path, now: time.Now}
}

func (j *FileJar) Path() string { return j.path }

func (j *FileJar) read() map[string]storedCookie {
	var f jarFile
	if ok, err := fsatomic.LoadJSON(j.path, &f); err != nil || !ok || f.Cookies == nil {
		return map[string]storedCookie{}
	}
	return f.Cookies
}

func (j *FileJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var m map[string]storedCookie
	// LoadJSON sweeps a stale temp file, so readers take the lock too.
	if err := fsatomic.WithLock(j.path, func() error { m = j.read(); return nil }); err != nil {
		return "", false
	}
	c, ok := m[name]
	if !ok || c.expired(j.now()) {
		return "", false
	}
	return c.Value, true
}

// Set applies c and rewrites the file. Write errors are swallowed like a
// browser that refuses a cookie; the next Get simply misses.
func (j *FileJar) Set(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = fsatomic.WithLock(j.path, func() error {
		m := j.read()
		now := j.now()
		for k, v := range m {
			if v.expired(now) {
				delete(m, k)
			}
		}
		apply(m, c, now)
		return fsatomic.SaveJSON(context.Background(), j.path, jarFile{Version: 1, Cookies: m}, 0o600)
	})
}
