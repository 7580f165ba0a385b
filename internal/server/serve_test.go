package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/difyz9/fail2ban-web/internal/config"
	"github.com/difyz9/fail2ban-web/internal/testbackend"
)

func TestServeFlushesLimiterOnShutdown(t *testing.T) {
	b := testbackend.New(t)
	cfg := config.Defaults()
	cfg.APIURL = b.URL()
	cfg.StateDir = t.TempDir()
	cfg.SecretPath = filepath.Join(cfg.StateDir, "cookie.key")
	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	res, err := http.PostForm("http://"+ln.Addr().String()+"/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login status %d", res.StatusCode)
	}
	path := filepath.Join(cfg.StateDir, "ratelimit.json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("counters written before shutdown: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("counters not flushed: %v", err)
	}
	var st struct {
		Buckets map[string]struct {
			Hits int `json:"hits"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if len(st.Buckets) != 1 {
		t.Fatalf("buckets %s", data)
	}
	for _, bk := range st.Buckets {
		if bk.Hits != 1 {
			t.Fatalf("hits %d", bk.Hits)
		}
	}
}
