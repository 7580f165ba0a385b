package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func writeEnvelope(w http.ResponseWriter, status int, env map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func newTestClient(t *testing.T, h http.HandlerFunc, tok TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/api/v1", Tokens: tok})
}

func TestBearerTokenAndEnvelopeData(t *testing.T) {
	var gotAuth, gotPath, gotReqID, gotCT string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotReqID = r.Header.Get("X-Request-ID")
		gotCT = r.Header.Get("Content-Type")
		writeEnvelope(w, 200, map[string]any{"success": true, "data": map[string]any{"active_jails": 3}})
	}, staticToken("abc"))

	var out struct {
		ActiveJails int `json:"active_jails"`
	}
	if err := c.Get(context.Background(), "/api/stats", nil, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("authorization: %q", gotAuth)
	}
	if gotPath != "/api/v1/api/stats" {
		t.Fatalf("path: %s", gotPath)
	}
	if gotReqID == "" {
		t.Fatalf("missing request id")
	}
	if gotCT != "application/json" {
		t.Fatalf("content type: %s", gotCT)
	}
	if out.ActiveJails != 3 {
		t.Fatalf("data: %+v", out)
	}
}

func TestNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, 200, map[string]any{"success": true})
	}, staticToken(""))
	if err := c.Post(context.Background(), "/auth/login", map[string]string{"username": "a"}, nil); err != nil {
		t.Fatalf("post: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
}

func TestEnvelopeFailure(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]any
		want string
	}{
		{"error field", map[string]any{"success": false, "error": "jail not found", "message": "ignored"}, "jail not found"},
		{"message field", map[string]any{"success": false, "message": "bad input"}, "bad input"},
		{"no reason", map[string]any{"success": false}, "request failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 200, tc.env)
			}, nil)
			err := c.Get(context.Background(), "/api/jails/x", nil, nil)
			var rf *RequestFailedError
			if !errors.As(err, &rf) {
				t.Fatalf("want RequestFailedError, got %T %v", err, err)
			}
			if rf.Message != tc.want {
				t.Fatalf("message: %q", rf.Message)
			}
		})
	}
}

func TestNon2xxUsesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 500, map[string]any{"success": false, "error": "fail2ban-client not running"})
	}, nil)
	err := c.Post(context.Background(), "/api/system/restart", nil, nil)
	var rf *RequestFailedError
	if !errors.As(err, &rf) || rf.Status != 500 || rf.Message != "fail2ban-client not running" {
		t.Fatalf("unexpected: %#v", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}, nil)
	err = c.Get(context.Background(), "/api/stats", nil, nil)
	if !errors.As(err, &rf) || rf.Message != "request failed with status 502" {
		t.Fatalf("unexpected: %#v", err)
	}
}

func TestUnauthorizedEmitsAuthFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 401, map[string]any{"success": false, "error": "token expired"})
	}, staticToken("stale"))
	var fired int32
	remove := c.OnAuthFailure(func() { atomic.AddInt32(&fired, 1) })

	for _, path := range []string{"/api/stats", "/api/jails", "/auth/profile"} {
		if err := c.Get(context.Background(), path, nil, nil); !errors.Is(err, ErrAuthExpired) {
			t.Fatalf("%s: want ErrAuthExpired, got %v", path, err)
		}
	}
	if atomic.LoadInt32(&fired) != 3 {
		t.Fatalf("handler fired %d times", fired)
	}
	err := c.Post(context.Background(), "/auth/login", nil, nil)
	if msg := UserMessage(err); msg != "token expired" {
		t.Fatalf("server reason lost: %q", msg)
	}
	remove()
	_ = c.Get(context.Background(), "/api/stats", nil, nil)
	if atomic.LoadInt32(&fired) != 4 {
		t.Fatalf("handler fired after removal")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := New(Options{BaseURL: url, Timeout: time.Second})
	err := c.Get(context.Background(), "/api/stats", nil, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("want NetworkError, got %T %v", err, err)
	}
	if ne.Message == "" || UserMessage(err) != ne.Message {
		t.Fatalf("message: %q", ne.Message)
	}
}

func TestInvalidBodyIsNetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}, nil)
	err := c.Get(context.Background(), "/api/stats", nil, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Message != "invalid response from server" {
		t.Fatalf("unexpected: %#v", err)
	}
}

func TestQueryAndUpload(t *testing.T) {
	var gotQuery, gotField, gotFile string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gotQuery = r.URL.RawQuery
		} else {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("multipart: %v", err)
			}
			gotField = r.FormValue("jail")
			f, _, err := r.FormFile("file")
			if err == nil {
				b, _ := io.ReadAll(f)
				gotFile = string(b)
			}
		}
		writeEnvelope(w, 200, map[string]any{"success": true})
	}, nil)

	q := map[string][]string{"days": {"7"}}
	if err := c.Get(context.Background(), "/api/stats/history", q, nil); err != nil {
		t.Fatal(err)
	}
	if gotQuery != "days=7" {
		t.Fatalf("query: %s", gotQuery)
	}
	err := c.Upload(context.Background(), "/intelligent/analyze-log", map[string]string{"jail": "sshd"},
		[]FilePart{{Field: "file", Filename: "auth.log", Content: strings.NewReader("Failed password")}}, nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotField != "sshd" || gotFile != "Failed password" {
		t.Fatalf("upload payload: %q %q", gotField, gotFile)
	}
}

func TestMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1 := NewMetrics(reg)
	m2 := NewMetrics(reg)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, map[string]any{"success": true})
	}))
	defer srv.Close()
	_ = New(Options{BaseURL: srv.URL, Metrics: m1}).Get(context.Background(), "/x", nil, nil)
	_ = New(Options{BaseURL: srv.URL, Metrics: m2}).Get(context.Background(), "/x", nil, nil)
	if got := testutil.ToFloat64(m1.requests.WithLabelValues("GET", "ok")); got != 2 {
		t.Fatalf("requests counter: %v", got)
	}
}
