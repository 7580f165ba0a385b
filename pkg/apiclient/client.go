// Package apiclient talks to the fail2ban-web REST API: it attaches the
// bearer token, unwraps the response envelope and reports 401s to the
// session layer through auth-failure handlers.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/v1"
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 8 << 20
)

// TokenSource yields the current bearer token, or "" when signed out.
type TokenSource interface {
	Token() string
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTP overrides the transport; Timeout is ignored when it is set.
	HTTP    *http.Client
	Tokens  TokenSource
	Metrics *Metrics
	Logger  zerolog.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	metrics *Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	nextID   int
	handlers map[int]func()
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  base,
		http:     hc,
		tokens:   opts.Tokens,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With().Str("component", "apiclient").Logger(),
		handlers: map[int]func(){},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// OnAuthFailure registers fn to run whenever a response comes back 401,
// whichever call triggered it. The returned func unregisters it.
func (c *Client) OnAuthFailure(fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *Client) emitAuthFailure() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.handlers))
	for _, fn := range c.handlers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodDelete, path, query, nil, out)
}

// Do sends one request and decodes the envelope's data into out (which may
// be nil). There are no retries.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		rdr = buf
	}
	return c.send(ctx, method, path, query, rdr, "application/json", out)
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Upload posts a multipart form made of fields and files.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []FilePart, out any) error {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("apiclient: upload field %s: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("apiclient: upload file %s: %w", f.Filename, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("apiclient: upload file %s: %w", f.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, path, nil, buf, mw.FormDataContentType(), out)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	target := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &NetworkError{Method: method, URL: target, Message: "invalid request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(method, "network", start)
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("api call failed")
		return &NetworkError{Method: method, URL: target, Message: networkMessage(err), Err: err}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		c.metrics.observe(method, "network", start)
		return &NetworkError{Method: method, URL: target, Message: networkMessage(err), Err: err}
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", res.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api call")

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)
	if res.StatusCode == http.StatusUnauthorized {
		c.metrics.observe(method, "auth_expired", start)
		c.emitAuthFailure()
		ae := &AuthExpiredError{}
		if decodeErr == nil {
			ae.Message = env.reason()
		}
		return ae
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.metrics.observe(method, "http_error", start)
		msg := ""
		if decodeErr == nil {
			msg = env.reason()
		}
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", res.StatusCode)
		}
		return &RequestFailedError{Status: res.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		c.metrics.observe(method, "invalid", start)
		return &NetworkError{Method: method, URL: target, Message: "invalid response from server", Err: decodeErr}
	}
	if !env.Success {
		c.metrics.observe(method, "failed", start)
		msg := env.reason()
		if msg == "" {
			msg = "request failed"
		}
		return &RequestFailedError{Status: res.StatusCode, Message: msg}
	}
	c.metrics.observe(method, "ok", start)
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}
