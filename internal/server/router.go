// Package server is the console: a server-rendered dashboard and a small
// JSON API in front of the fail2ban-web backend. Browser sessions live in
// the auth_token/user_info cookies; every request rebuilds the session
// layer from them.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/difyz9/fail2ban-web/internal/config"
	"github.com/difyz9/fail2ban-web/internal/ratelimit"
	"github.com/difyz9/fail2ban-web/pkg/apiclient"
	"github.com/difyz9/fail2ban-web/pkg/auth"
	"github.com/difyz9/fail2ban-web/pkg/session"
)

func Logger(cfg config.Config) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
	return &logger
}

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg     config.Config
	logger  zerolog.Logger
	hashKey []byte
	httpc   *http.Client

	registry    *prometheus.Registry
	apiMetrics  *apiclient.Metrics
	loginEvents *prometheus.CounterVec
	limiter     *ratelimit.Limiter
	pages       *pageSet
}

// New prepares the console. The cookie signing key is read from
// cfg.SecretPath and created there on first start.
func New(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, err
	}
	key, err := session.LoadOrCreateKey(cfg.SecretPath)
	if err != nil {
		return nil, err
	}
	pages, err := loadPages()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "f2bweb_console_logins_total",
		Help: "Console sign-in attempts by result.",
	}, []string{"result"})
	reg.MustRegister(logins)

	return &Server{
		cfg:         cfg,
		logger:      logger.With().Str("component", "console").Logger(),
		hashKey:     key,
		httpc:       &http.Client{Timeout: cfg.APITimeout},
		registry:    reg,
		apiMetrics:  apiclient.NewMetrics(reg),
		loginEvents: logins,
		limiter:     ratelimit.New(filepath.Join(cfg.StateDir, "ratelimit.json"), cfg.RateLoginPerWindow, time.Duration(cfg.RateLoginWindowSec)*time.Second),
		pages:       pages,
	}, nil
}

// Serve runs the console on ln until ctx is done. It returns once open
// connections have drained and the login counters are on disk.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan error, 1)
	go func() { served <- hs.Serve(ln) }()

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = hs.Shutdown(shutdownCtx)
		<-served
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if ferr := s.limiter.Flush(flushCtx); ferr != nil {
		s.logger.Warn().Err(ferr).Msg("flush rate limits")
	}
	return err
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(zerologMiddleware(&s.logger))
	r.Use(securityHeaders)
	if s.cfg.CORSOrigin != "" {
		c := cors.New(cors.Options{
			AllowedOrigins:   []string{s.cfg.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "api": s.cfg.APIURL})
	})
	if s.cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, string(auth.RouteHome), http.StatusSeeOther)
	})
	r.Method(http.MethodGet, "/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.withConsole)
		r.Use(noStore)

		r.Group(func(r chi.Router) {
			r.Use(s.guard(auth.PublicOnly))
			r.Get("/login", s.handleLoginPage)
			r.Post("/login", s.handleLoginForm)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.guard(auth.Public))
			r.Post("/logout", s.handleLogout)
			r.Get("/ui/api/session", s.handleSessionInfo)
			r.Post("/ui/api/session", s.handleSessionLogin)
			r.Delete("/ui/api/session", s.handleSessionLogout)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.guard(auth.Protected))
			s.pageRoutes(r)
			s.formRoutes(r)
			r.Post("/ui/api/session/refresh", s.handleSessionRefresh)
			r.Post("/ui/api/account/password", s.handleChangePassword)
			s.apiRoutes(r)
		})
	})
	return r
}
