package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Bind          string
	TrustProxy    bool
	SecureCookies bool

	APIURL     string
	APITimeout time.Duration

	SessionTTL      time.Duration
	RefreshInterval time.Duration
	SecretPath      string
	StateDir        string

	CORSOrigin     string
	LogLevel       zerolog.Level
	MetricsEnabled bool

	RateLoginPerWindow int
	RateLoginWindowSec int

	Source string
}

type rawConfig struct {
	HTTP struct {
		Bind          string `yaml:"bind"`
		TrustProxy    *bool  `yaml:"trustProxy"`
		SecureCookies *bool  `yaml:"secureCookies"`
	} `yaml:"http"`
	API struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Session struct {
		TTL             string `yaml:"ttl"`
		RefreshInterval string `yaml:"refreshInterval"`
		SecretPath      string `yaml:"secretPath"`
	} `yaml:"session"`
	StateDir string `yaml:"stateDir"`
	CORS     struct {
		Origin string `yaml:"origin"`
	} `yaml:"cors"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Rate struct {
		LoginPerWindow int `yaml:"loginPerWindow"`
		LoginWindowSec int `yaml:"loginWindowSec"`
	} `yaml:"rate"`
}

func Defaults() Config {
	return Config{
		Bind:               "127.0.0.1:3000",
		APIURL:             "http://localhost:8080/api/v1",
		APITimeout:         10 * time.Second,
		SessionTTL:         7 * 24 * time.Hour,
		RefreshInterval:    15 * time.Minute,
		StateDir:           "./data",
		LogLevel:           zerolog.InfoLevel,
		MetricsEnabled:     true,
		RateLoginPerWindow: 5,
		RateLoginWindowSec: 900,
	}
}

// DefaultPath returns F2B_CONFIG when set, ./console.yaml when present and
// /etc/fail2ban-web/console.yaml otherwise.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("F2B_CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat("console.yaml"); err == nil {
		return "console.yaml"
	}
	return "/etc/fail2ban-web/console.yaml"
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are fine.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path (a missing file means defaults) and then
// applies F2B_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			var raw rawConfig
			if err := yaml.Unmarshal(b, &raw); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
			if err := cfg.applyFile(raw); err != nil {
				return cfg, fmt.Errorf("config %s: %w", path, err)
			}
			cfg.Source = path
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = filepath.Join(cfg.StateDir, "cookie.key")
	}
	return cfg, nil
}

func (c *Config) applyFile(raw rawConfig) error {
	setStr(&c.Bind, raw.HTTP.Bind)
	setBool(&c.TrustProxy, raw.HTTP.TrustProxy)
	setBool(&c.SecureCookies, raw.HTTP.SecureCookies)
	setStr(&c.APIURL, raw.API.URL)
	setStr(&c.SecretPath, raw.Session.SecretPath)
	setStr(&c.StateDir, raw.StateDir)
	setStr(&c.CORSOrigin, raw.CORS.Origin)
	setBool(&c.MetricsEnabled, raw.Metrics.Enabled)
	if raw.Rate.LoginPerWindow > 0 {
		c.RateLoginPerWindow = raw.Rate.LoginPerWindow
	}
	if raw.Rate.LoginWindowSec > 0 {
		c.RateLoginWindowSec = raw.Rate.LoginWindowSec
	}
	for _, d := range []struct {
		name string
		v    string
		dst  *time.Duration
	}{
		{"api.timeout", raw.API.Timeout, &c.APITimeout},
		{"session.ttl", raw.Session.TTL, &c.SessionTTL},
		{"session.refreshInterval", raw.Session.RefreshInterval, &c.RefreshInterval},
	} {
		if err := setDuration(d.dst, d.v); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	if raw.Logging.Level != "" {
		l, err := zerolog.ParseLevel(raw.Logging.Level)
		if err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
		c.LogLevel = l
	}
	return nil
}

func (c *Config) applyEnv() error {
	setStr(&c.Bind, os.Getenv("F2B_HTTP_BIND"))
	setStr(&c.APIURL, os.Getenv("F2B_API_URL"))
	setStr(&c.SecretPath, os.Getenv("F2B_SECRET_PATH"))
	setStr(&c.StateDir, os.Getenv("F2B_STATE_DIR"))
	setStr(&c.CORSOrigin, os.Getenv("F2B_CORS_ORIGIN"))
	envBool(&c.TrustProxy, "F2B_TRUST_PROXY")
	envBool(&c.SecureCookies, "F2B_SECURE_COOKIES")
	envBool(&c.MetricsEnabled, "F2B_METRICS")
	envInt(&c.RateLoginPerWindow, "F2B_RATE_LOGIN")
	envInt(&c.RateLoginWindowSec, "F2B_RATE_LOGIN_WINDOW_SEC")
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"F2B_API_TIMEOUT", &c.APITimeout},
		{"F2B_SESSION_TTL", &c.SessionTTL},
		{"F2B_REFRESH_INTERVAL", &c.RefreshInterval},
	} {
		if err := setDuration(d.dst, os.Getenv(d.key)); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	if v := os.Getenv("F2B_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			c.LogLevel = l
		}
	}
	return nil
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", v)
	}
	*dst = d
	return nil
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
