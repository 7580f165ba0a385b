// Package session keeps the signed-in token and a user snapshot in two
// cookies, auth_token and user_info, with a fixed 7-day expiry and
// SameSite=Strict.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"

	"github.com/difyz9/fail2ban-web/internal/fsatomic"
	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

const (
	TokenCookie = "auth_token"
	UserCookie  = "user_info"

	DefaultTTL = 7 * 24 * time.Hour
)

type Session struct {
	Token     string
	User      f2bapi.User
	ExpiresAt time.Time
}

// ParseError reports a stored cookie that failed signature or JSON checks.
type ParseError struct {
	Cookie string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("session: corrupt %s cookie: %v", e.Cookie, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

type Options struct {
	// HashKey signs cookie values; BlockKey (16, 24 or 32 bytes) also
	// encrypts them. A missing HashKey gets a random per-process key.
	HashKey  []byte
	BlockKey []byte
	TTL      time.Duration
	Secure   bool
	Logger   zerolog.Logger
}

type Store struct {
	jar    Jar
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	secure bool
	logger zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

type tokenPayload struct {
	Token     string `json:"t"`
	ExpiresAt int64  `json:"exp"`
}

func NewStore(jar Jar, opts Options) *Store {
	logger := opts.Logger.With().Str("component", "session-store").Logger()
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	hashKey := opts.HashKey
	if len(hashKey) == 0 {
		logger.Warn().Msg("no cookie hash key configured; sessions will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, opts.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(ttl / time.Second))
	return &Store{jar: jar, codec: codec, ttl: ttl, secure: opts.Secure, logger: logger, now: time.Now}
}

func (s *Store) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Save writes the token and the user snapshot with the same expiry.
func (s *Store) Save(token string, user f2bapi.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.now().Add(s.ttl)
	tv, err := s.codec.Encode(TokenCookie, tokenPayload{Token: token, ExpiresAt: exp.Unix()})
	if err != nil {
		return fmt.Errorf("session: encode token: %w", err)
	}
	uv, err := s.codec.Encode(UserCookie, user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	s.jar.Set(s.cookie(TokenCookie, tv, exp))
	s.jar.Set(s.cookie(UserCookie, uv, exp))
	return nil
}

// SaveToken replaces the token only; the user snapshot is left as it is.
func (s *Store) SaveToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.now().Add(s.ttl)
	tv, err := s.codec.Encode(TokenCookie, tokenPayload{Token: token, ExpiresAt: exp.Unix()})
	if err != nil {
		return fmt.Errorf("session: encode token: %w", err)
	}
	s.jar.Set(s.cookie(TokenCookie, tv, exp))
	return nil
}

// Load returns the stored session, or nil when either cookie is missing or
// unreadable. Unreadable cookies are cleared on the way out.
func (s *Store) Load() *Session {
	tok, ok := s.decodeToken()
	if !ok {
		return nil
	}
	raw, ok := s.jar.Get(UserCookie)
	if !ok {
		return nil
	}
	var u f2bapi.User
	if err := s.codec.Decode(UserCookie, raw, &u); err != nil {
		s.heal(&ParseError{Cookie: UserCookie, Err: err})
		return nil
	}
	return &Session{Token: tok.Token, User: u, ExpiresAt: time.Unix(tok.ExpiresAt, 0)}
}

// Token returns the stored bearer token or "".
func (s *Store) Token() string {
	tok, ok := s.decodeToken()
	if !ok {
		return ""
	}
	return tok.Token
}

func (s *Store) decodeToken() (tokenPayload, bool) {
	raw, ok := s.jar.Get(TokenCookie)
	if !ok {
		return tokenPayload{}, false
	}
	var tok tokenPayload
	if err := s.codec.Decode(TokenCookie, raw, &tok); err != nil {
		s.heal(&ParseError{Cookie: TokenCookie, Err: err})
		return tokenPayload{}, false
	}
	if tok.Token == "" {
		s.heal(&ParseError{Cookie: TokenCookie, Err: errors.New("empty token")})
		return tokenPayload{}, false
	}
	if tok.ExpiresAt > 0 && s.now().Unix() >= tok.ExpiresAt {
		s.Clear()
		return tokenPayload{}, false
	}
	return tok, true
}

func (s *Store) heal(err error) {
	s.logger.Warn().Err(err).Msg("dropping unreadable session")
	s.Clear()
}

// Clear removes both cookies. Calling it on an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range []string{TokenCookie, UserCookie} {
		s.jar.Set(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// LoadOrCreateKey reads a cookie signing key from path, creating a random
// 32-byte key there on first use.
func LoadOrCreateKey(path string) ([]byte, error) {
	if b, err := os.ReadFile(path); err == nil && len(b) >= 32 {
		return b, nil
	}
	var key []byte
	err := fsatomic.WithLock(path, func() error {
		if b, err := os.ReadFile(path); err == nil && len(b) >= 32 {
			key = b
			return nil
		}
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return errors.New("session: could not generate key")
		}
		return fsatomic.SaveBytes(context.Background(), path, key, 0o600)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}
