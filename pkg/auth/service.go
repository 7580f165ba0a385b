// Package auth runs the console's session lifecycle: the Service talks to the
// auth endpoints and keeps the session store in step, the Machine holds the
// reactive signed-in state with its refresh loop, and Decide is the guard
// policy views are gated on.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
	"github.com/difyz9/fail2ban-web/pkg/session"
)

// Store is the part of session.Store the service needs.
type Store interface {
	Save(token string, user f2bapi.User) error
	SaveToken(token string) error
	Load() *session.Session
	Token() string
	Clear()
}

type Service struct {
	api    f2bapi.Caller
	store  Store
	logger zerolog.Logger
}

func NewService(api f2bapi.Caller, store Store, logger zerolog.Logger) *Service {
	return &Service{
		api:    api,
		store:  store,
		logger: logger.With().Str("component", "auth-service").Logger(),
	}
}

// Login posts the credentials and stores the returned token and user.
// Client errors are returned as they are.
func (s *Service) Login(ctx context.Context, creds f2bapi.LoginRequest) (*f2bapi.LoginResponse, error) {
	var resp f2bapi.LoginResponse
	if err := s.api.Post(ctx, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("auth: login response carried no token")
	}
	if err := s.store.Save(resp.Token, resp.User); err != nil {
		return nil, fmt.Errorf("auth: store session: %w", err)
	}
	return &resp, nil
}

// Logout asks the server to drop the token and then clears the local
// session whatever the server said.
func (s *Service) Logout(ctx context.Context) {
	defer s.store.Clear()
	if err := s.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
		s.logger.Warn().Err(err).Msg("server logout failed")
	}
}

func (s *Service) Profile(ctx context.Context) (*f2bapi.User, error) {
	var u f2bapi.User
	if err := s.api.Get(ctx, "/auth/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RefreshToken swaps the stored token for a fresh one. On any failure the
// session is cleared and false is returned. A refresh abandoned through ctx
// leaves the session alone.
func (s *Service) RefreshToken(ctx context.Context) bool {
	var resp struct {
		Token string `json:"token"`
	}
	err := s.api.Post(ctx, "/auth/refresh", nil, &resp)
	if err != nil && ctx.Err() != nil {
		s.logger.Debug().Err(err).Msg("token refresh abandoned")
		return false
	}
	if err == nil && resp.Token == "" {
		err = errors.New("empty token")
	}
	if err == nil {
		err = s.store.SaveToken(resp.Token)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("token refresh failed")
		s.store.Clear()
		return false
	}
	s.logger.Debug().Msg("token refreshed")
	return true
}

func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	return s.api.Post(ctx, "/auth/change-password", body, nil)
}

// Verify checks the stored token with the server.
func (s *Service) Verify(ctx context.Context) error {
	return s.api.Get(ctx, "/auth/verify", nil, nil)
}

// AutoRefresh keeps a stored token alive: a token that still verifies is
// left alone, one that does not is refreshed.
func (s *Service) AutoRefresh(ctx context.Context) bool {
	if s.store.Token() == "" {
		return false
	}
	if err := s.Verify(ctx); err == nil {
		return true
	}
	return s.RefreshToken(ctx)
}

func (s *Service) IsAuthenticated() bool { return s.store.Load() != nil }

func (s *Service) CurrentUser() *f2bapi.User {
	sess := s.store.Load()
	if sess == nil {
		return nil
	}
	u := sess.User
	return &u
}

func (s *Service) Token() string { return s.store.Token() }

// ClearSession drops the stored session without telling the server.
func (s *Service) ClearSession() { s.store.Clear() }
