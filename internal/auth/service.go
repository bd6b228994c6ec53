package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/session"
)

// API is the part of the book-sharing API the auth flows call
type API interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, req api.RegisterRequest) error
}

// Service runs login, registration and logout against the session store
type Service struct {
	api    API
	store  *session.Store
	roles  RoleResolver
	logger zerolog.Logger
}

// NewService creates a new auth service
func NewService(client API, store *session.Store, roles RoleResolver, logger zerolog.Logger) *Service {
	return &Service{
		api:    client,
		store:  store,
		roles:  roles,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Login authenticates and stores the session. The identity is the submitted email.
// When the session cannot be persisted the login still holds for this process and the
// returned error says so.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Info().Err(err).Str("email", email).Msg("Login failed")
		return session.Empty(), err
	}

	sess, err := session.New(token, email)
	if err != nil {
		return session.Empty(), fmt.Errorf("login failed: %w", err)
	}

	if err := s.store.Set(sess); err != nil {
		return sess, fmt.Errorf("logged in but failed to persist session: %w", err)
	}

	s.logger.Info().Str("email", email).Stringer("role", s.roles.Resolve(sess)).Msg("Logged in")
	return sess, nil
}

// Register creates an account. It does not log in.
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) error {
	if err := s.api.Register(ctx, req); err != nil {
		if !errors.Is(err, api.ErrEmailExists) {
			s.logger.Error().Err(err).Str("email", req.Email).Msg("Registration failed")
		}
		return err
	}
	s.logger.Info().Str("email", req.Email).Msg("Registered")
	return nil
}

// Logout clears the session
func (s *Service) Logout() error {
	identity := s.store.Get().Identity()
	if err := s.store.Clear(); err != nil {
		return err
	}
	if identity != "" {
		s.logger.Info().Str("email", identity).Msg("Logged out")
	}
	return nil
}

// Role resolves the role of the current session
func (s *Service) Role() Role {
	return s.roles.Resolve(s.store.Get())
}

// Session returns the current session
func (s *Service) Session() session.Session {
	return s.store.Get()
}
