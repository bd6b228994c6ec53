package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bookshare-dev/bookshare/internal/localstore"
)

// Store is the single source of truth for the current session.
// Reads and writes are safe for concurrent use; the durable mirror is written under the
// same lock so memory and storage never disagree mid-update.
type Store struct {
	mu      sync.RWMutex
	current Session
	storage localstore.Storage
	logger  zerolog.Logger
}

// NewStore creates an empty store mirrored to storage. Nothing is read from storage.
func NewStore(storage localstore.Storage, logger zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Open creates a store and rehydrates it from storage.
// A half-written session (token without identity or the reverse) is discarded.
func Open(storage localstore.Storage, logger zerolog.Logger) (*Store, error) {
	s := NewStore(storage, logger)

	token, err := readKey(storage, TokenKey)
	if err != nil {
		return nil, err
	}
	identity, err := readKey(storage, IdentityKey)
	if err != nil {
		return nil, err
	}

	if token == "" && identity == "" {
		return s, nil
	}

	sess, err := New(token, identity)
	if err != nil {
		s.logger.Warn().Bool("has_token", token != "").Bool("has_identity", identity != "").
			Msg("Discarding incomplete stored session")
		if err := s.removeDurable(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to remove incomplete stored session")
		}
		return s, nil
	}

	s.current = sess
	s.logger.Debug().Str("identity", sess.Identity()).Msg("Restored session")
	return s, nil
}

func readKey(storage localstore.Storage, key string) (string, error) {
	v, err := storage.Get(key)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read stored session: %w", err)
	}
	return v, nil
}

// Get returns the current session
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the current session. Setting an empty session clears it.
// The in-memory value is always updated; a durable write failure is returned.
func (s *Store) Set(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(sess)
}

// Clear removes the current session from memory and storage
func (s *Store) Clear() error {
	return s.Set(Empty())
}

// ClearIfToken clears the session only when it still carries token.
// It reports whether this call did the clearing, so concurrent callers holding the
// same stale token clear at most once and never wipe a newer session.
func (s *Store) ClearIfToken(token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.token != token {
		return false, nil
	}
	return true, s.setLocked(Empty())
}

func (s *Store) setLocked(sess Session) error {
	s.current = sess

	if !sess.Authenticated() {
		if err := s.removeDurable(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to clear stored session")
			return err
		}
		return nil
	}

	if err := s.storage.Set(TokenKey, sess.token); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store session token")
		return fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.storage.Set(IdentityKey, sess.identity); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store session identity")
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) removeDurable() error {
	errToken := s.storage.Remove(TokenKey)
	errIdentity := s.storage.Remove(IdentityKey)
	if err := errors.Join(errToken, errIdentity); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}
