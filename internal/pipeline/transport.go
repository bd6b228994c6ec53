// Package pipeline augments outbound API requests with the current bearer token and
// reacts to credential rejection by clearing the session. It never navigates; the gate
// notices the cleared session on the next render.
package pipeline

import (
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/bookshare-dev/bookshare/internal/assert"
	"github.com/bookshare-dev/bookshare/internal/session"
)

const (
	bearerPrefix = "Bearer "

	// RequestIDHeader carries the per-request identifier used for logging and the one-shot 401 flag
	RequestIDHeader = "X-Request-ID"

	// flaggedCapacity bounds how many handled request IDs are remembered
	flaggedCapacity = 256
)

// SessionSource is the part of the session store the pipeline needs
type SessionSource interface {
	Get() session.Session
	ClearIfToken(token string) (bool, error)
}

// Transport is an http.RoundTripper that reads the session at call time, so a single
// instance serves the whole process across logins and logouts.
type Transport struct {
	base   http.RoundTripper
	store  SessionSource
	logger zerolog.Logger

	mu      sync.Mutex
	flagged map[string]struct{}
	order   []string
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, store SessionSource, logger zerolog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		store:   store,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		flagged: make(map[string]struct{}),
	}
}

// NewClient returns an http.Client whose requests flow through the pipeline
func NewClient(base http.RoundTripper, store SessionSource, logger zerolog.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(base, store, logger),
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sess := t.store.Get()

	// RoundTrippers must not modify the caller's request
	out := req.Clone(req.Context())

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = ulid.Make().String()
		assert.ULID(requestID)
	}
	out.Header.Set(RequestIDHeader, requestID)

	token := sess.Token()
	if token != "" {
		out.Header.Set("Authorization", bearerPrefix+token)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.handleUnauthorized(out, requestID, token)
	}

	return resp, nil
}

// handleUnauthorized clears the session the first time a given request is rejected.
// Only the session the request was sent with is cleared.
func (t *Transport) handleUnauthorized(req *http.Request, requestID, token string) {
	if !t.flag(requestID) {
		return
	}

	log := t.logger.With().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Logger()

	if token == "" {
		log.Debug().Msg("Unauthorized response for anonymous request")
		return
	}

	cleared, err := t.store.ClearIfToken(token)
	if err != nil {
		log.Error().Err(err).Msg("Failed to clear session after unauthorized response")
		return
	}
	if cleared {
		log.Warn().Msg("Session rejected by server, logged out")
	}
}

// flag marks requestID as handled and reports whether it was new
func (t *Transport) flag(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.flagged[requestID]; seen {
		return false
	}

	if len(t.order) >= flaggedCapacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.flagged, oldest)
	}
	t.flagged[requestID] = struct{}{}
	t.order = append(t.order, requestID)
	return true
}
