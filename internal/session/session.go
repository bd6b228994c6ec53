// Package session holds the client's authentication state: a bearer token and the
// identity it was issued for, kept in memory and mirrored to durable local storage.
package session

import (
	"errors"
	"strings"
)

// Durable storage keys, shared with earlier clients of the same service
const (
	TokenKey    = "authToken"
	IdentityKey = "user"
)

// ErrIncompleteSession is returned when a session would carry a token without an identity or the reverse
var ErrIncompleteSession = errors.New("session requires both token and identity")

// Session is the client-held proof of authentication plus the identity it was issued for.
// The zero value is the unauthenticated session. A Session is either fully populated or
// fully empty; New is the only way to build a populated one.
type Session struct {
	token    string
	identity string
}

// New builds an authenticated session
func New(token, identity string) (Session, error) {
	token = strings.TrimSpace(token)
	identity = strings.TrimSpace(identity)
	if token == "" || identity == "" {
		return Session{}, ErrIncompleteSession
	}
	return Session{token: token, identity: identity}, nil
}

// Empty returns the unauthenticated session
func Empty() Session {
	return Session{}
}

// Token returns the bearer token, or "" when unauthenticated
func (s Session) Token() string {
	return s.token
}

// Identity returns the identity the session was issued for, or "" when unauthenticated
func (s Session) Identity() string {
	return s.identity
}

// Authenticated reports whether the session carries a token
func (s Session) Authenticated() bool {
	return s.token != ""
}

// String never includes the token
func (s Session) String() string {
	if !s.Authenticated() {
		return "session(anonymous)"
	}
	return "session(" + s.identity + ")"
}
