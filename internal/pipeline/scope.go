package pipeline

import (
	"context"
	"sync"
)

// Scope ties in-flight requests to the lifetime of the view that issued them.
// Closing the scope cancels its context; results that complete after Close are dropped.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewScope creates a scope whose context is derived from parent
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context returns the context requests in this scope should use
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Close cancels in-flight requests. Safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether the scope was closed or its parent context ended
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.ctx.Err() != nil
}

// Run calls fn with the scope's context and passes the result to deliver, unless the
// scope was closed before fn returned. It reports whether deliver was called.
func Run[T any](s *Scope, fn func(ctx context.Context) (T, error), deliver func(T, error)) bool {
	v, err := fn(s.ctx)
	if s.Closed() {
		return false
	}
	deliver(v, err)
	return true
}
