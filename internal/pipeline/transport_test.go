package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshare-dev/bookshare/internal/localstore"
	"github.com/bookshare-dev/bookshare/internal/session"
)

func newStore(t *testing.T, token, identity string) *session.Store {
	t.Helper()
	store := session.NewStore(localstore.NewMemoryStorage(), zerolog.Nop())
	if token != "" {
		sess, err := session.New(token, identity)
		require.NoError(t, err)
		require.NoError(t, store.Set(sess))
	}
	return store
}

// countingStore records how often the pipeline actually cleared the session
type countingStore struct {
	*session.Store
	clears atomic.Int32
}

func (c *countingStore) ClearIfToken(token string) (bool, error) {
	ok, err := c.Store.ClearIfToken(token)
	if ok {
		c.clears.Add(1)
	}
	return ok, err
}

func TestTransport_BearerHeader(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantHeader string
	}{
		{"authenticated session", "tok123", "Bearer tok123"},
		{"anonymous session", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var present bool
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				_, present = r.Header["Authorization"]
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			client := NewClient(nil, newStore(t, tt.token, "user@x.com"), zerolog.Nop(), 5*time.Second)
			resp, err := client.Get(srv.URL + "/books/nearby")
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantHeader, got)
			assert.Equal(t, tt.token != "", present)
		})
	}
}

func TestTransport_ReadsTokenAtCallTime(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	store := newStore(t, "", "")
	client := NewClient(nil, store, zerolog.Nop(), 5*time.Second)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	sess, _ := session.New("fresh", "user@x.com")
	require.NoError(t, store.Set(sess))

	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"", "Bearer fresh"}, got)
}

func TestTransport_DoesNotMutateCallerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := NewClient(nil, newStore(t, "tok", "user@x.com"), zerolog.Nop(), 5*time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get(RequestIDHeader))
}

func TestTransport_UnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer srv.Close()

	store := &countingStore{Store: newStore(t, "expired", "user@x.com")}
	client := NewClient(nil, store, zerolog.Nop(), 5*time.Second)

	resp, err := client.Get(srv.URL + "/books/nearby")
	require.NoError(t, err)
	defer resp.Body.Close()

	// The rejection still reaches the caller
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, store.Get().Authenticated())
	assert.Equal(t, int32(1), store.clears.Load())
}

func TestTransport_OtherFailuresLeaveSession(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		store := newStore(t, "tok", "user@x.com")
		client := NewClient(nil, store, zerolog.Nop(), 5*time.Second)

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		srv.Close()

		assert.True(t, store.Get().Authenticated(), "status %d should not clear the session", status)
	}
}

func TestTransport_ConcurrentUnauthorizedClearsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := &countingStore{Store: newStore(t, "expired", "user@x.com")}
	client := NewClient(nil, store, zerolog.Nop(), 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/books/nearby")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), store.clears.Load())
	assert.False(t, store.Get().Authenticated())
}

func TestTransport_StaleUnauthorizedKeepsNewSession(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := newStore(t, "old", "user@x.com")
	client := NewClient(nil, store, zerolog.Nop(), 5*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := client.Get(srv.URL)
		if err == nil {
			resp.Body.Close()
		}
	}()

	// Wait for the request to be in flight, then log in again
	time.Sleep(50 * time.Millisecond)
	newer, _ := session.New("new", "user@x.com")
	require.NoError(t, store.Set(newer))
	close(release)
	<-done

	assert.Equal(t, "new", store.Get().Token())
}

func TestTransport_FlagsRequestOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := &countingStore{Store: newStore(t, "tok", "user@x.com")}
	client := NewClient(nil, store, zerolog.Nop(), 5*time.Second)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "retry-me")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), store.clears.Load())

	// Log in again and retry the same logical request: it was already flagged
	sess, _ := session.New("tok2", "user@x.com")
	require.NoError(t, store.Set(sess))

	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), store.clears.Load())
	assert.True(t, store.Get().Authenticated())
}

type failingTransport struct{ err error }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, f.err
}

func TestTransport_PropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")
	store := newStore(t, "tok", "user@x.com")
	client := NewClient(failingTransport{err: boom}, store, zerolog.Nop(), 5*time.Second)

	_, err := client.Get("http://books.invalid/books/nearby")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, store.Get().Authenticated())
}

func TestTransport_FlaggedIsBounded(t *testing.T) {
	tr := NewTransport(nil, newStore(t, "", ""), zerolog.Nop())
	for i := 0; i < flaggedCapacity+10; i++ {
		tr.flag(fmt.Sprintf("req-%d", i))
	}
	assert.Len(t, tr.flagged, flaggedCapacity)
	assert.Len(t, tr.order, flaggedCapacity)
}

func TestScope_DropsResultsAfterClose(t *testing.T) {
	scope := NewScope(context.Background())

	delivered := Run(scope, func(ctx context.Context) (int, error) {
		return 1, nil
	}, func(v int, err error) {})
	assert.True(t, delivered)

	var got int
	delivered = Run(scope, func(ctx context.Context) (int, error) {
		scope.Close()
		return 2, ctx.Err()
	}, func(v int, err error) { got = v })
	assert.False(t, delivered)
	assert.Zero(t, got)

	// Closing twice is harmless
	scope.Close()
	assert.True(t, scope.Closed())
}

func TestScope_CancelsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(nil, newStore(t, "tok", "user@x.com"), zerolog.Nop(), 5*time.Second)
	scope := NewScope(context.Background())

	errCh := make(chan error, 1)
	go func() {
		req, _ := http.NewRequestWithContext(scope.Context(), http.MethodGet, srv.URL, nil)
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		errCh <- err
	}()

	<-started
	scope.Close()

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
