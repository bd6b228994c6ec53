package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/app"
	"github.com/bookshare-dev/bookshare/internal/cli/prompt"
	"github.com/bookshare-dev/bookshare/internal/config"
	"github.com/bookshare-dev/bookshare/internal/forms"
	"github.com/bookshare-dev/bookshare/internal/localstore"
	"github.com/bookshare-dev/bookshare/internal/session"
)

const nearbyDune = `{"books":[{"id":1,"title":"Dune","author":"Frank Herbert","description":"Spice","user":{"name":"Ann"},"distance_km":3.2}]}`

// mockAPI is a scriptable book-sharing API
type mockAPI struct {
	t *testing.T

	mu           sync.Mutex
	loginStatus  int
	nearbyStatus int
	nearbyBody   string
	shareStatus  int
	lastShare    api.ShareBookRequest
	lastRegister api.RegisterRequest

	nearbyCalls atomic.Int32
}

func (m *mockAPI) configure(fn func(m *mockAPI)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *mockAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r.URL.Path {
	case "/login":
		if m.loginStatus != 0 {
			w.WriteHeader(m.loginStatus)
			return
		}
		w.Write([]byte(`{"result":"tok123"}`))
	case "/register":
		if err := json.NewDecoder(r.Body).Decode(&m.lastRegister); err != nil {
			m.t.Errorf("failed to decode register request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	case "/books":
		if err := json.NewDecoder(r.Body).Decode(&m.lastShare); err != nil {
			m.t.Errorf("failed to decode share request: %v", err)
		}
		if m.shareStatus != 0 {
			w.WriteHeader(m.shareStatus)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case "/books/nearby":
		m.nearbyCalls.Add(1)
		if m.nearbyStatus != 0 {
			w.WriteHeader(m.nearbyStatus)
		}
		w.Write([]byte(m.nearbyBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	deps   *Deps
	store  *session.Store
	api    *mockAPI
	out    *bytes.Buffer
	prompt *prompt.Scripted
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("BOOKSHARE_EMAIL", "")
	t.Setenv("BOOKSHARE_PASSWORD", "")

	mock := &mockAPI{t: t, nearbyBody: nearbyDune}
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Server.BaseURL = srv.URL

	a, err := app.NewWithStorage(cfg, zerolog.Nop(), localstore.NewMemoryStorage(), nil)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	scripted := &prompt.Scripted{}

	return &testEnv{
		deps: &Deps{
			Config: cfg,
			Logger: zerolog.Nop(),
			Auth:   a.Auth,
			Books:  a.API,
			Gate:   a.Gate,
			Forms:  forms.NewValidator(),
			Prompt: scripted,
			Out:    out,
		},
		store:  a.Store,
		api:    mock,
		out:    out,
		prompt: scripted,
	}
}

func (e *testEnv) loginAs(t *testing.T, identity string) {
	t.Helper()
	sess, err := session.New("tok123", identity)
	require.NoError(t, err)
	require.NoError(t, e.store.Set(sess))
}

func (e *testEnv) run(ctx context.Context, args ...string) error {
	deps := func() (*Deps, error) { return e.deps, nil }

	root := &cobra.Command{Use: "bookshare", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(NewLoginCmd(deps))
	root.AddCommand(NewRegisterCmd(deps))
	root.AddCommand(NewLogoutCmd(deps))
	root.AddCommand(NewStatusCmd(deps))
	root.AddCommand(NewDashCmd(deps))
	root.AddCommand(NewBooksCmd(deps))
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func TestLogin(t *testing.T) {
	t.Run("user", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "login", "--email", "user@x.com", "--password", "secret1")
		require.NoError(t, err)

		assert.Contains(t, env.out.String(), "Login successful")
		assert.Contains(t, env.out.String(), "Home: /\n")
		assert.NotContains(t, env.out.String(), "Role: Admin")

		sess := env.store.Get()
		assert.Equal(t, "tok123", sess.Token())
		assert.Equal(t, "user@x.com", sess.Identity())
	})

	t.Run("admin", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "login", "--email", "admin@gmail.com", "--password", "secret1")
		require.NoError(t, err)
		assert.Contains(t, env.out.String(), "Role: Admin")
		assert.Contains(t, env.out.String(), "Home: /admin-dashboard")
	})

	t.Run("env vars", func(t *testing.T) {
		env := newTestEnv(t)
		t.Setenv("BOOKSHARE_EMAIL", "user@x.com")
		t.Setenv("BOOKSHARE_PASSWORD", "secret1")
		require.NoError(t, env.run(context.Background(), "login"))
		assert.True(t, env.store.Get().Authenticated())
	})

	t.Run("password prompt", func(t *testing.T) {
		env := newTestEnv(t)
		env.prompt.Answers = map[string]string{"Password": "secret1"}
		require.NoError(t, env.run(context.Background(), "login", "--email", "user@x.com"))
		assert.Equal(t, []string{"Password"}, env.prompt.Asked)
		assert.True(t, env.store.Get().Authenticated())
	})

	t.Run("non-interactive without password", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "login", "--email", "user@x.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-interactive")
	})

	t.Run("missing email", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "login", "--password", "secret1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email is required")
	})

	t.Run("short password", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "login", "--email", "user@x.com", "--password", "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Password must be at least 6 characters long")
	})

	t.Run("rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.api.configure(func(m *mockAPI) { m.loginStatus = http.StatusInternalServerError })
		err := env.run(context.Background(), "login", "--email", "user@x.com", "--password", "secret1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid email or password")
		assert.False(t, env.store.Get().Authenticated())
	})
}

func TestLogoutAndStatus(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run(context.Background(), "status"))
	assert.Contains(t, env.out.String(), "Not logged in.")

	env.loginAs(t, "admin@gmail.com")
	env.out.Reset()
	require.NoError(t, env.run(context.Background(), "status"))
	assert.Contains(t, env.out.String(), "Logged in as admin@gmail.com")
	assert.Contains(t, env.out.String(), "Role:   admin")
	assert.Contains(t, env.out.String(), "authenticated-admin")

	env.out.Reset()
	require.NoError(t, env.run(context.Background(), "logout"))
	assert.Contains(t, env.out.String(), "Logged out")
	assert.False(t, env.store.Get().Authenticated())
}

func TestRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "register",
			"--name", "Jane", "--email", "jane@x.com", "--password", "secret1",
			"--latitude", "23.8103", "--longitude", "90.4125")
		require.NoError(t, err)
		assert.Contains(t, env.out.String(), "Account created for jane@x.com")

		env.api.configure(func(m *mockAPI) {
			assert.Equal(t, "secret1", m.lastRegister.PasswordConfirmation)
			assert.InDelta(t, 23.8103, m.lastRegister.Latitude, 1e-9)
			assert.InDelta(t, 90.4125, m.lastRegister.Longitude, 1e-9)
		})
		assert.False(t, env.store.Get().Authenticated())
	})

	t.Run("mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "register",
			"--name", "Jane", "--email", "jane@x.com", "--password", "secret1",
			"--password-confirmation", "secret2", "--latitude", "1", "--longitude", "2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Passwords do not match")
	})
}

func TestDash(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		args     []string
		want     []string
	}{
		{"anonymous", "", nil, []string{"redirected to /login"}},
		{"user dashboard", "user@x.com", nil, []string{"Book Sharing Dashboard", "Dune", "Frank Herbert", "Ann", "3.2 km", "1 book nearby"}},
		{"user admin route", "user@x.com", []string{"/admin-dashboard"}, []string{"404 Page not found: /admin-dashboard"}},
		{"admin", "admin@gmail.com", nil, []string{"Admin Dashboard", "admin@gmail.com"}},
		{"login page", "", []string{"/login"}, []string{"bookshare login"}},
		{"unknown", "user@x.com", []string{"/books/1"}, []string{"404 Page not found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.identity != "" {
				env.loginAs(t, tt.identity)
			}

			require.NoError(t, env.run(context.Background(), append([]string{"dash"}, tt.args...)...))
			for _, want := range tt.want {
				assert.Contains(t, env.out.String(), want)
			}
		})
	}
}

func TestBooksNearby(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run(context.Background(), "books", "nearby")
		assert.ErrorIs(t, err, errNotLoggedIn)
		assert.Zero(t, env.api.nearbyCalls.Load())
	})

	t.Run("empty", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")
		env.api.configure(func(m *mockAPI) { m.nearbyBody = `{"books":[]}` })

		require.NoError(t, env.run(context.Background(), "books", "nearby"))
		assert.Contains(t, env.out.String(), "No books found nearby")
	})

	t.Run("server message", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")
		env.api.configure(func(m *mockAPI) {
			m.nearbyStatus = http.StatusBadRequest
			m.nearbyBody = `{"message":"Location not set"}`
		})

		err := env.run(context.Background(), "books", "nearby")
		require.Error(t, err)
		assert.Equal(t, "Location not set", err.Error())
	})

	t.Run("rejected token clears session", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")
		env.api.configure(func(m *mockAPI) { m.nearbyStatus = http.StatusUnauthorized })

		err := env.run(context.Background(), "books", "nearby")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "login")
		assert.False(t, env.store.Get().Authenticated())
	})

	t.Run("invalid watch schedule", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")

		err := env.run(context.Background(), "books", "nearby", "--watch", "every now and then")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --watch schedule")
	})

	t.Run("watch", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")

		ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
		defer cancel()

		require.NoError(t, env.run(ctx, "books", "nearby", "--watch", "@every 1s"))
		assert.GreaterOrEqual(t, env.api.nearbyCalls.Load(), int32(2))
		assert.GreaterOrEqual(t, strings.Count(env.out.String(), "Dune"), 2)
	})

	t.Run("watch stops when session is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")
		env.api.configure(func(m *mockAPI) { m.nearbyStatus = http.StatusUnauthorized })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := env.run(ctx, "books", "nearby", "--watch", "@every 1h")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "login")
		assert.NoError(t, ctx.Err(), "watch should end before the deadline")
	})
}

func TestBooksShare(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")

		err := env.run(context.Background(), "books", "share", "--title", "Dune", "--author", "Frank Herbert", "--description", "Spice")
		require.NoError(t, err)
		assert.Contains(t, env.out.String(), "Book shared successfully!")
		env.api.configure(func(m *mockAPI) {
			assert.Equal(t, api.ShareBookRequest{Title: "Dune", Author: "Frank Herbert", Description: "Spice"}, m.lastShare)
		})
	})

	t.Run("prompts for missing fields", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")
		env.prompt.Answers = map[string]string{"Author": "Frank Herbert", "Description": "Spice"}

		require.NoError(t, env.run(context.Background(), "books", "share", "--title", "Dune"))
		assert.Equal(t, []string{"Author", "Description"}, env.prompt.Asked)
	})

	t.Run("missing fields non-interactive", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")

		err := env.run(context.Background(), "books", "share", "--title", "Dune")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Author is required")
		assert.Contains(t, err.Error(), "Description is required")
	})

	t.Run("duplicate title", func(t *testing.T) {
		env := newTestEnv(t)
		env.loginAs(t, "user@x.com")
		env.api.configure(func(m *mockAPI) { m.shareStatus = http.StatusInternalServerError })

		err := env.run(context.Background(), "books", "share", "--title", "Dune", "--author", "Frank Herbert", "--description", "Spice")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Book already exists")
	})
}

func TestNearbyOptionalBookFields(t *testing.T) {
	distanceOnly := `{"books":[{"id":1,"title":"Dune","author":"Herbert","description":"...","distance_km":3.2}]}`
	ownerOnly := `{"books":[{"id":1,"title":"Dune","author":"Herbert","description":"...","user":{"name":"Ann"}}]}`

	tests := []struct {
		name    string
		args    []string
		body    string
		want    []string
		notWant string
	}{
		{"table distance without owner", []string{"books", "nearby"}, distanceOnly, []string{"Herbert", "3.2 km", "1 book nearby"}, ""},
		{"table owner without distance", []string{"books", "nearby"}, ownerOnly, []string{"Herbert", "Ann", "1 book nearby"}, " km"},
		{"cards distance without owner", []string{"dash"}, distanceOnly, []string{"by Herbert", "   ...", "   3.2 km", "1 book nearby"}, ""},
		{"cards owner without distance", []string{"dash"}, ownerOnly, []string{"by Herbert", "   Ann\n", "1 book nearby"}, " km"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.loginAs(t, "user@x.com")
			env.api.configure(func(m *mockAPI) { m.nearbyBody = tt.body })

			require.NoError(t, env.run(context.Background(), tt.args...))

			out := env.out.String()
			assert.Equal(t, 1, strings.Count(out, "Dune"))
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
			if tt.notWant != "" {
				assert.NotContains(t, out, tt.notWant)
			}
		})
	}
}

func TestPrintBooksDistanceColumn(t *testing.T) {
	km := 3.2
	var out bytes.Buffer
	printBooks(&out, []api.Book{{ID: 1, Title: "Dune", Author: "Herbert", Description: "...", DistanceKM: &km}})

	lines := strings.Split(out.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[2], "Dune"))
	assert.True(t, strings.HasSuffix(strings.TrimRight(lines[2], " "), "3.2 km"))
}
