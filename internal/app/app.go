// Package app wires the session store, request pipeline, API client, role resolver and
// gate into one object shared by the CLI and the web UI.
package app

import (
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/auth"
	"github.com/bookshare-dev/bookshare/internal/config"
	"github.com/bookshare-dev/bookshare/internal/gate"
	"github.com/bookshare-dev/bookshare/internal/localstore"
	"github.com/bookshare-dev/bookshare/internal/pipeline"
	"github.com/bookshare-dev/bookshare/internal/session"
)

// App is one process's client stack. There is exactly one session store per App.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Store *session.Store
	API   *api.Client
	Roles auth.RoleResolver
	Auth  *auth.Service
	Gate  *gate.Gate

	storage localstore.Storage
}

// New opens durable storage, rehydrates the session and builds the stack on top of it
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	storage, err := localstore.Open(cfg.Session.Backend, cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	a, err := NewWithStorage(cfg, logger, storage, nil)
	if err != nil {
		closeStorage(storage)
		return nil, err
	}
	return a, nil
}

// NewWithStorage builds the stack over the given storage. A nil transport uses
// http.DefaultTransport.
func NewWithStorage(cfg *config.Config, logger zerolog.Logger, storage localstore.Storage, transport http.RoundTripper) (*App, error) {
	store, err := session.Open(storage, logger)
	if err != nil {
		return nil, err
	}

	roles, err := auth.NewResolver(cfg.Auth.RoleSource, cfg.Auth.AdminIdentities)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.Server.BaseURL, pipeline.NewClient(transport, store, logger, cfg.Server.Timeout))

	logger.Debug().
		Str("backend", cfg.Session.Backend).
		Str("base_url", cfg.Server.BaseURL).
		Bool("authenticated", store.Get().Authenticated()).
		Msg("Client initialized")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		API:     client,
		Roles:   roles,
		Auth:    auth.NewService(client, store, roles, logger),
		Gate:    gate.New(store, roles),
		storage: storage,
	}, nil
}

// Close releases durable storage
func (a *App) Close() error {
	if c, ok := a.storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func closeStorage(storage localstore.Storage) {
	if c, ok := storage.(io.Closer); ok {
		_ = c.Close()
	}
}
