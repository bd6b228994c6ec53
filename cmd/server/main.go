package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bookshare-dev/bookshare/internal/app"
	"github.com/bookshare-dev/bookshare/internal/config"
	"github.com/bookshare-dev/bookshare/internal/logger"
	"github.com/bookshare-dev/bookshare/internal/web"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	// Session store, pipeline and gate
	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize client")
	}
	defer a.Close()

	srv, err := web.New(cfg.Web, web.Deps{Auth: a.Auth, Books: a.API, Gate: a.Gate}, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web UI server")
	}

	log.Info().Str("version", version).Str("api", cfg.Server.BaseURL).Msg("Starting BookShare web UI...")

	// Serve until SIGINT/SIGTERM (this blocks)
	if err := srv.Run(context.Background(), func(url string) {
		log.Info().Str("url", url).Msg("Web UI ready")
	}); err != nil {
		log.Error().Err(err).Msg("Web UI stopped with error")
		a.Close()
		os.Exit(1)
	}
}
