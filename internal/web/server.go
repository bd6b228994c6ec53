// Package web serves the local browser UI: login, registration, the nearby-books
// dashboard and the admin view. Every page asks the gate what to show.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/auth"
	"github.com/bookshare-dev/bookshare/internal/config"
	"github.com/bookshare-dev/bookshare/internal/forms"
	"github.com/bookshare-dev/bookshare/internal/gate"
)

// Books is the part of the API the dashboard calls
type Books interface {
	ShareBook(ctx context.Context, req api.ShareBookRequest) error
	NearbyBooks(ctx context.Context) ([]api.Book, error)
}

// Deps are the collaborators the web UI is built on
type Deps struct {
	Auth  *auth.Service
	Books Books
	Gate  *gate.Gate
}

// Server represents the local web UI server
type Server struct {
	router  *gin.Engine
	config  config.WebConfig
	logger  zerolog.Logger
	auth    *auth.Service
	books   Books
	gate    *gate.Gate
	forms   *forms.Validator
	version string
}

// New creates a new web UI server
func New(cfg config.WebConfig, deps Deps, zlog zerolog.Logger, version string) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	s := &Server{
		config:  cfg,
		logger:  zlog.With().Str("component", "web").Logger(),
		auth:    deps.Auth,
		books:   deps.Books,
		gate:    deps.Gate,
		forms:   forms.NewValidator(),
		version: version,
	}

	s.setupRouter()
	s.router.SetHTMLTemplate(tmpl)

	return s, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if len(s.config.AllowOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	s.router.Use(s.sameOriginMiddleware())

	s.router.GET("/health", s.healthCheck)

	// Pages. The gate decides what each path shows.
	s.router.GET(gate.PathRoot, s.page)
	s.router.GET(gate.PathAdmin, s.page)
	s.router.GET(gate.PathLogin, s.page)
	s.router.GET(gate.PathRegister, s.page)
	s.router.NoRoute(s.page)

	// Form submissions
	s.router.POST(gate.PathLogin, s.login)
	s.router.POST(gate.PathRegister, s.register)
	s.router.POST("/books", s.shareBook)
	s.router.POST("/logout", s.logout)
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// sameOriginMiddleware rejects form posts sent from other sites. The UI acts with
// the local session, so a POST must come from the UI itself or a configured origin.
func (s *Server) sameOriginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			if c.GetHeader("Sec-Fetch-Site") == "cross-site" {
				s.rejectOrigin(c, "cross-site")
				return
			}
			c.Next()
			return
		}

		if !s.trustedOrigin(origin, c.Request.Host) {
			s.rejectOrigin(c, origin)
			return
		}

		c.Next()
	}
}

func (s *Server) trustedOrigin(origin, host string) bool {
	if slices.Contains(s.config.AllowOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

func (s *Server) rejectOrigin(c *gin.Context, origin string) {
	s.logger.Warn().
		Str("origin", origin).
		Str("path", c.Request.URL.Path).
		Msg("Rejected cross-origin form submission")
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cross-origin form submission rejected"})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "bookshare-web",
		"version":   s.version,
	})
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// URL is the address a browser should open
func (s *Server) URL() string {
	host, port, err := net.SplitHostPort(s.config.Address)
	if err != nil {
		return "http://" + s.config.Address
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Run serves until ctx ends or SIGINT/SIGTERM arrives, then shuts down gracefully.
// ready, when set, is called once the listener is bound.
func (s *Server) Run(ctx context.Context, ready func(url string)) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("Starting web UI")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if ready != nil {
		ready(s.URL())
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("web UI server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down web UI")
		return err
	}

	s.logger.Info().Msg("Web UI shutdown complete")
	return nil
}
