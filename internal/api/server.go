// Package api is the JSON HTTP adapter over StashService.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"stash-go/internal/auth"
	"stash-go/internal/config"
	"stash-go/internal/stash"
)

// Service is the subset of StashService the HTTP adapter calls.
type Service interface {
	Register(username, password string) (*stash.User, error)
	Authenticate(username, password string) (*stash.User, error)
	LookupUser(userID int64) (*stash.User, error)
	CreateFolder(userID int64, name string) (*stash.Folder, error)
	DeleteFolder(userID int64, folderID int64) error
	UploadFile(userID int64, folder, filename string, r io.Reader, size int64) (*stash.File, error)
	DownloadFile(userID int64, fileID int64) (*stash.File, io.ReadCloser, error)
	DeleteFile(userID int64, fileID int64) error
	ListDashboard(userID int64, folder string) (*stash.Dashboard, error)
}

var _ Service = (*stash.StashService)(nil)

// Options configure a Server.
type Options struct {
	Server config.ServerConfig

	// MaxUploadSize bounds the request body of uploads. Zero means unlimited.
	MaxUploadSize int64

	Logger *slog.Logger

	// Registry receives the HTTP metrics. Nil creates a private registry.
	Registry *prometheus.Registry
}

// Server serves the JSON API.
type Server struct {
	service   Service
	tokens    *auth.TokenIssuer
	cfg       config.ServerConfig
	maxUpload int64
	logger    *slog.Logger
	limiter   *loginLimiter
	metrics   *httpMetrics
	engine    *gin.Engine
}

// NewServer builds the router and its middleware.
func NewServer(service Service, tokens *auth.TokenIssuer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		service:   service,
		tokens:    tokens,
		cfg:       opts.Server,
		maxUpload: opts.MaxUploadSize,
		logger:    logger,
		limiter:   newLoginLimiter(opts.Server.LoginRatePerMinute, opts.Server.LoginBurst),
		metrics:   newHTTPMetrics(registry),
	}
	s.engine = s.newRouter(registry)
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
