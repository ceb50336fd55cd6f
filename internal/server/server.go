// Package server exposes the query service over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vvka-141/sqlexplorer/internal/config"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     config.ServerConfig
	svc     Querier
	auth    *Authenticator
	limiter *RateLimiter
	metrics http.Handler
	log     *slog.Logger
	router  *gin.Engine
	http    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New wires routes and middleware. It fails when no JWT secret is configured.
func New(cfg config.ServerConfig, svc Querier, log *slog.Logger, opts ...Option) (*Server, error) {
	auth, err := NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL, cfg.Users)
	if err != nil {
		return nil, err
	}
	if len(cfg.Users) == 0 {
		log.Warn("no API users configured; /token will reject every login")
	}

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		log:     log,
		router:  gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(Recovery(s.log))
	s.router.Use(RequestID())
	s.router.Use(Logging(s.log))
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.health)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	s.router.POST("/token", s.limiter.Middleware(), s.token)

	api := s.router.Group("/api", s.limiter.Middleware(), s.auth.RequireAuth())
	{
		api.POST("/query", s.query)
		api.POST("/query/csv", s.queryCSV)
		api.POST("/query/xlsx", s.queryXLSX)
		api.GET("/tables", s.tables)
		api.GET("/database-info", s.databaseInfo)
		api.DELETE("/cache", s.clearCache)
	}

	s.router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NotFound", "The requested resource was not found")
	})
}

// Router returns the gin engine, for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves on the configured address until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. On return the query service is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			_ = s.closeService()
			return err
		}
	}
	return s.Shutdown()
}

// Shutdown stops accepting requests, waits for in-flight ones, then drains the pool.
func (s *Server) Shutdown() error {
	s.log.Info("shutting down server", "timeout", s.cfg.ShutdownTimeout)
	ctx, cancel := s.shutdownContext()
	defer cancel()

	httpErr := s.http.Shutdown(ctx)
	if httpErr != nil {
		httpErr = fmt.Errorf("server shutdown error: %w", httpErr)
	}
	svcErr := s.closeService()
	if err := errors.Join(httpErr, svcErr); err != nil {
		return err
	}
	s.log.Info("server stopped gracefully")
	return nil
}

func (s *Server) closeService() error {
	ctx, cancel := s.shutdownContext()
	defer cancel()
	if err := s.svc.Close(ctx); err != nil {
		return fmt.Errorf("closing query service: %w", err)
	}
	return nil
}

func (s *Server) shutdownContext() (context.Context, context.CancelFunc) {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
