package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mportillo/dealerd/internal/config"
	"github.com/mportillo/dealerd/internal/logging"
	"github.com/mportillo/dealerd/pkg/repositories/ledger"
	"github.com/mportillo/dealerd/pkg/services/registry"
)

// Server is the HTTP surface over the session registry and ledger
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	repo     ledger.Repository
	logger   *logging.Logger
	engine   *gin.Engine
	httpSrv  *http.Server
}

// New creates the HTTP server and registers all routes
func New(cfg *config.Config, reg *registry.Registry, repo ledger.Repository, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		registry: reg,
		repo:     repo,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:playerId", s.getSession)
		api.POST("/sessions/:playerId/actions", s.playAction)
		api.POST("/sessions/:playerId/reset", s.resetSession)
	}

	// Development-only surface. Hard-fails closed outside development
	// mode: the group exists but every request is rejected before any
	// handler runs.
	dev := s.engine.Group("/dev", s.requireDevelopment())
	{
		dev.POST("/sessions/:playerId/outcome", s.forceOutcome)
		dev.GET("/introspect", s.introspect)
	}
}

// requireDevelopment rejects dev-only routes outside development mode
func (s *Server) requireDevelopment() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.IsDevelopment() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Next()
	}
}

// Handler exposes the routing engine, for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
