// Package http exposes the engine over REST: predict endpoints, health,
// and Prometheus metrics.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"reagent/internal/config"
	"reagent/internal/logging"
	"reagent/internal/metrics"
	"reagent/internal/orchestrator"
)

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	orch      *orchestrator.Orchestrator
	collector *metrics.Collector
	cfg       *config.Config
	logger    logging.Logger

	engine     *gin.Engine
	httpServer *http.Server
}

// New assembles the HTTP surface around an orchestrator.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, collector *metrics.Collector, logger logging.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		orch:      orch,
		collector: collector,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
		engine:    engine,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Task.Timeout + 10*time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api/v1")
	{
		api.POST("/predict", s.handlePredict)
		api.POST("/predict/detailed", s.handlePredictDetailed)
	}
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.collector.Handler()))
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
