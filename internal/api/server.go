// Package api exposes the analysis engine over a thin HTTP surface. The
// handlers never compute anything themselves; they translate between HTTP
// and the engine facade.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/cache"
	"trading-signal-engine/internal/engine"
	"trading-signal-engine/internal/scanner"
)

// Server is the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	store      *cache.RegimeStore // nil when redis is disabled
	scanner    *scanner.Scanner   // nil when the watchlist scanner is off
	cfg        config.ServerConfig
	logger     zerolog.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(cfg config.ServerConfig, eng *engine.Engine, store *cache.RegimeStore, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router: router,
		engine: eng,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "APIServer").Logger(),
	}
	s.registerRoutes()
	return s
}

// AttachScanner wires the background scanner's results into the API.
// Must be called before Start.
func (s *Server) AttachScanner(sc *scanner.Scanner) {
	s.scanner = sc
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/analyze/:symbol", s.handleAnalyze)
		v1.GET("/regime/:symbol", s.handleRegime)
		v1.GET("/patterns/:symbol", s.handlePatterns)
		v1.GET("/indicators/:symbol", s.handleIndicators)
		v1.GET("/scan/latest", s.handleLatestScan)
	}
}

// Start runs the HTTP server until it is shut down
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("address", addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the handler tree for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	redisStatus := "disabled"
	if s.store != nil {
		redisStatus = "degraded"
		if s.store.IsHealthy() {
			redisStatus = "healthy"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"redis":  redisStatus,
	})
}
