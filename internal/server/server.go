package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kapu/gamepulse-dashboard/internal/domain"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"go.uber.org/zap"
)

// Dashboard produces the views served under /api.
type Dashboard interface {
	FetchTrendingGames(ctx context.Context) ([]domain.TrendingGame, error)
	FetchGenreTrends(ctx context.Context) ([]domain.GenreCount, error)
	FetchPlatformPerformance(ctx context.Context) ([]domain.PlatformStat, error)
	FetchOverview(ctx context.Context) (*domain.Overview, error)
}

// BreakerReporter exposes an upstream circuit breaker for /health.
type BreakerReporter interface {
	Status() util.CircuitBreakerStatus
}

type CacheHealth interface {
	Tier() string
	IsConnected(ctx context.Context) bool
}

type Options struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Dashboard      Dashboard
	Breakers       []BreakerReporter
	Cache          CacheHealth
}

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	dashboard  Dashboard
	breakers   []BreakerReporter
	cache      CacheHealth
	logger     *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(recovery(logger), requestLogger(logger))
	engine.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	s := &Server{
		engine:    engine,
		dashboard: opts.Dashboard,
		breakers:  opts.Breakers,
		cache:     opts.Cache,
		logger:    logger,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort("", opts.Port),
		Handler:      engine,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Cache-Control"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	// cors.New panics on an empty origin list.
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/games/trending", s.handleTrending)
	api.GET("/games/genres", s.handleGenres)
	api.GET("/platforms/top", s.handlePlatforms)
	api.GET("/overview", s.handleOverview)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed after
// Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
