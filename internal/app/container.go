package app

import (
	"context"
	"fmt"

	"github.com/kapu/gamepulse-dashboard/internal/config"
	"github.com/kapu/gamepulse-dashboard/internal/constants"
	"github.com/kapu/gamepulse-dashboard/internal/server"
	"github.com/kapu/gamepulse-dashboard/internal/service/aggregation"
	"github.com/kapu/gamepulse-dashboard/internal/service/cache"
	"github.com/kapu/gamepulse-dashboard/internal/service/rawg"
	"github.com/kapu/gamepulse-dashboard/internal/service/twitch"
	"go.uber.org/zap"
)

// Container bundles the assembled services behind the HTTP server.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Cache       *cache.CacheService
	Catalog     *rawg.Client
	Helix       *twitch.Client
	Tokens      *twitch.TokenCache
	Aggregation *aggregation.Service
	Server      *server.Server

	closers []func()
}

// Build assembles config -> cache -> upstream clients -> resolver ->
// aggregation -> server. Resources opened before a failure are released.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Enabled:  cfg.Redis.Enabled,
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}
	closers = append(closers, func() {
		_ = cacheSvc.Close()
	})

	catalog, err := rawg.NewClient(rawg.Options{
		BaseURL: cfg.RAWG.BaseURL,
		APIKeys: cfg.RAWG.APIKeys,
		Cache:   cacheSvc,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	tokens := twitch.NewTokenCache(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, cfg.Twitch.TokenURL, nil, logger)
	helix := twitch.NewClient(twitch.ClientOptions{
		BaseURL:           cfg.Twitch.HelixBaseURL,
		ClientID:          cfg.Twitch.ClientID,
		RequestsPerSecond: cfg.Twitch.RequestsPerSecond,
		Burst:             cfg.Twitch.Burst,
	}, logger)

	// Warm the token so bad credentials show up in startup logs. Failure is
	// not fatal; live counts just report 0 until the exchange succeeds.
	if _, tokenErr := tokens.Token(ctx); tokenErr != nil {
		logger.Warn("Initial Twitch token exchange failed", zap.Error(tokenErr))
	}

	resolver := twitch.NewResolver(tokens, helix, cacheSvc, cfg.Aggregation.ResolveTimeout, logger)
	aggregationSvc := aggregation.NewService(catalog, resolver, cfg.Aggregation.MaxConcurrency, logger)

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Dashboard:      aggregationSvc,
		Breakers:       []server.BreakerReporter{catalog, helix},
		Cache:          cacheSvc,
	}, logger)

	logger.Info("Application services assembled",
		zap.String("cache_tier", cacheSvc.Tier()),
		zap.Int("rawg_keys", len(cfg.RAWG.APIKeys)),
		zap.Int("max_concurrency", cfg.Aggregation.MaxConcurrency),
		zap.Duration("resolve_timeout", cfg.Aggregation.ResolveTimeout),
		zap.Duration("games_ttl", constants.CacheTTL.CatalogGames),
	)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Cache:       cacheSvc,
		Catalog:     catalog,
		Helix:       helix,
		Tokens:      tokens,
		Aggregation: aggregationSvc,
		Server:      srv,
		closers:     closers,
	}, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
