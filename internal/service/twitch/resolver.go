package twitch

import (
	"context"
	"time"

	"github.com/kapu/gamepulse-dashboard/internal/constants"
	"github.com/kapu/gamepulse-dashboard/internal/service/cache"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"go.uber.org/zap"
)

// Resolver turns a game's display name into its current live viewer total.
// It never fails: any error along the way yields 0.
type Resolver struct {
	tokens  TokenProvider
	helix   HelixAPI
	cache   *cache.CacheService
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(tokens TokenProvider, helix HelixAPI, cacheSvc *cache.CacheService, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewMemoryCache(logger)
	}
	if timeout <= 0 {
		timeout = constants.AggregationConfig.ResolveTimeout
	}

	return &Resolver{
		tokens:  tokens,
		helix:   helix,
		cache:   cacheSvc,
		timeout: timeout,
		logger:  logger,
	}
}

// ResolveLiveViewers sums the viewers of every live session for name. Empty
// or whitespace-only names resolve to 0 without a network call.
func (r *Resolver) ResolveLiveViewers(ctx context.Context, name string) int {
	if util.IsBlank(name) {
		return 0
	}

	cacheKey := "live_viewers:" + name
	var cached int
	if found, err := r.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	viewers, found, err := r.resolve(ctx, name)
	if err != nil {
		if apiErr, ok := errors.AsAPIError(err); ok && apiErr.IsUnauthorized() {
			r.tokens.Invalidate()
		}
		r.logger.Warn("Live viewer lookup failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return 0
	}
	if !found {
		r.logger.Debug("No streaming entity matches game", zap.String("name", name))
		return 0
	}

	_ = r.cache.Set(ctx, cacheKey, viewers, constants.CacheTTL.LiveViewers)
	return viewers
}

// resolve does the two-step lookup. found is false when no entity matches.
func (r *Resolver) resolve(ctx context.Context, name string) (viewers int, found bool, err error) {
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return 0, false, err
	}

	entities, err := r.helix.SearchGames(ctx, token, name)
	if err != nil {
		return 0, false, err
	}
	if len(entities) == 0 {
		return 0, false, nil
	}

	sessions, err := r.helix.GetActiveStreams(ctx, token, entities[0].ID)
	if err != nil {
		return 0, false, err
	}

	counts := make([]int, 0, len(sessions))
	for i := range sessions {
		if sessions[i].IsLive() {
			counts = append(counts, sessions[i].ViewerCount)
		}
	}
	return util.SumNonNegative(counts), true, nil
}
