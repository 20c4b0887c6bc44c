package aggregation

import (
	"context"
	"time"

	"github.com/kapu/gamepulse-dashboard/internal/constants"
	"github.com/kapu/gamepulse-dashboard/internal/domain"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// CatalogProvider lists games and platforms from the catalog API.
type CatalogProvider interface {
	ListGames(ctx context.Context, ordering string, pageSize int) ([]domain.CatalogItem, error)
	ListPlatforms(ctx context.Context, ordering string, pageSize int) ([]domain.CatalogPlatform, error)
}

// ViewerResolver reports live viewers for a game name. Implementations
// absorb their own failures and return 0.
type ViewerResolver interface {
	ResolveLiveViewers(ctx context.Context, name string) int
}

type Service struct {
	catalog     CatalogProvider
	viewers     ViewerResolver
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(catalog CatalogProvider, viewers ViewerResolver, concurrency int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = constants.AggregationConfig.MaxConcurrency
	}

	return &Service{
		catalog:     catalog,
		viewers:     viewers,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// FetchTrendingGames merges the most-added games with their live viewer
// counts. Output keeps catalog order regardless of lookup completion order.
func (s *Service) FetchTrendingGames(ctx context.Context) ([]domain.TrendingGame, error) {
	games, err := s.catalog.ListGames(ctx, constants.CatalogQuery.GameOrdering, constants.CatalogQuery.TrendingPageSize)
	if err != nil {
		return nil, errors.NewCatalogFetchError("games", err)
	}

	results := make([]domain.TrendingGame, len(games))
	p := pool.New().WithMaxGoroutines(s.concurrency)

	for idx, game := range games {
		p.Go(func() {
			results[idx] = domain.TrendingGame{
				ID:          game.ID,
				Name:        game.Name,
				Image:       game.BackgroundImage,
				LiveViewers: util.Max(s.viewers.ResolveLiveViewers(ctx, game.Name), 0),
			}
		})
	}
	p.Wait()

	s.logger.Debug("Trending games aggregated", zap.Int("count", len(results)))
	return results, nil
}

// FetchGenreTrends tallies genre labels across the most-added games, one
// entry per label in first-seen order.
func (s *Service) FetchGenreTrends(ctx context.Context) ([]domain.GenreCount, error) {
	games, err := s.catalog.ListGames(ctx, constants.CatalogQuery.GameOrdering, constants.CatalogQuery.GenrePageSize)
	if err != nil {
		return nil, errors.NewCatalogFetchError("games", err)
	}

	return TallyGenres(games), nil
}

// TallyGenres counts genre labels. Labels are compared case-sensitively.
func TallyGenres(games []domain.CatalogItem) []domain.GenreCount {
	counts := make(map[string]int)
	order := make([]string, 0)

	for i := range games {
		for _, label := range games[i].GenreNames() {
			if _, seen := counts[label]; !seen {
				order = append(order, label)
			}
			counts[label]++
		}
	}

	out := make([]domain.GenreCount, 0, len(order))
	for _, label := range order {
		out = append(out, domain.GenreCount{
			ID:    util.GenreSlug(label),
			Label: label,
			Value: counts[label],
		})
	}
	return out
}

// FetchPlatformPerformance returns the top platforms by game count in the
// provider's order.
func (s *Service) FetchPlatformPerformance(ctx context.Context) ([]domain.PlatformStat, error) {
	platforms, err := s.catalog.ListPlatforms(ctx, constants.CatalogQuery.PlatformOrdering, constants.CatalogQuery.PlatformPageSize)
	if err != nil {
		return nil, errors.NewCatalogFetchError("platforms", err)
	}

	out := make([]domain.PlatformStat, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, domain.PlatformStat{
			ID:    p.Slug,
			Label: p.Name,
			Value: p.GamesCount,
		})
	}
	return out, nil
}

// FetchOverview builds all three views concurrently. The first catalog
// failure cancels the others and is returned.
func (s *Service) FetchOverview(ctx context.Context) (*domain.Overview, error) {
	overview := &domain.Overview{}
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()

	p.Go(func(ctx context.Context) error {
		trending, err := s.FetchTrendingGames(ctx)
		overview.Trending = trending
		return err
	})
	p.Go(func(ctx context.Context) error {
		genres, err := s.FetchGenreTrends(ctx)
		overview.Genres = genres
		return err
	})
	p.Go(func(ctx context.Context) error {
		platforms, err := s.FetchPlatformPerformance(ctx)
		overview.Platforms = platforms
		return err
	})

	if err := p.Wait(); err != nil {
		s.logger.Warn("Overview aggregation failed", zap.Error(err))
		return nil, err
	}

	overview.GeneratedAt = s.now().UTC()
	return overview, nil
}
