package rawg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/kapu/gamepulse-dashboard/internal/constants"
	"github.com/kapu/gamepulse-dashboard/internal/domain"
	"github.com/kapu/gamepulse-dashboard/internal/service/cache"
	"github.com/kapu/gamepulse-dashboard/internal/service/upstream"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"go.uber.org/zap"
)

const upstreamName = "rawg"

type gamesResponse struct {
	Count   int                  `json:"count"`
	Results []domain.CatalogItem `json:"results"`
}

type platformsResponse struct {
	Count   int                      `json:"count"`
	Results []domain.CatalogPlatform `json:"results"`
}

// Client talks to the RAWG catalog. API keys are rotated per attempt so a
// rate-limited key is skipped on retry.
type Client struct {
	requester       *upstream.Requester
	apiKeys         []string
	currentKeyIndex int
	keyMu           sync.Mutex
	cache           *cache.CacheService
	logger          *zap.Logger
}

type Options struct {
	BaseURL    string
	APIKeys    []string
	HTTPClient *http.Client
	Cache      *cache.CacheService
}

func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if len(opts.APIKeys) == 0 {
		return nil, fmt.Errorf("at least one RAWG API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: constants.APIConfig.RAWGTimeout}
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache(logger)
	}

	retry := upstream.DefaultRetryPolicy()
	retry.MaxAttempts = util.Min(util.Max(len(opts.APIKeys)*2, retry.MaxAttempts), 10)

	return &Client{
		requester: upstream.NewRequester(upstream.Options{
			Name:               upstreamName,
			BaseURL:            opts.BaseURL,
			HTTPClient:         opts.HTTPClient,
			Retry:              retry,
			RotatesCredentials: len(opts.APIKeys) > 1,
		}, logger),
		apiKeys: opts.APIKeys,
		cache:   opts.Cache,
		logger:  logger,
	}, nil
}

func (c *Client) getNextAPIKey() string {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	key := c.apiKeys[c.currentKeyIndex]
	c.currentKeyIndex = (c.currentKeyIndex + 1) % len(c.apiKeys)
	return key
}

func (c *Client) withAPIKey(req *http.Request, _ int) {
	q := req.URL.Query()
	q.Set("key", c.getNextAPIKey())
	req.URL.RawQuery = q.Encode()
}

// ListGames returns up to pageSize games in the given ordering.
func (c *Client) ListGames(ctx context.Context, ordering string, pageSize int) ([]domain.CatalogItem, error) {
	cacheKey := fmt.Sprintf("rawg:games:%s:%d", ordering, pageSize)

	var cached []domain.CatalogItem
	if found, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return cached, nil
	}

	body, err := c.requester.Do(ctx, http.MethodGet, "/games", listParams(ordering, pageSize), c.withAPIKey)
	if err != nil {
		c.logger.Error("Failed to list games",
			zap.String("ordering", ordering),
			zap.Int("page_size", pageSize),
			zap.Error(err),
		)
		return nil, err
	}

	var resp gamesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode games response: %w", err)
	}
	games := resp.Results
	if games == nil {
		games = []domain.CatalogItem{}
	}

	_ = c.cache.Set(ctx, cacheKey, games, constants.CacheTTL.CatalogGames)
	return games, nil
}

// ListPlatforms returns up to pageSize platforms in the given ordering.
func (c *Client) ListPlatforms(ctx context.Context, ordering string, pageSize int) ([]domain.CatalogPlatform, error) {
	cacheKey := fmt.Sprintf("rawg:platforms:%s:%d", ordering, pageSize)

	var cached []domain.CatalogPlatform
	if found, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return cached, nil
	}

	body, err := c.requester.Do(ctx, http.MethodGet, "/platforms", listParams(ordering, pageSize), c.withAPIKey)
	if err != nil {
		c.logger.Error("Failed to list platforms",
			zap.String("ordering", ordering),
			zap.Int("page_size", pageSize),
			zap.Error(err),
		)
		return nil, err
	}

	var resp platformsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode platforms response: %w", err)
	}
	platforms := resp.Results
	if platforms == nil {
		platforms = []domain.CatalogPlatform{}
	}

	_ = c.cache.Set(ctx, cacheKey, platforms, constants.CacheTTL.CatalogPlatforms)
	return platforms, nil
}

func (c *Client) Status() util.CircuitBreakerStatus {
	return c.requester.Status()
}

func listParams(ordering string, pageSize int) url.Values {
	params := url.Values{}
	if ordering != "" {
		params.Set("ordering", ordering)
	}
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}
	return params
}
