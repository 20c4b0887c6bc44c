package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kapu/gamepulse-dashboard/internal/constants"
	"github.com/kapu/gamepulse-dashboard/internal/domain"
	"github.com/kapu/gamepulse-dashboard/internal/service/upstream"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const upstreamName = "twitch"

// HelixAPI is the subset of Helix the resolver needs.
type HelixAPI interface {
	SearchGames(ctx context.Context, token, name string) ([]domain.StreamEntity, error)
	GetActiveStreams(ctx context.Context, token, gameID string) ([]domain.LiveSession, error)
}

type helixResponse[T any] struct {
	Data []T `json:"data"`
}

type Client struct {
	requester *upstream.Requester
	clientID  string
	logger    *zap.Logger
}

type ClientOptions struct {
	BaseURL           string
	ClientID          string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
}

func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: constants.APIConfig.TwitchTimeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), util.Max(opts.Burst, 1))
	}

	// Every trending game is a separate lookup, so the breaker threshold sits
	// above one batch.
	breaker := util.NewCircuitBreaker(
		upstreamName,
		constants.CircuitBreakerConfig.HelixFailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		logger,
	)

	return &Client{
		requester: upstream.NewRequester(upstream.Options{
			Name:       upstreamName,
			BaseURL:    opts.BaseURL,
			HTTPClient: opts.HTTPClient,
			Limiter:    limiter,
			Breaker:    breaker,
		}, logger),
		clientID: opts.ClientID,
		logger:   logger,
	}
}

func (c *Client) authorize(token string) upstream.Decorator {
	return func(req *http.Request, _ int) {
		req.Header.Set("Client-ID", c.clientID)
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// SearchGames looks a game up by its exact name.
func (c *Client) SearchGames(ctx context.Context, token, name string) ([]domain.StreamEntity, error) {
	params := url.Values{}
	params.Set("name", name)

	body, err := c.requester.Do(ctx, http.MethodGet, "/games", params, c.authorize(token))
	if err != nil {
		return nil, err
	}

	var resp helixResponse[domain.StreamEntity]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode helix games response: %w", err)
	}
	return resp.Data, nil
}

// GetActiveStreams lists the first page of live streams for gameID.
func (c *Client) GetActiveStreams(ctx context.Context, token, gameID string) ([]domain.LiveSession, error) {
	params := url.Values{}
	params.Set("game_id", gameID)
	params.Set("first", strconv.Itoa(constants.APIConfig.HelixStreamsPageSize))

	body, err := c.requester.Do(ctx, http.MethodGet, "/streams", params, c.authorize(token))
	if err != nil {
		return nil, err
	}

	var resp helixResponse[domain.LiveSession]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode helix streams response: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) Status() util.CircuitBreakerStatus {
	return c.requester.Status()
}
