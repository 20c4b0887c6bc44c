package upstream

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/gamepulse-dashboard/internal/constants"
	"github.com/kapu/gamepulse-dashboard/internal/util"
	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Decorator prepares a request for a given attempt, e.g. to rotate API keys
// or attach a bearer token.
type Decorator func(req *http.Request, attempt int)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.RetryConfig.MaxAttempts,
		BaseDelay:   constants.RetryConfig.BaseDelay,
		Jitter:      constants.RetryConfig.Jitter,
	}
}

type Options struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
	Limiter    *rate.Limiter
	Breaker    *util.CircuitBreaker
	// RotatesCredentials marks a decorator that sends different credentials
	// on each attempt, so a 429 is retried without waiting.
	RotatesCredentials bool
}

// Requester executes GET-style calls against one upstream with retry,
// exponential backoff, an optional rate limiter and a circuit breaker.
type Requester struct {
	name       string
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	limiter    *rate.Limiter
	breaker    *util.CircuitBreaker
	rotates    bool
	now        func() time.Time
	logger     *zap.Logger
}

func NewRequester(opts Options, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Breaker == nil {
		opts.Breaker = util.NewCircuitBreaker(
			opts.Name,
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		)
	}

	return &Requester{
		name:       opts.Name,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		retry:      opts.Retry,
		limiter:    opts.Limiter,
		breaker:    opts.Breaker,
		rotates:    opts.RotatesCredentials,
		now:        time.Now,
		logger:     logger.With(zap.String("upstream", opts.Name)),
	}
}

// Do performs method on path with params and returns the response body of
// the first 2xx answer.
//
// Transport errors and 5xx responses are retried with backoff. A 429 is
// retried at once when the decorator rotates credentials, otherwise after
// Ratelimit-Reset or the backoff delay. Any other 4xx returns immediately as
// *errors.APIError. The circuit breaker sees one outcome per call, however
// many attempts it took.
func (r *Requester) Do(ctx context.Context, method, path string, params url.Values, decorate Decorator) ([]byte, error) {
	if !r.breaker.CanExecute() {
		remaining := r.breaker.RetryAfter()
		r.logger.Warn("Circuit breaker is open", zap.Int64("retry_after_ms", remaining.Milliseconds()))
		return nil, errors.NewCircuitOpenError(r.name, remaining.Milliseconds())
	}

	settled := false
	defer func() {
		if !settled {
			r.breaker.Release()
		}
	}()

	reqURL := r.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	lastStatus := 0

attempts:
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, errors.NewAPIError(r.name, "rate limiter wait aborted", 0, nil).WithCause(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, errors.NewAPIError(r.name, "failed to create request", 0, map[string]any{
				"path": path,
			}).WithCause(err)
		}
		req.Header.Set("Accept", "application/json")
		if decorate != nil {
			decorate(req, attempt)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, r.cancelled(ctx, path)
			}

			lastErr = err
			lastStatus = 0
			if !r.backoff(ctx, attempt, r.computeDelay(attempt), err) {
				break attempts
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			lastStatus = 0
			if !r.backoff(ctx, attempt, r.computeDelay(attempt), err) {
				break attempts
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = nil
			lastStatus = resp.StatusCode
			if r.rotates {
				r.logger.Warn("Rate limited, rotating credentials", zap.Int("attempt", attempt+1))
				continue
			}
			delay := rateLimitDelay(resp.Header, r.now(), r.computeDelay(attempt))
			if !r.backoff(ctx, attempt, delay, fmt.Errorf("rate limited: %d", resp.StatusCode)) {
				break attempts
			}
			continue

		case resp.StatusCode >= 500:
			lastErr = nil
			lastStatus = resp.StatusCode
			r.logger.Warn("Server error",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			if !r.backoff(ctx, attempt, r.computeDelay(attempt), nil) {
				break attempts
			}
			continue

		case resp.StatusCode >= 400:
			return nil, errors.NewAPIError(r.name, fmt.Sprintf("Client error: %d", resp.StatusCode), resp.StatusCode, map[string]any{
				"path": path,
				"body": util.TruncateString(string(body), 512),
			})
		}

		settled = true
		r.breaker.RecordSuccess()
		return body, nil
	}

	if ctx.Err() != nil {
		return nil, r.cancelled(ctx, path)
	}

	settled = true
	if lastStatus == http.StatusTooManyRequests {
		r.breaker.RecordFailure(constants.CircuitBreakerConfig.RateLimitTimeout)
		return nil, errors.NewKeyRotationError(r.name, "all attempts rate limited", lastStatus, map[string]any{
			"path": path,
		})
	}

	r.breaker.RecordFailure(0)
	if lastErr != nil {
		return nil, errors.NewAPIError(r.name, "request failed", http.StatusBadGateway, map[string]any{
			"path": path,
		}).WithCause(lastErr)
	}
	if lastStatus != 0 {
		return nil, errors.NewAPIError(r.name, fmt.Sprintf("Server error: %d", lastStatus), lastStatus, map[string]any{
			"path": path,
		})
	}
	return nil, errors.NewAPIError(r.name, "request failed after all retries", http.StatusBadGateway, nil)
}

func (r *Requester) cancelled(ctx context.Context, path string) error {
	return errors.NewAPIError(r.name, "request cancelled", 0, map[string]any{
		"path": path,
	}).WithCause(ctx.Err())
}

// backoff sleeps delay before the next attempt. It returns false when no
// attempt is left or ctx ended first.
func (r *Requester) backoff(ctx context.Context, attempt int, delay time.Duration, cause error) bool {
	if attempt >= r.retry.MaxAttempts-1 {
		return false
	}

	r.logger.Warn("Request failed, retrying",
		zap.Error(cause),
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Requester) computeDelay(attempt int) time.Duration {
	base := r.retry.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	var jitter time.Duration
	if r.retry.Jitter > 0 {
		jitter = time.Duration(rand.Float64() * float64(r.retry.Jitter))
	}
	return base + jitter
}

// rateLimitDelay honors Ratelimit-Reset (Unix seconds) up to
// MaxRateLimitWait. Without a usable header it returns fallback.
func rateLimitDelay(header http.Header, now time.Time, fallback time.Duration) time.Duration {
	reset, err := strconv.ParseInt(header.Get("Ratelimit-Reset"), 10, 64)
	if err != nil {
		return fallback
	}

	delay := time.Unix(reset, 0).Sub(now)
	switch {
	case delay <= 0:
		return fallback
	case delay > constants.RetryConfig.MaxRateLimitWait:
		return constants.RetryConfig.MaxRateLimitWait
	default:
		return delay
	}
}

func (r *Requester) Status() util.CircuitBreakerStatus {
	return r.breaker.GetStatus()
}
