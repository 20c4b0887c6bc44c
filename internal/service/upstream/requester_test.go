package upstream

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/gamepulse-dashboard/internal/util"
	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRequester(t *testing.T, handler http.HandlerFunc, threshold int, overrides ...func(*Options)) *Requester {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	opts := Options{
		Name:       "catalog",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
		Retry:      RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		Breaker:    util.NewCircuitBreaker("catalog", threshold, time.Minute, logger),
	}
	for _, override := range overrides {
		override(&opts)
	}
	return NewRequester(opts, logger)
}

func rotating(opts *Options) {
	opts.RotatesCredentials = true
}

func TestDoReturnsBodyAndAppliesDecorator(t *testing.T) {
	var gotKey, gotQuery string
	r := newTestRequester(t, func(w http.ResponseWriter, req *http.Request) {
		gotKey = req.Header.Get("X-Test-Key")
		gotQuery = req.URL.RawQuery
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, 3)

	params := url.Values{}
	params.Set("page_size", "5")

	body, err := r.Do(context.Background(), http.MethodGet, "/games", params, func(req *http.Request, attempt int) {
		req.Header.Set("X-Test-Key", "key-0")
		assert.Equal(t, 0, attempt)
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "key-0", gotKey)
	assert.Equal(t, "page_size=5", gotQuery)
	assert.Equal(t, util.CircuitStateClosed, r.Status().State)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}, 5)

	body, err := r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	}, 3)

	_, err := r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
	require.Error(t, err)

	apiErr, ok := errors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "catalog", apiErr.Upstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRotatesOnRateLimit(t *testing.T) {
	var seen []int
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, 3, rotating)

	_, err := r.Do(context.Background(), http.MethodGet, "/games", nil, func(_ *http.Request, attempt int) {
		seen = append(seen, attempt)
	})
	require.Error(t, err)

	var rotationErr *errors.KeyRotationError
	require.True(t, stderrors.As(err, &rotationErr))
	assert.Equal(t, http.StatusTooManyRequests, rotationErr.StatusCode)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestDoBacksOffOnRateLimitWithoutRotation(t *testing.T) {
	var calls atomic.Int32
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, 3, func(opts *Options) {
		opts.Retry.BaseDelay = 40 * time.Millisecond
	})

	start := time.Now()
	body, err := r.Do(context.Background(), http.MethodGet, "/streams", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "same credentials must not be resent at once")
}

func TestRateLimitDelay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fallback := 500 * time.Millisecond

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"missing header", "", fallback},
		{"not a number", "soon", fallback},
		{"already reset", "1699999990", fallback},
		{"reset in two seconds", "1700000002", 2 * time.Second},
		{"capped", "1700000600", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Ratelimit-Reset", tt.header)
			}
			assert.Equal(t, tt.want, rateLimitDelay(header, now, fallback))
		})
	}
}

func TestDoCountsOneFailurePerCall(t *testing.T) {
	var calls atomic.Int32
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 3)

	_, err := r.Do(context.Background(), http.MethodGet, "/streams", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "every attempt is spent")

	status := r.Status()
	assert.Equal(t, util.CircuitStateClosed, status.State)
	assert.Equal(t, 1, status.FailureCount)
}

func TestDoOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 2)

	_, err := r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
	require.Error(t, err)
	assert.Equal(t, util.CircuitStateClosed, r.Status().State)

	_, err = r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, util.CircuitStateOpen, r.Status().State)

	_, err = r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
	var openErr *errors.CircuitOpenError
	require.True(t, stderrors.As(err, &openErr))
	assert.Equal(t, http.StatusServiceUnavailable, errors.StatusCode(err))
	assert.Equal(t, int32(6), calls.Load(), "an open breaker short-circuits")
}

func TestDoReleasesHalfOpenSlotWithoutOutcome(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	r := newTestRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}, 1, func(opts *Options) {
		opts.Breaker = util.NewCircuitBreaker("catalog", 1, 0, nil)
	})

	_, err := r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
	require.Error(t, err)

	status.Store(http.StatusNotFound)
	for i := 0; i < 2; i++ {
		_, err = r.Do(context.Background(), http.MethodGet, "/games", nil, nil)
		apiErr, ok := errors.AsAPIError(err)
		require.True(t, ok, "call %d must reach the upstream", i)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	r := newTestRequester(t, func(w http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	}, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Do(ctx, http.MethodGet, "/games", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
