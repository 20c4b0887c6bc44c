package twitch

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTokenServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTokenCacheFetchesOnce(t *testing.T) {
	srv, calls := newTokenServer(t, `{"access_token":"abc","expires_in":5000000,"token_type":"bearer"}`, http.StatusOK)
	tc := NewTokenCache("client-id", "client-secret", srv.URL, srv.Client(), zap.NewNop())

	for i := 0; i < 3; i++ {
		token, err := tc.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc", token)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenCacheConcurrentCallersShareFetch(t *testing.T) {
	srv, calls := newTokenServer(t, `{"access_token":"abc","expires_in":5000000,"token_type":"bearer"}`, http.StatusOK)
	tc := NewTokenCache("client-id", "client-secret", srv.URL, srv.Client(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := tc.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "abc", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenCacheInvalidateForcesRefetch(t *testing.T) {
	srv, calls := newTokenServer(t, `{"access_token":"abc","expires_in":5000000,"token_type":"bearer"}`, http.StatusOK)
	tc := NewTokenCache("client-id", "client-secret", srv.URL, srv.Client(), nil)

	_, err := tc.Token(context.Background())
	require.NoError(t, err)
	tc.Invalidate()
	_, err = tc.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenCacheRefreshesExpiredToken(t *testing.T) {
	// Tokens within the oauth2 expiry delta count as expired.
	srv, calls := newTokenServer(t, `{"access_token":"short","expires_in":1,"token_type":"bearer"}`, http.StatusOK)
	tc := NewTokenCache("client-id", "client-secret", srv.URL, srv.Client(), nil)

	_, err := tc.Token(context.Background())
	require.NoError(t, err)
	_, err = tc.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenCacheFailureCachesNothing(t *testing.T) {
	srv, calls := newTokenServer(t, `{"status":400,"message":"invalid client secret"}`, http.StatusBadRequest)
	tc := NewTokenCache("client-id", "client-secret", srv.URL, srv.Client(), nil)

	_, err := tc.Token(context.Background())
	require.Error(t, err)

	var credErr *errors.CredentialError
	require.True(t, stderrors.As(err, &credErr))
	assert.Equal(t, http.StatusBadGateway, errors.StatusCode(err))

	_, err = tc.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "a failed exchange is retried on the next call")
}

func TestTokenCacheWaiterHonorsOwnContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce, releaseOnce sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		startOnce.Do(func() { close(started) })
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"slow","expires_in":3600,"token_type":"bearer"}`))
	}))
	t.Cleanup(srv.Close)
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	tc := NewTokenCache("client-id", "client-secret", srv.URL, srv.Client(), zap.NewNop())

	holder := make(chan error, 1)
	go func() {
		_, err := tc.Token(context.Background())
		holder <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tc.Token(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "a waiter must not outlive its own deadline")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var credErr *errors.CredentialError
	assert.True(t, stderrors.As(err, &credErr))

	unblock()
	require.NoError(t, <-holder)

	token, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "slow", token)
}
