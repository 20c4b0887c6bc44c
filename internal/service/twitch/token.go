package twitch

import (
	"context"
	"net/http"

	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider hands out an app access token for Helix calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// TokenCache memoizes a single client-credentials token. sem is held across
// the exchange so concurrent callers share one fetch, and a waiter gives up
// when its own context ends.
type TokenCache struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	token      *oauth2.Token
	sem        chan struct{}
	logger     *zap.Logger
}

func NewTokenCache(clientID, clientSecret, tokenURL string, httpClient *http.Client, logger *zap.Logger) *TokenCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenCache{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		sem:        make(chan struct{}, 1),
		logger:     logger,
	}
}

// Token returns the cached access token, exchanging credentials first when
// none is cached or the cached one has expired. A failed exchange caches
// nothing.
func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	select {
	case tc.sem <- struct{}{}:
	case <-ctx.Done():
		return "", errors.NewCredentialError("gave up waiting for twitch app token", ctx.Err())
	}
	defer func() { <-tc.sem }()

	if tc.token.Valid() {
		return tc.token.AccessToken, nil
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, tc.httpClient)
	token, err := tc.config.Token(exchangeCtx)
	if err != nil {
		tc.logger.Error("Twitch token exchange failed", zap.Error(err))
		return "", errors.NewCredentialError("failed to obtain twitch app token", err)
	}

	tc.token = token
	tc.logger.Debug("Twitch app token refreshed", zap.Time("expiry", token.Expiry))
	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next call re-exchanges.
func (tc *TokenCache) Invalidate() {
	tc.sem <- struct{}{}
	defer func() { <-tc.sem }()

	if tc.token != nil {
		tc.logger.Info("Twitch app token invalidated")
	}
	tc.token = nil
}
