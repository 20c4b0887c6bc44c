package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	apiErr := NewAPIError("rawg", "Client error: 401", http.StatusUnauthorized, nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
		{"catalog wraps upstream 401", NewCatalogFetchError("games", apiErr), http.StatusBadGateway},
		{"wrapped catalog", fmt.Errorf("overview: %w", NewCatalogFetchError("platforms", nil)), http.StatusBadGateway},
		{"circuit open", NewCircuitOpenError("twitch", 1000), http.StatusServiceUnavailable},
		{"credential", NewCredentialError("exchange failed", nil), http.StatusBadGateway},
		{"api error", apiErr, http.StatusUnauthorized},
		{"api error without status", NewAPIError("rawg", "request cancelled", 0, nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestAsAPIError(t *testing.T) {
	rotation := NewKeyRotationError("rawg", "all attempts rate limited", http.StatusTooManyRequests, nil)
	got, ok := AsAPIError(fmt.Errorf("list games: %w", rotation))
	assert.True(t, ok)
	assert.Equal(t, "rawg", got.Upstream)
	assert.Equal(t, CodeKeyRotation, got.Code)

	unauthorized := NewAPIError("twitch", "Client error: 401", http.StatusUnauthorized, nil)
	got, ok = AsAPIError(NewCatalogFetchError("games", unauthorized))
	assert.True(t, ok)
	assert.True(t, got.IsUnauthorized())

	_, ok = AsAPIError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestCauseChain(t *testing.T) {
	err := NewAPIError("twitch", "request cancelled", 0, nil).WithCause(context.Canceled)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Equal(t, "request cancelled: context canceled", err.Error())

	credErr := NewCredentialError("failed to obtain twitch app token", err)
	var target *APIError
	assert.True(t, As(credErr, &target))
}
