package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeAPIError     = "API_ERROR"
	CodeCredential   = "CREDENTIAL_ERROR"
	CodeCatalogFetch = "CATALOG_FETCH_ERROR"
	CodeCircuitOpen  = "CIRCUIT_OPEN"
	CodeCache        = "CACHE_ERROR"
	CodeKeyRotation  = "KEY_ROTATION_ERROR"
)

type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// HTTPStatus is promoted to every error type embedding AppError.
func (e *AppError) HTTPStatus() int {
	return e.StatusCode
}

// APIError is a non-success answer (or transport failure) from an upstream provider.
type APIError struct {
	*AppError
	Upstream string
}

func NewAPIError(upstream, message string, statusCode int, context map[string]any) *APIError {
	return &APIError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeAPIError,
			StatusCode: statusCode,
			Context:    context,
		},
		Upstream: upstream,
	}
}

func (e *APIError) WithCause(cause error) *APIError {
	e.Cause = cause
	return e
}

func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

type KeyRotationError struct {
	*APIError
}

func NewKeyRotationError(upstream, message string, statusCode int, context map[string]any) *KeyRotationError {
	return &KeyRotationError{
		APIError: &APIError{
			AppError: &AppError{
				Message:    message,
				Code:       CodeKeyRotation,
				StatusCode: statusCode,
				Context:    context,
			},
			Upstream: upstream,
		},
	}
}

type CircuitOpenError struct {
	*AppError
	Upstream     string
	RetryAfterMs int64
}

func NewCircuitOpenError(upstream string, retryAfterMs int64) *CircuitOpenError {
	return &CircuitOpenError{
		AppError: &AppError{
			Message:    fmt.Sprintf("%s circuit breaker open", upstream),
			Code:       CodeCircuitOpen,
			StatusCode: http.StatusServiceUnavailable,
			Context: map[string]any{
				"upstream":       upstream,
				"retry_after_ms": retryAfterMs,
			},
		},
		Upstream:     upstream,
		RetryAfterMs: retryAfterMs,
	}
}

// CredentialError means the streaming provider token exchange failed.
type CredentialError struct {
	*AppError
}

func NewCredentialError(message string, cause error) *CredentialError {
	return &CredentialError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCredential,
			StatusCode: http.StatusBadGateway,
			Cause:      cause,
		},
	}
}

// CatalogFetchError means a primary catalog list could not be fetched.
// Unlike per-item failures it is never absorbed.
type CatalogFetchError struct {
	*AppError
	Resource string
}

func NewCatalogFetchError(resource string, cause error) *CatalogFetchError {
	return &CatalogFetchError{
		AppError: &AppError{
			Message:    fmt.Sprintf("failed to fetch %s from catalog", resource),
			Code:       CodeCatalogFetch,
			StatusCode: http.StatusBadGateway,
			Context: map[string]any{
				"resource": resource,
			},
			Cause: cause,
		},
		Resource: resource,
	}
}

type CacheError struct {
	*AppError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: http.StatusInternalServerError,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// StatusCode picks the HTTP status a route should answer with for err.
// Catalog failures win over anything they wrap.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var catalogErr *CatalogFetchError
	if stderrors.As(err, &catalogErr) {
		return catalogErr.StatusCode
	}

	var coded interface{ HTTPStatus() int }
	if stderrors.As(err, &coded) && coded.HTTPStatus() >= 400 {
		return coded.HTTPStatus()
	}

	return http.StatusInternalServerError
}

// AsAPIError unwraps err to the closest upstream API error, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	var rotationErr *KeyRotationError
	if stderrors.As(err, &rotationErr) {
		return rotationErr.APIError, true
	}
	return nil, false
}
