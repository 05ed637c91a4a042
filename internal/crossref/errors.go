package crossref

import (
	"errors"
	"fmt"
)

// Common errors returned by the catalog client.
var (
	// ErrNotFound indicates the catalog has no record for the identifier or query.
	ErrNotFound = errors.New("not found in catalog")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("catalog rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with catalog")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from catalog")
)

// APIError represents an HTTP error from one of the catalog services.
type APIError struct {
	StatusCode int
	Service    string // crossref, doi.org, openlibrary
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
