package search

import (
	"errors"
)

var (
	// Parameter validation errors
	ErrInvalidQuery = errors.New("query parameter is required and cannot be empty")
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")

	// Endpoint errors
	ErrAPIRateLimit    = errors.New("search endpoint rate limit exceeded")
	ErrAPIUnauthorized = errors.New("search endpoint access unauthorized")
	ErrAPIServerError  = errors.New("search endpoint server error")
	ErrAPIStatus       = errors.New("unexpected search endpoint status")

	// Network errors
	ErrNetworkTimeout = errors.New("network request timeout")
	ErrNetworkError   = errors.New("network error occurred")

	// Body errors
	ErrEmptyBody = errors.New("search endpoint returned an empty body")
)

// IsRetryableError returns true if the error might succeed on retry
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrNetworkTimeout) ||
		errors.Is(err, ErrNetworkError) ||
		errors.Is(err, ErrAPIRateLimit) ||
		errors.Is(err, ErrAPIServerError)
}

// SearchError represents a search failure with the query that caused it
type SearchError struct {
	Query string
	Code  string
	Err   error
}

func (e *SearchError) Error() string {
	return "search " + e.Code + " for " + quote(e.Query) + ": " + e.Err.Error()
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func quote(s string) string {
	return "\"" + s + "\""
}
