package client

import (
	"errors"

	"github.com/Sternrassler/cms-content-client/pkg/transport"
)

// Common errors returned by the client.
var (
	// ErrMissingTransport is returned by New when no transport is configured.
	ErrMissingTransport = errors.New("transport is required")

	// ErrInvalidTTL is returned by New for a negative cache TTL.
	ErrInvalidTTL = errors.New("cache ttl must not be negative")

	// ErrEmptyResult is returned when a strategy yields neither a response
	// nor an error.
	ErrEmptyResult = errors.New("strategy returned no response")
)

// AsAPIError reports whether err carries a tagged API failure.
func AsAPIError(err error) (*transport.APIError, bool) {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
