package cache

import (
	"context"
	"errors"
)

var (
	// ErrInvalidEntry indicates a stored entry could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Provider is a keyed store of entries with TTL semantics.
//
// Get returns (entry, true, nil) for a live entry and (nil, false, nil) when
// the key is absent or dead. Dead entries must be purged by the Get that
// observes them. Implementations must be safe for concurrent use; their own
// methods are the only serialization points the client relies on.
type Provider[T any] interface {
	Get(ctx context.Context, key string) (*Entry[T], bool, error)
	Set(ctx context.Context, key string, entry Entry[T]) error
	Flush(ctx context.Context) error
}
