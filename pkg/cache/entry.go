package cache

import (
	"time"
)

// Entry is a cached value together with the time it was stored and how long
// it stays live.
type Entry[T any] struct {
	// Value is the cached payload
	Value T `json:"value"`

	// StoredAt is when the entry was written
	StoredAt time.Time `json:"stored_at"`

	// TTL is how long after StoredAt the entry may be served
	TTL time.Duration `json:"ttl"`
}

// NewEntry creates an entry stored at now.
func NewEntry[T any](value T, now time.Time, ttl time.Duration) Entry[T] {
	return Entry[T]{
		Value:    value,
		StoredAt: now,
		TTL:      ttl,
	}
}

// IsLive reports whether the entry may still be served at now.
// The boundary is inclusive.
func (e *Entry[T]) IsLive(now time.Time) bool {
	return now.Sub(e.StoredAt) <= e.TTL
}

// Remaining returns the time left until the entry dies.
// Returns 0 if already dead.
func (e *Entry[T]) Remaining(now time.Time) time.Duration {
	left := e.TTL - now.Sub(e.StoredAt)
	if left < 0 {
		return 0
	}
	return left
}
