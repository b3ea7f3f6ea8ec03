package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrInvalidStrategy is returned by ParseStrategy for unknown names.
var ErrInvalidStrategy = errors.New("invalid cache strategy")

// StrategyName identifies one of the built-in strategies.
type StrategyName string

const (
	// StrategyCacheFirst serves cached data without touching the network.
	StrategyCacheFirst StrategyName = "cache-first"

	// StrategyNetworkFirst prefers the network and falls back to cache on failure.
	StrategyNetworkFirst StrategyName = "network-first"

	// StrategySWR serves cached data and refreshes it in the background.
	StrategySWR StrategyName = "swr"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (StrategyName, error) {
	switch StrategyName(name) {
	case StrategyCacheFirst, StrategyNetworkFirst, StrategySWR:
		return StrategyName(name), nil
	case "":
		return StrategyCacheFirst, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
	}
}

// Loader fetches a fresh value from the network.
type Loader[T any] func(ctx context.Context) (*T, error)

// Strategy decides how a cached value and a network load combine.
// cached is nil when the cache has no live entry for key.
type Strategy[T any] func(ctx context.Context, key string, cached *T, load Loader[T]) (*T, error)

// CacheFirst returns cached when present and only loads on a miss.
func CacheFirst[T any]() Strategy[T] {
	return func(ctx context.Context, _ string, cached *T, load Loader[T]) (*T, error) {
		if cached != nil {
			return cached, nil
		}
		return load(ctx)
	}
}

// NetworkFirst always loads and falls back to cached when the load fails.
// Without a cached value the load error is returned unchanged.
func NetworkFirst[T any]() Strategy[T] {
	return func(ctx context.Context, _ string, cached *T, load Loader[T]) (*T, error) {
		fresh, err := load(ctx)
		if err != nil {
			if cached != nil {
				return cached, nil
			}
			return fresh, err
		}
		return fresh, nil
	}
}

// Revalidator implements stale-while-revalidate. At most one background
// refresh runs per key; its outcome never reaches a caller.
type Revalidator[T any] struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// NewRevalidator creates a stale-while-revalidate strategy.
func NewRevalidator[T any](logger zerolog.Logger) *Revalidator[T] {
	return &Revalidator[T]{
		inFlight: make(map[string]struct{}),
		logger:   logger,
	}
}

// Resolve returns cached immediately and starts a background load for key
// unless one is already running. On a miss it loads synchronously.
func (r *Revalidator[T]) Resolve(ctx context.Context, key string, cached *T, load Loader[T]) (*T, error) {
	if cached == nil {
		return load(ctx)
	}

	r.mu.Lock()
	if _, running := r.inFlight[key]; running {
		r.mu.Unlock()
		Revalidations.WithLabelValues("skipped").Inc()
		return cached, nil
	}
	r.inFlight[key] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.revalidate(context.WithoutCancel(ctx), key, load)

	return cached, nil
}

// InFlight reports whether a background refresh for key is running.
func (r *Revalidator[T]) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[key]
	return ok
}

// Wait blocks until every started background refresh has finished.
func (r *Revalidator[T]) Wait() {
	r.wg.Wait()
}

func (r *Revalidator[T]) revalidate(ctx context.Context, key string, load Loader[T]) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.inFlight, key)
		r.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			Revalidations.WithLabelValues("error").Inc()
			r.logger.Warn().
				Str("key", key).
				Interface("panic", p).
				Msg("Background revalidation panicked")
		}
	}()

	if _, err := load(ctx); err != nil {
		Revalidations.WithLabelValues("error").Inc()
		r.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Background revalidation failed")
		return
	}

	Revalidations.WithLabelValues("success").Inc()
	r.logger.Debug().Str("key", key).Msg("Background revalidation complete")
}
