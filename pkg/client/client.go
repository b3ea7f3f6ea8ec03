// Package client provides the CMS content client: a request pipeline with
// caching, content-version invalidation, throttling and relation resolution.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/cms-content-client/pkg/cache"
	"github.com/Sternrassler/cms-content-client/pkg/logging"
	"github.com/Sternrassler/cms-content-client/pkg/relations"
	"github.com/Sternrassler/cms-content-client/pkg/throttle"
	"github.com/Sternrassler/cms-content-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is the lifetime of cached responses.
const DefaultCacheTTL = 60 * time.Second

// nonCacheablePaths are always fetched fresh.
var nonCacheablePaths = map[string]struct{}{
	"cdn/spaces/me": {},
}

var (
	pipelineRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cms_pipeline_requests_total",
		Help: "Total pipeline requests by cacheability",
	}, []string{"mode"}) // "cached", "direct"

	contentVersionChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cms_content_version_changes_total",
		Help: "Total content version changes that flushed the cache",
	})
)

// Response is the result of a pipeline call.
type Response = transport.Response

// Client is the CMS content client. A Client owns its cache, content
// version and throttle queues; independent clients share nothing.
type Client struct {
	transport   transport.Transport
	cache       cache.Provider[Response]
	strategy    cache.Strategy[Response]
	revalidator *cache.Revalidator[Response]
	throttle    *throttle.Manager
	relations   *relations.Fetcher
	version     versionState
	config      Config
	now         func() time.Time
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Transport performs the HTTP calls (REQUIRED)
	Transport transport.Transport

	// Cache stores responses. Nil selects an in-memory provider bounded by
	// CacheMaxEntries.
	Cache cache.Provider[Response]

	// CacheMaxEntries bounds the default in-memory provider
	CacheMaxEntries int

	// CacheTTL is the lifetime of cached responses
	CacheTTL time.Duration

	// CacheDisabled sends every request to the network
	CacheDisabled bool

	// CacheStrategy selects a built-in strategy (default cache-first)
	CacheStrategy cache.StrategyName

	// Strategy overrides CacheStrategy with a custom strategy
	Strategy cache.Strategy[Response]

	// Throttle configures request-start rate limiting
	Throttle throttle.Config

	// ThrowOnError returns API failures as errors instead of tagged results
	ThrowOnError bool
}

// DefaultConfig returns a default configuration for tr.
func DefaultConfig(tr transport.Transport) Config {
	return Config{
		Transport:       tr,
		CacheMaxEntries: cache.DefaultMaxEntries,
		CacheTTL:        DefaultCacheTTL,
		CacheStrategy:   cache.StrategyCacheFirst,
	}
}

// New creates a new CMS content client.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, ErrMissingTransport
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("%w (got %s)", ErrInvalidTTL, cfg.CacheTTL)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	logger := logging.NewLogger("cms-client")

	c := &Client{
		transport: cfg.Transport,
		cache:     cfg.Cache,
		throttle:  throttle.NewManager(cfg.Throttle, logger),
		config:    cfg,
		now:       time.Now,
		logger:    logger,
	}

	if c.cache == nil {
		maxEntries := cfg.CacheMaxEntries
		if maxEntries <= 0 {
			maxEntries = cache.DefaultMaxEntries
		}
		c.cache = cache.NewMemoryProvider[Response](cache.WithMaxEntries(maxEntries))
	}

	if cfg.Strategy != nil {
		c.strategy = cfg.Strategy
	} else {
		name, err := cache.ParseStrategy(string(cfg.CacheStrategy))
		if err != nil {
			return nil, err
		}
		switch name {
		case cache.StrategyNetworkFirst:
			c.strategy = cache.NetworkFirst[Response]()
		case cache.StrategySWR:
			c.revalidator = cache.NewRevalidator[Response](logger)
			c.strategy = c.revalidator.Resolve
		default:
			c.strategy = cache.CacheFirst[Response]()
		}
	}

	c.relations = relations.NewFetcher(cfg.Transport, c.throttle, logger)

	return c, nil
}

// Get performs a GET request through the pipeline.
func (c *Client) Get(ctx context.Context, path string, query map[string]any) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, query)
}

// Request runs one call through the pipeline.
//
// API failures are returned as a Response with Err set and a nil error,
// unless ThrowOnError is configured. Cache provider and relation failures
// are always returned as errors.
func (c *Client) Request(ctx context.Context, method, path string, query map[string]any) (*Response, error) {
	path = strings.TrimPrefix(path, "/")
	if query == nil {
		query = map[string]any{}
	}
	netQuery := c.withContentVersion(query)

	var (
		res *Response
		err error
	)
	if c.isCacheable(method, path, query) {
		pipelineRequestsTotal.WithLabelValues("cached").Inc()
		res, err = c.cached(ctx, method, path, query, netQuery)
	} else {
		pipelineRequestsTotal.WithLabelValues("direct").Inc()
		res, err = c.load(ctx, method, path, netQuery)
	}

	if err != nil {
		if _, ok := AsAPIError(err); ok && res != nil && !c.config.ThrowOnError {
			return res, nil
		}
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrEmptyResult)
	}

	if paths := relations.ParsePaths(query["resolve_relations"]); len(paths) > 0 {
		return c.resolveRelations(ctx, res, paths, netQuery)
	}
	return res, nil
}

// cached runs the configured strategy for a cacheable request. The key is
// computed from the caller's query, before cv injection.
func (c *Client) cached(ctx context.Context, method, path string, query, netQuery map[string]any) (*Response, error) {
	key := cache.CreateKey(method, path, query)

	entry, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var hit *Response
	if ok {
		value := entry.Value
		hit = &value
		c.logger.Debug().Str("key", key).Msg("Cache hit")
	}

	loadNetwork := func(ctx context.Context) (*Response, error) {
		res, err := c.load(ctx, method, path, netQuery)
		if err != nil {
			return res, err
		}
		if err := c.cache.Set(ctx, key, cache.NewEntry(*res, c.now(), c.config.CacheTTL)); err != nil {
			return res, fmt.Errorf("cache set: %w", err)
		}
		return res, nil
	}

	return c.strategy(ctx, key, hit, loadNetwork)
}

// load performs one throttled network call. A tagged API failure is returned
// both on the response and as the error so strategies can fall back.
func (c *Client) load(ctx context.Context, method, path string, query map[string]any) (*Response, error) {
	res, err := throttle.Execute(ctx, c.throttle, path, query, func() (*Response, error) {
		return c.transport.Do(ctx, transport.Request{
			Method: method,
			Path:   path,
			Query:  query,
		})
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("transport returned no response for %s", path)
	}

	c.throttle.AdaptToResponse(res.Header)

	if res.Err != nil {
		return res, res.Err
	}
	if err := c.observeVersion(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// isCacheable reports whether a request may be served from cache. It is
// judged on the caller's query, not the cv-augmented one.
func (c *Client) isCacheable(method, path string, query map[string]any) bool {
	if c.config.CacheDisabled || method != http.MethodGet {
		return false
	}
	if _, ok := nonCacheablePaths[path]; ok {
		return false
	}
	return !isDraft(query)
}

// FlushCache empties the cache and forgets the held content version.
func (c *Client) FlushCache(ctx context.Context) error {
	if err := c.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	c.version.reset()
	c.logger.Debug().Msg("Cache flushed")
	return nil
}

// Throttle returns the client's throttle manager.
func (c *Client) Throttle() *throttle.Manager {
	return c.throttle
}

// Close waits for background revalidations to finish.
func (c *Client) Close() error {
	if c.revalidator != nil {
		c.revalidator.Wait()
	}
	return nil
}
