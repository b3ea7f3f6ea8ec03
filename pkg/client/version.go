package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/Sternrassler/cms-content-client/pkg/transport"
)

// versionState holds the content version last reported by the API.
type versionState struct {
	mu    sync.Mutex
	value int64
	held  bool
}

func (v *versionState) get() (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.held
}

func (v *versionState) set(cv int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = cv
	v.held = true
}

func (v *versionState) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = 0
	v.held = false
}

// ContentVersion returns the held content version.
func (c *Client) ContentVersion() (int64, bool) {
	return c.version.get()
}

// SetContentVersion replaces the held content version without flushing.
func (c *Client) SetContentVersion(cv int64) {
	c.version.set(cv)
}

// withContentVersion returns query with the held cv added. Draft requests and
// queries that already carry cv are returned unchanged.
func (c *Client) withContentVersion(query map[string]any) map[string]any {
	cv, held := c.version.get()
	if !held || isDraft(query) {
		return query
	}
	if _, ok := query["cv"]; ok {
		return query
	}

	out := transport.CloneQuery(query)
	out["cv"] = cv
	return out
}

// observeVersion adopts the cv carried by res. A value that differs from the
// held one flushes the whole cache before it is adopted.
func (c *Client) observeVersion(ctx context.Context, res *transport.Response) error {
	cv, ok := extractVersion(res)
	if !ok {
		return nil
	}

	c.version.mu.Lock()
	defer c.version.mu.Unlock()

	if c.version.held && c.version.value == cv {
		return nil
	}

	if c.version.held {
		if err := c.cache.Flush(ctx); err != nil {
			return fmt.Errorf("flush cache on content version change: %w", err)
		}
		contentVersionChanges.Inc()
		c.logger.Info().
			Int64("previous_cv", c.version.value).
			Int64("cv", cv).
			Msg("Content version changed, cache flushed")
	}

	c.version.value = cv
	c.version.held = true
	return nil
}

// extractVersion reads a numeric cv from an object body. Any other shape
// yields no version.
func extractVersion(res *transport.Response) (int64, bool) {
	body, ok := res.Object()
	if !ok {
		return 0, false
	}

	switch v := body["cv"].(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func isDraft(query map[string]any) bool {
	v, ok := query["version"]
	return ok && fmt.Sprint(v) == "draft"
}
