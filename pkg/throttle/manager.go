package throttle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaxLimit caps every configured or server-reported limit.
	MaxLimit = 1000

	// HeaderRateLimitPolicy advertises the server's concurrency policy,
	// e.g. `"concurrent-requests";q=1000`.
	HeaderRateLimitPolicy = "X-RateLimit-Policy"

	// DefaultPerPage is assumed when a request carries no usable per_page.
	DefaultPerPage = 25
)

// ErrCallPanicked is returned by Execute when the gated call panics.
var ErrCallPanicked = errors.New("throttled call panicked")

var (
	leadingIntPattern = regexp.MustCompile(`^[+-]?\d+`)

	quotaPattern = regexp.MustCompile(`(?:^|[;,\s])q=(\d+)`)

	// singleEntityPattern matches a story fetched by id, uuid or slug,
	// including multi-segment slugs.
	singleEntityPattern = regexp.MustCompile(`^/?(?:v\d+/)?cdn/stories/.+`)
)

// Tier is a concurrency class selected from the request shape.
type Tier int

const (
	// TierSingleOrSmall covers single-entity reads and pages up to 25 items.
	TierSingleOrSmall Tier = iota
	// TierMedium covers pages of 26-50 items.
	TierMedium
	// TierLarge covers pages of 51-75 items.
	TierLarge
	// TierVeryLarge covers pages above 75 items.
	TierVeryLarge
)

// Tiers lists every tier in ascending page size.
var Tiers = []Tier{TierSingleOrSmall, TierMedium, TierLarge, TierVeryLarge}

// String returns the tier name used in logs and metrics.
func (t Tier) String() string {
	switch t {
	case TierSingleOrSmall:
		return "single_or_small"
	case TierMedium:
		return "medium"
	case TierLarge:
		return "large"
	case TierVeryLarge:
		return "very_large"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Limit returns the nominal starts-per-interval of the tier.
func (t Tier) Limit() int {
	switch t {
	case TierSingleOrSmall:
		return 50
	case TierMedium:
		return 15
	case TierLarge:
		return 10
	default:
		return 6
	}
}

// DetermineTier classifies a request. Single-entity story reads always map to
// TierSingleOrSmall; other requests are bucketed by per_page.
func DetermineTier(path string, query map[string]any) Tier {
	if singleEntityPattern.MatchString(path) {
		return TierSingleOrSmall
	}

	perPage := parsePerPage(query["per_page"])
	switch {
	case perPage <= 25:
		return TierSingleOrSmall
	case perPage <= 50:
		return TierMedium
	case perPage <= 75:
		return TierLarge
	default:
		return TierVeryLarge
	}
}

func parsePerPage(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		// Leading integer only: "60.5" and "60items" both mean 60.
		if digits := leadingIntPattern.FindString(strings.TrimSpace(n)); digits != "" {
			if parsed, err := strconv.Atoi(digits); err == nil {
				return parsed
			}
		}
	}
	return DefaultPerPage
}

// Mode is the throttle manager operating mode.
type Mode string

const (
	// ModeDisabled runs every call immediately.
	ModeDisabled Mode = "disabled"
	// ModeFixed gates every call through one throttle.
	ModeFixed Mode = "fixed"
	// ModeAuto gates calls through one throttle per tier.
	ModeAuto Mode = "auto"
)

// Config selects the manager mode.
//
// Disabled wins over everything else. A positive MaxConcurrent selects fixed
// mode; otherwise auto-detect mode is used.
type Config struct {
	// Disabled turns throttling off
	Disabled bool `yaml:"disabled"`

	// MaxConcurrent is the fixed-mode starts per interval (capped at 1000)
	MaxConcurrent int `yaml:"max_concurrent"`

	// AdaptToServerHeaders narrows limits from X-RateLimit-Policy (default true)
	AdaptToServerHeaders *bool `yaml:"adapt_to_server_headers"`

	// Interval is the slot hold time (default 1s)
	Interval time.Duration `yaml:"interval"`
}

// Manager routes calls to the throttle that governs them.
type Manager struct {
	mode    Mode
	adapt   bool
	ceiling int
	fixed   *Throttle
	tiers   map[Tier]*Throttle
	logger  zerolog.Logger
}

// NewManager creates a manager from cfg.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	m := &Manager{
		adapt:  cfg.AdaptToServerHeaders == nil || *cfg.AdaptToServerHeaders,
		logger: logger,
	}

	switch {
	case cfg.Disabled:
		m.mode = ModeDisabled
	case cfg.MaxConcurrent > 0:
		m.mode = ModeFixed
		m.ceiling = min(cfg.MaxConcurrent, MaxLimit)
		m.fixed = New("fixed", m.ceiling, cfg.Interval)
	default:
		m.mode = ModeAuto
		m.ceiling = TierSingleOrSmall.Limit()
		m.tiers = make(map[Tier]*Throttle, len(Tiers))
		for _, tier := range Tiers {
			m.tiers[tier] = New(tier.String(), tier.Limit(), cfg.Interval)
		}
	}

	m.logger.Debug().
		Str("mode", string(m.mode)).
		Int("ceiling", m.ceiling).
		Bool("adapt", m.adapt).
		Msg("Throttle manager configured")

	return m
}

// Mode returns the operating mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// ThrottleFor returns the throttle governing a request, or nil when disabled.
func (m *Manager) ThrottleFor(path string, query map[string]any) *Throttle {
	switch m.mode {
	case ModeFixed:
		return m.fixed
	case ModeAuto:
		return m.tiers[DetermineTier(path, query)]
	default:
		return nil
	}
}

// AdaptToResponse narrows the governed limit from the response headers.
// The configured ceiling is never exceeded. In auto mode only the
// single-or-small tier adapts. Missing or malformed headers are ignored.
func (m *Manager) AdaptToResponse(header http.Header) {
	if m.mode == ModeDisabled || !m.adapt || header == nil {
		return
	}

	quota, ok := ParsePolicyQuota(header.Get(HeaderRateLimitPolicy))
	if !ok {
		return
	}

	target := m.fixed
	if m.mode == ModeAuto {
		target = m.tiers[TierSingleOrSmall]
	}

	limit := min(m.ceiling, quota)
	if target.Limit() == limit {
		return
	}
	target.SetLimit(limit)

	serverLimitUpdates.Inc()
	m.logger.Info().
		Str("throttle", target.name).
		Int("server_quota", quota).
		Int("limit", limit).
		Msg("Throttle limit adapted to server policy")
}

// ParsePolicyQuota extracts q=<int> from a rate limit policy header, capped at
// MaxLimit. Values below 1 are treated as absent.
func ParsePolicyQuota(value string) (int, bool) {
	if value == "" {
		return 0, false
	}

	match := quotaPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}

	quota, err := strconv.Atoi(match[1])
	if err != nil || quota < 1 {
		return 0, false
	}
	return min(quota, MaxLimit), true
}

// Execute gates fn through the throttle governing path and query and returns
// its result. When the context ends before fn is admitted, Execute returns the
// context error; the queued call still runs once admitted so slot bookkeeping
// stays consistent. A panic in fn is returned as an error wrapping
// ErrCallPanicked.
func Execute[T any](ctx context.Context, m *Manager, path string, query map[string]any, fn func() (T, error)) (T, error) {
	t := m.ThrottleFor(path, query)
	if t == nil {
		return call(fn)
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	t.Schedule(func() {
		v, err := call(fn)
		done <- result{value: v, err: err}
	})

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// call runs fn and converts a panic into an error. Admitted jobs run on
// their own goroutine, where no caller could recover it.
func call[T any](fn func() (T, error)) (value T, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			value, err = zero, fmt.Errorf("%w: %v", ErrCallPanicked, p)
		}
	}()
	return fn()
}
