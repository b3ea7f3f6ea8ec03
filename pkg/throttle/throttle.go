// Package throttle implements request-start rate limiting for CMS API calls.
//
// A Throttle admits at most Limit job starts per Interval. Each admitted job
// holds its slot for exactly one Interval measured from its start, however
// long the job itself runs. Queued jobs are admitted in FIFO order.
//
// The Manager selects a Throttle per request: a single shared one in fixed
// mode, or one of four tiers keyed by request shape in auto-detect mode. It
// narrows limits from the X-RateLimit-Policy header reported by the server.
package throttle

import (
	"sync"
	"time"
)

// DefaultInterval is the slot hold time used when none is configured.
const DefaultInterval = time.Second

// Throttle is a fixed-rate admission controller.
type Throttle struct {
	name     string
	mu       sync.Mutex
	limit    int
	interval time.Duration
	queue    []func()
	active   int
}

// New creates a throttle admitting limit starts per interval.
func New(name string, limit int, interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if limit < 1 {
		limit = 1
	}

	t := &Throttle{
		name:     name,
		limit:    limit,
		interval: interval,
	}
	throttleLimit.WithLabelValues(name).Set(float64(limit))
	return t
}

// Schedule queues job and starts it in its own goroutine once a slot frees.
func (t *Throttle) Schedule(job func()) {
	t.mu.Lock()
	t.queue = append(t.queue, job)
	ready := t.advanceLocked()
	t.mu.Unlock()

	start(ready)
}

// SetLimit changes the limit. Raising it admits waiting jobs immediately.
func (t *Throttle) SetLimit(limit int) {
	if limit < 1 {
		limit = 1
	}

	t.mu.Lock()
	grew := limit > t.limit
	t.limit = limit
	var ready []func()
	if grew {
		ready = t.advanceLocked()
	}
	t.mu.Unlock()

	throttleLimit.WithLabelValues(t.name).Set(float64(limit))
	start(ready)
}

// Limit returns the current limit.
func (t *Throttle) Limit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit
}

// Active returns the number of slots held.
func (t *Throttle) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Queued returns the number of jobs waiting for a slot.
func (t *Throttle) Queued() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// advanceLocked admits queued jobs while slots are free. Each admitted slot is
// released one interval later.
func (t *Throttle) advanceLocked() []func() {
	var ready []func()
	for t.active < t.limit && len(t.queue) > 0 {
		job := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.active++
		ready = append(ready, job)
		time.AfterFunc(t.interval, t.release)
	}

	throttleQueueDepth.WithLabelValues(t.name).Set(float64(len(t.queue)))
	if len(ready) > 0 {
		throttleAdmissions.WithLabelValues(t.name).Add(float64(len(ready)))
	}
	return ready
}

func (t *Throttle) release() {
	t.mu.Lock()
	t.active--
	ready := t.advanceLocked()
	t.mu.Unlock()

	start(ready)
}

func start(jobs []func()) {
	for _, job := range jobs {
		go job()
	}
}
