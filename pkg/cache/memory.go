package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries is the capacity of a MemoryProvider when none is given.
const DefaultMaxEntries = 1000

// MemoryOption configures a MemoryProvider.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	maxEntries int
	now        func() time.Time
}

// WithMaxEntries sets the provider capacity. Zero evicts every insert
// immediately; negative values are treated as zero.
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n < 0 {
			n = 0
		}
		o.maxEntries = n
	}
}

// WithClock replaces time.Now for liveness checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		o.now = now
	}
}

type memoryItem[T any] struct {
	key   string
	entry Entry[T]
}

// MemoryProvider is an in-process Provider bounded by entry count.
// Entries are ordered by write; the oldest written entry is evicted first.
type MemoryProvider[T any] struct {
	mu         sync.Mutex
	maxEntries int
	now        func() time.Time
	order      *list.List
	items      map[string]*list.Element
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider[T any](opts ...MemoryOption) *MemoryProvider[T] {
	o := memoryOptions{
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &MemoryProvider[T]{
		maxEntries: o.maxEntries,
		now:        o.now,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the live entry for key. A dead entry is removed and reported as
// absent. Reading does not change eviction order.
func (p *MemoryProvider[T]) Get(_ context.Context, key string) (*Entry[T], bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.items[key]
	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, false, nil
	}

	item := elem.Value.(*memoryItem[T])
	if !item.entry.IsLive(p.now()) {
		p.removeElement(elem)
		CacheEvictions.WithLabelValues("expired").Inc()
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, false, nil
	}

	CacheHits.WithLabelValues("memory").Inc()
	entry := item.entry
	return &entry, true, nil
}

// Set stores entry under key. An existing key is removed and re-inserted so
// it becomes the most recently written.
func (p *MemoryProvider[T]) Set(_ context.Context, key string, entry Entry[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		p.removeElement(elem)
	}
	p.items[key] = p.order.PushBack(&memoryItem[T]{key: key, entry: entry})

	for p.order.Len() > p.maxEntries {
		p.removeElement(p.order.Front())
		CacheEvictions.WithLabelValues("capacity").Inc()
	}
	return nil
}

// Flush removes every entry.
func (p *MemoryProvider[T]) Flush(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.order.Init()
	p.items = make(map[string]*list.Element)
	CacheFlushes.WithLabelValues("memory").Inc()
	return nil
}

// Len returns the number of stored entries, live or not.
func (p *MemoryProvider[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

func (p *MemoryProvider[T]) removeElement(elem *list.Element) {
	item := p.order.Remove(elem).(*memoryItem[T])
	delete(p.items, item.key)
}
