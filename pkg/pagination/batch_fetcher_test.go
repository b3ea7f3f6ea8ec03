package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// listFetcher serves a list of n items.
func listFetcher(n int, fail map[int]bool, calls *atomic.Int32) PageFetcherFunc {
	return func(ctx context.Context, page, perPage int) ([]any, int, error) {
		calls.Add(1)
		if fail[page] {
			return nil, 0, errors.New("server error")
		}
		var items []any
		for i := (page - 1) * perPage; i < min(page*perPage, n); i++ {
			items = append(items, fmt.Sprintf("item-%d", i))
		}
		return items, n, nil
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, perPage, want int
	}{
		{0, 100, 1},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{250, 100, 3},
		{10, 0, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.total, tt.perPage), func(t *testing.T) {
			if got := PageCount(tt.total, tt.perPage); got != tt.want {
				t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.perPage, got, tt.want)
			}
		})
	}
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(Config{}, zerolog.Nop())
	if bf.config.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", bf.config.MaxConcurrency, DefaultMaxConcurrency)
	}
	if bf.config.PerPage != DefaultPerPage {
		t.Errorf("PerPage = %d, want %d", bf.config.PerPage, DefaultPerPage)
	}
}

func TestFetchAll_SinglePage(t *testing.T) {
	var calls atomic.Int32
	bf := NewBatchFetcher(DefaultConfig(), zerolog.Nop())

	items, err := bf.FetchAll(context.Background(), listFetcher(42, nil, &calls))
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(items) != 42 {
		t.Errorf("items = %d, want 42", len(items))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchAll_MultiplePagesInOrder(t *testing.T) {
	var calls atomic.Int32
	bf := NewBatchFetcher(Config{MaxConcurrency: 3, PerPage: 10}, zerolog.Nop())

	items, err := bf.FetchAll(context.Background(), listFetcher(95, nil, &calls))
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(items) != 95 {
		t.Fatalf("items = %d, want 95", len(items))
	}
	for i, item := range items {
		if want := fmt.Sprintf("item-%d", i); item != want {
			t.Fatalf("items[%d] = %v, want %s", i, item, want)
		}
	}
	if calls.Load() != 10 {
		t.Errorf("calls = %d, want 10", calls.Load())
	}
}

func TestFetchAll_AnyPageFailureFailsAll(t *testing.T) {
	var calls atomic.Int32
	bf := NewBatchFetcher(Config{PerPage: 10}, zerolog.Nop())

	items, err := bf.FetchAll(context.Background(), listFetcher(50, map[int]bool{4: true}, &calls))
	if err == nil {
		t.Fatal("expected error when a page fails")
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
}

func TestFetchAll_FirstPageFailure(t *testing.T) {
	var calls atomic.Int32
	bf := NewBatchFetcher(DefaultConfig(), zerolog.Nop())

	if _, err := bf.FetchAll(context.Background(), listFetcher(50, map[int]bool{1: true}, &calls)); err == nil {
		t.Fatal("expected error when page 1 fails")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchAll_ConcurrencyBound(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	fetch := PageFetcherFunc(func(ctx context.Context, page, perPage int) ([]any, int, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return []any{page}, 20 * perPage, nil
	})

	bf := NewBatchFetcher(Config{MaxConcurrency: 4, PerPage: 1}, zerolog.Nop())
	items, err := bf.FetchAll(context.Background(), fetch)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(items) != 20 {
		t.Errorf("items = %d, want 20", len(items))
	}
	if peak > 4 {
		t.Errorf("peak in-flight = %d, want <= 4", peak)
	}
}
