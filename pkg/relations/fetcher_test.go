package relations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/cms-content-client/internal/testutil"
	"github.com/Sternrassler/cms-content-client/pkg/throttle"
	"github.com/Sternrassler/cms-content-client/pkg/transport"
	"github.com/rs/zerolog"
)

func newTestFetcher(t *testing.T, mock *testutil.MockCMS) *Fetcher {
	t.Helper()

	cfg := transport.DefaultConfig("test-token")
	cfg.BaseURL = mock.URL()
	cfg.Retry = transport.RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}
	tr, err := transport.NewHTTPTransport(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPTransport failed: %v", err)
	}

	manager := throttle.NewManager(throttle.Config{Disabled: true}, zerolog.Nop())
	return NewFetcher(tr, manager, zerolog.Nop())
}

// echoStories answers by_uuids requests with one story per requested uuid.
func echoStories(w http.ResponseWriter, r *http.Request) {
	var stories []any
	for _, uuid := range strings.Split(r.URL.Query().Get("by_uuids"), ",") {
		if uuid != "" {
			stories = append(stories, testutil.Story(uuid, uuid, nil))
		}
	}
	testutil.WriteResponse(w, testutil.NewOKResponse(map[string]any{"stories": stories}))
}

func uuids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("uuid-%03d", i)
	}
	return out
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{name: "empty", n: 0, sizes: nil},
		{name: "partial", n: 10, sizes: []int{10}},
		{name: "exact", n: 50, sizes: []int{50}},
		{name: "three chunks", n: 150, sizes: []int{50, 50, 50}},
		{name: "remainder", n: 101, sizes: []int{50, 50, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(uuids(tt.n), ChunkSize)
			var sizes []int
			for _, c := range chunks {
				sizes = append(sizes, len(c))
			}
			if !reflect.DeepEqual(sizes, tt.sizes) {
				t.Errorf("chunk sizes = %v, want %v", sizes, tt.sizes)
			}
		})
	}
}

func TestContextQuery(t *testing.T) {
	query := map[string]any{
		"version":           "draft",
		"language":          "de",
		"cv":                int64(12),
		"resolve_relations": "article.author",
		"starts_with":       "blog/",
		"page":              3,
	}

	got := ContextQuery(query)
	want := map[string]any{"version": "draft", "language": "de", "cv": int64(12)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ContextQuery() = %v, want %v", got, want)
	}
}

func TestFetchMissing_Chunks(t *testing.T) {
	mock := testutil.NewMockCMS()
	defer mock.Close()
	mock.SetHandler(StoriesPath, echoStories)

	f := newTestFetcher(t, mock)
	ids := uuids(150)

	rels, err := f.FetchMissing(context.Background(), ids, map[string]any{
		"version":           "published",
		"resolve_relations": "article.author",
	})
	if err != nil {
		t.Fatalf("FetchMissing failed: %v", err)
	}
	if len(rels) != 150 {
		t.Errorf("resolved = %d, want 150", len(rels))
	}

	reqs := mock.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	for _, u := range reqs {
		q := u.Query()
		if q.Get("per_page") != "50" {
			t.Errorf("per_page = %q, want 50", q.Get("per_page"))
		}
		if got := len(strings.Split(q.Get("by_uuids"), ",")); got != 50 {
			t.Errorf("by_uuids count = %d, want 50", got)
		}
		if q.Get("version") != "published" {
			t.Errorf("version = %q, want published", q.Get("version"))
		}
		if q.Has("resolve_relations") {
			t.Error("resolve_relations must not be forwarded to relation fetches")
		}
	}
}

func TestFetchMissing_Empty(t *testing.T) {
	mock := testutil.NewMockCMS()
	defer mock.Close()

	f := newTestFetcher(t, mock)
	rels, err := f.FetchMissing(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("FetchMissing failed: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("resolved = %d, want 0", len(rels))
	}
	if mock.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.RequestCount())
	}
}

func TestFetchMissing_AnyChunkFailureFailsAll(t *testing.T) {
	mock := testutil.NewMockCMS()
	defer mock.Close()

	mock.SetHandler(StoriesPath, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("by_uuids"), "uuid-120") {
			testutil.WriteResponse(w, testutil.NewServerErrorResponse())
			return
		}
		echoStories(w, r)
	})

	f := newTestFetcher(t, mock)
	rels, err := f.FetchMissing(context.Background(), uuids(150), nil)
	if err == nil {
		t.Fatal("expected error when a chunk fails")
	}
	if rels != nil {
		t.Errorf("rels = %v, want nil on failure", rels)
	}

	var apiErr *transport.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("err = %v, want wrapped 500 APIError", err)
	}
}

func TestFetchMissing_Throttled(t *testing.T) {
	mock := testutil.NewMockCMS()
	defer mock.Close()

	var (
		mu       sync.Mutex
		inWindow int
	)
	mock.SetHandler(StoriesPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inWindow++
		mu.Unlock()
		echoStories(w, r)
	})

	f := newTestFetcher(t, mock)
	f.throttle = throttle.NewManager(throttle.Config{MaxConcurrent: 2, Interval: 200 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.FetchMissing(ctx, uuids(150), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded while the third chunk waits", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if inWindow > 2 {
		t.Errorf("requests in first window = %d, want at most 2", inWindow)
	}
}
