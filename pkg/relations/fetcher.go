package relations

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Sternrassler/cms-content-client/pkg/throttle"
	"github.com/Sternrassler/cms-content-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// ChunkSize is the number of uuids requested per call. It is also sent
	// as per_page so the API never truncates a chunk.
	ChunkSize = 50

	// StoriesPath lists stories and accepts the by_uuids filter.
	StoriesPath = "cdn/stories"
)

// contextKeys are the only request parameters forwarded to relation fetches.
var contextKeys = []string{
	"version",
	"language",
	"cv",
	"fallback_lang",
	"from_release",
	"resolve_assets",
	"resolve_links",
	"resolve_links_level",
}

var relationChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cms_relation_chunks_total",
	Help: "Total relation fetch chunks by result",
}, []string{"result"})

// Fetcher loads stories that a response references but does not embed.
type Fetcher struct {
	transport transport.Transport
	throttle  *throttle.Manager
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher sharing the caller's throttle manager.
func NewFetcher(tr transport.Transport, manager *throttle.Manager, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		transport: tr,
		throttle:  manager,
		logger:    logger,
	}
}

// ContextQuery copies the forwarded context keys out of query.
func ContextQuery(query map[string]any) map[string]any {
	out := make(map[string]any, len(contextKeys)+2)
	for _, key := range contextKeys {
		if v, ok := query[key]; ok {
			out[key] = v
		}
	}
	return out
}

// Chunk splits uuids into slices of at most size elements.
func Chunk(uuids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(uuids); start += size {
		end := min(start+size, len(uuids))
		chunks = append(chunks, uuids[start:end])
	}
	return chunks
}

// FetchMissing loads uuids in concurrent chunks, each gated by the throttle
// manager. Any failed chunk fails the whole call and no partial result is
// returned.
func (f *Fetcher) FetchMissing(ctx context.Context, uuids []string, query map[string]any) (RelationMap, error) {
	rels := make(RelationMap, len(uuids))
	if len(uuids) == 0 {
		return rels, nil
	}

	base := ContextQuery(query)
	chunks := Chunk(uuids, ChunkSize)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		chunkQuery := transport.CloneQuery(base)
		chunkQuery["by_uuids"] = strings.Join(chunk, ",")
		chunkQuery["per_page"] = ChunkSize

		g.Go(func() error {
			stories, err := f.fetchChunk(gctx, chunkQuery)
			if err != nil {
				relationChunksTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("relation chunk %d/%d: %w", i+1, len(chunks), err)
			}
			relationChunksTotal.WithLabelValues("success").Inc()

			mu.Lock()
			rels.Add(stories)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		f.logger.Warn().
			Err(err).
			Int("uuids", len(uuids)).
			Int("chunks", len(chunks)).
			Msg("Relation fetch failed")
		return nil, err
	}

	f.logger.Debug().
		Int("uuids", len(uuids)).
		Int("chunks", len(chunks)).
		Int("resolved", len(rels)).
		Msg("Fetched missing relations")

	return rels, nil
}

func (f *Fetcher) fetchChunk(ctx context.Context, query map[string]any) ([]any, error) {
	resp, err := throttle.Execute(ctx, f.throttle, StoriesPath, query, func() (*transport.Response, error) {
		return f.transport.Do(ctx, transport.Request{
			Method: "GET",
			Path:   StoriesPath,
			Query:  query,
		})
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}

	f.throttle.AdaptToResponse(resp.Header)

	if resp.Err != nil {
		return nil, resp.Err
	}

	body, ok := resp.Object()
	if !ok {
		return nil, fmt.Errorf("unexpected response body %T", resp.Data)
	}
	stories, _ := body["stories"].([]any)
	return stories, nil
}
