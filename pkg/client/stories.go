package client

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Sternrassler/cms-content-client/pkg/pagination"
	"github.com/Sternrassler/cms-content-client/pkg/relations"
	"github.com/Sternrassler/cms-content-client/pkg/transport"
)

// GetStory fetches a single story by slug, id or uuid.
func (c *Client) GetStory(ctx context.Context, slug string, query map[string]any) (*Response, error) {
	return c.Get(ctx, relations.StoriesPath+"/"+strings.TrimPrefix(slug, "/"), query)
}

// GetStories fetches one page of stories.
func (c *Client) GetStories(ctx context.Context, query map[string]any) (*Response, error) {
	return c.Get(ctx, relations.StoriesPath, query)
}

// GetAll fetches every page of a list endpoint and returns the items found
// under entity. An empty entity defaults to the last path segment. Any page
// failure fails the call, whatever ThrowOnError says.
func (c *Client) GetAll(ctx context.Context, listPath string, query map[string]any, entity string) ([]any, error) {
	if entity == "" {
		entity = path.Base(strings.Trim(listPath, "/"))
	}

	fetcher := pagination.NewBatchFetcher(pagination.DefaultConfig(), c.logger)
	return fetcher.FetchAll(ctx, pagination.PageFetcherFunc(func(ctx context.Context, page, perPage int) ([]any, int, error) {
		q := transport.CloneQuery(query)
		q["per_page"] = perPage
		q["page"] = page

		res, err := c.Get(ctx, listPath, q)
		if err != nil {
			return nil, 0, err
		}
		if res.Err != nil {
			return nil, 0, res.Err
		}

		total, _ := strconv.Atoi(res.Header.Get(transport.HeaderTotal))
		body, _ := res.Object()
		items, _ := body[entity].([]any)
		return items, total, nil
	}))
}

// resolveRelations inlines the relations named by paths into the story or
// stories of res. res is not modified; the cache keeps unresolved bodies.
func (c *Client) resolveRelations(ctx context.Context, res *Response, paths []string, query map[string]any) (*Response, error) {
	if res.Err != nil {
		return res, nil
	}
	body, ok := res.Object()
	if !ok {
		return res, nil
	}

	story, hasStory := body["story"].(map[string]any)
	stories, hasStories := body["stories"].([]any)
	if !hasStory && !hasStories {
		return res, nil
	}

	rels := relations.RelationMap{}
	if embedded, ok := body["rels"].([]any); ok {
		rels.Add(embedded)
	}

	if missing := missingRelations(body["rel_uuids"], rels); len(missing) > 0 {
		fetched, err := c.relations.FetchMissing(ctx, missing, query)
		if err != nil {
			return nil, fmt.Errorf("resolve relations: %w", err)
		}
		for uuid, s := range fetched {
			rels[uuid] = s
		}
	}

	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	if hasStory {
		out["story"] = relations.InlineStory(story, paths, rels)
	}
	if hasStories {
		out["stories"] = relations.InlineStories(stories, paths, rels)
	}

	resolved := *res
	resolved.Data = out
	return &resolved, nil
}

// missingRelations lists the rel_uuids not already embedded.
func missingRelations(value any, rels relations.RelationMap) []string {
	list, _ := value.([]any)
	var missing []string
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		uuid, ok := item.(string)
		if !ok || uuid == "" {
			continue
		}
		if _, ok := rels[uuid]; ok {
			continue
		}
		if _, ok := seen[uuid]; ok {
			continue
		}
		seen[uuid] = struct{}{}
		missing = append(missing, uuid)
	}
	return missing
}
