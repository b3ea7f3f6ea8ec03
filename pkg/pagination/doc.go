// Package pagination fetches every page of a paginated CMS list endpoint.
//
// List endpoints report the total item count in the Total response header.
// The first page is fetched alone to learn that count; the remaining pages
// are then fetched concurrently and concatenated in page order.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(pagination.DefaultConfig(), logger)
//	items, err := fetcher.FetchAll(ctx, pagination.PageFetcherFunc(fetchPage))
//
// The batch fetcher:
//   - Fetches page 1 to determine the page count
//   - Fetches pages 2..N with at most MaxConcurrency in flight
//   - Fails the whole call when any page fails; no partial data is returned
package pagination
