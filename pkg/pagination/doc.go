// Package pagination provides parallel batch fetching of a tutti.ch query's result pages.
//
// The query API reports the total result count with every page, and serves results in
// offset windows of listing.PageSize. This package fetches page 0 to learn the count,
// then fetches the remaining windows concurrently and stitches them back together.
//
// Example usage:
//
//	config := pagination.DefaultConfig()
//	config.MaxPages = 5
//	fetcher := pagination.NewBatchFetcher(session, config)
//	listings, err := fetcher.FetchAll(ctx, "pencil")
//
// The batch fetcher:
//   - Fetches page 0 synchronously; its total count alone decides the page count
//   - Caps the page count at Config.MaxPages
//   - Launches one goroutine per remaining page, in ascending page order
//   - Bounds every page by Config.Timeout (listing.ErrTimeout on expiry)
//   - Collects results by page index, never by completion order
//   - Is all-or-nothing: any failed page fails the whole batch with no partial data
package pagination
