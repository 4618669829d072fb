// Package mediator implements a local-plus-remote paging coordinator:
// it layers a local cache source in front of a remote source, serving
// cached data first, computing missing sub-ranges, fetching them with
// bounded concurrency, and reconciling total-size disagreement between
// the cache and the remote source.
//
// Each query owns a freshly constructed pager.Pager whose PullSource is
// the mediator's own load-portion cold stream; parallel remote fetches
// are gated by a golang.org/x/sync/semaphore.Weighted counting
// semaphore joined with a sync.WaitGroup.
package mediator
