package mediator

import (
	"context"
	"sync"

	"github.com/joeycumines/go-paging/pager"
	"github.com/joeycumines/go-paging/pagingcore"
	"github.com/joeycumines/go-paging/pagingsource"
	"github.com/joeycumines/go-paging/rangeset"
	"golang.org/x/sync/semaphore"
)

// Mediator layers a local cache source over a remote source,
// constructing one pager.Pager per distinct query value. There is no
// shared state across queries.
type Mediator[Q comparable, T any] struct {
	cfg    Config[T]
	local  pagingsource.LocalCacheSource[Q, T]
	remote pagingsource.RemoteSource[Q, T]
	sem    *semaphore.Weighted
}

// New constructs a Mediator reading from local and remote, using cfg
// (zero values take the documented defaults).
func New[Q comparable, T any](local pagingsource.LocalCacheSource[Q, T], remote pagingsource.RemoteSource[Q, T], cfg Config[T]) *Mediator[Q, T] {
	if local == nil || remote == nil {
		panic(`mediator: nil local or remote source`)
	}
	cfg = cfg.withDefaults()
	return &Mediator[Q, T]{
		cfg:    cfg,
		local:  local,
		remote: remote,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// Flow returns a cold output stream for query, backed by a freshly
// constructed Pager whose PullSource is this Mediator's load_portion
// cold stream.
func (m *Mediator[Q, T]) Flow(ctx context.Context, query Q) <-chan *pagingcore.Snapshot[T] {
	source := pagingsource.PullSourceFunc[T](func(ctx context.Context, position, size int) <-chan pagingsource.Result[T] {
		return m.loadPortion(ctx, query, position, size)
	})
	p := pager.New[T](source, pager.Config{
		LoadSize:    m.cfg.LoadSize,
		PreloadSize: m.cfg.PrefetchSize,
		CacheSize:   m.cfg.CacheSize,
		Logger:      m.cfg.Logger,
	})
	return p.Subscribe(ctx)
}

// loadPortion is the cold local-then-remote stream backing each
// per-query pager.
func (m *Mediator[Q, T]) loadPortion(ctx context.Context, query Q, position, size int) <-chan pagingsource.Result[T] {
	out := make(chan pagingsource.Result[T])
	go func() {
		defer close(out)
		m.runLoadPortion(ctx, out, query, position, size)
	}()
	return out
}

func (m *Mediator[Q, T]) runLoadPortion(ctx context.Context, out chan<- pagingsource.Result[T], query Q, position, size int) {
	requested := rangeset.New(position, position+size-1)

	local, err := m.local.Read(ctx, position, size, query)
	if err != nil {
		sendResult(ctx, out, pagingsource.Result[T]{Err: err})
		return
	}

	if m.cfg.EmitOutdatedRecords {
		sendResult(ctx, out, pagingsource.Result[T]{Portion: local})
	}

	filtered := filterStale(local, m.cfg.IsRecordStale)
	if !m.cfg.EmitOutdatedRecords {
		sendResult(ctx, out, pagingsource.Result[T]{Portion: filtered})
	}

	var missing []rangeset.Range
	if m.cfg.FetchFullRangeOnMiss {
		missing = []rangeset.Range{requested}
	} else {
		missing = computeMissing(requested, filtered.Values)
	}
	if len(missing) == 0 {
		return
	}

	m.fetchAndFinish(ctx, out, query, requested, missing, local.TotalSize, 1)
}

// fetchAndFinish fetches the missing ranges, reconciles total-size
// disagreement with a single clear-and-retry of the whole requested
// range, then emits and persists the merged portion. localTotalForCheck
// is the total size compared against for consistency: on the first
// attempt this is the originally-read local portion's total size; on
// the single permitted retry it is pinned at 0, so the retry only
// reports inconsistency when the remote fetches disagree with each
// other. This tolerates a brief window of local/remote disagreement
// rather than clearing the cache repeatedly.
func (m *Mediator[Q, T]) fetchAndFinish(ctx context.Context, out chan<- pagingsource.Result[T], query Q, requested rangeset.Range, missing []rangeset.Range, localTotalForCheck, attempt int) {
	emitIntermediate := !m.cfg.DisableIntermediateResults && (m.cfg.Concurrency <= 1 || len(missing) == 1)

	portions, err := m.fetchMissing(ctx, out, query, missing, emitIntermediate)
	if err != nil {
		sendResult(ctx, out, pagingsource.Result[T]{Err: err})
		return
	}

	totals := distinctTotals(portions)
	inconsistent := len(totals) > 1 || (localTotalForCheck != 0 && (len(totals) != 1 || totals[0] != localTotalForCheck))

	if inconsistent && attempt == 1 {
		if localTotalForCheck != 0 {
			if err := m.local.Clear(ctx); err != nil {
				sendResult(ctx, out, pagingsource.Result[T]{Err: err})
				return
			}
		}
		m.fetchAndFinish(ctx, out, query, requested, []rangeset.Range{requested}, 0, 2)
		return
	}

	merged := mergePortions(portions)
	sendResult(ctx, out, pagingsource.Result[T]{Portion: merged})
	if err := m.local.Save(ctx, merged); err != nil {
		m.cfg.Logger.WithError(err).Error(`mediator: local.save failed after merge`)
	}
}

// fetchMissing fans out the remote fetches, with a counting semaphore
// bounding how many are in flight at once.
func (m *Mediator[Q, T]) fetchMissing(ctx context.Context, out chan<- pagingsource.Result[T], query Q, missing []rangeset.Range, emitIntermediate bool) ([]pagingsource.Portion[T], error) {
	portions := make([]pagingsource.Portion[T], len(missing))
	errs := make([]error, len(missing))

	var wg sync.WaitGroup
	for i, r := range missing {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, r rangeset.Range) {
			defer wg.Done()
			defer m.sem.Release(1)

			portion, err := m.remote.Fetch(ctx, r.First, r.Width(), query)
			if err != nil {
				errs[i] = err
				return
			}
			portions[i] = portion
			if emitIntermediate {
				sendResult(ctx, out, pagingsource.Result[T]{Portion: portion})
			}
		}(i, r)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return portions, nil
}

func sendResult[T any](ctx context.Context, out chan<- pagingsource.Result[T], res pagingsource.Result[T]) {
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

func filterStale[T any](portion pagingsource.Portion[T], stale StalePredicate[T]) pagingsource.Portion[T] {
	values := make(map[int]T, len(portion.Values))
	for k, v := range portion.Values {
		if !stale(v) {
			values[k] = v
		}
	}
	return pagingsource.Portion[T]{TotalSize: portion.TotalSize, Values: values}
}

// computeMissing returns every maximal contiguous run of positions in
// expected absent from present.
func computeMissing[T any](expected rangeset.Range, present map[int]T) []rangeset.Range {
	var out []rangeset.Range
	start := -1
	for pos := expected.First; pos <= expected.Last; pos++ {
		if _, ok := present[pos]; !ok {
			if start == -1 {
				start = pos
			}
			continue
		}
		if start != -1 {
			out = append(out, rangeset.New(start, pos-1))
			start = -1
		}
	}
	if start != -1 {
		out = append(out, rangeset.New(start, expected.Last))
	}
	return out
}

func distinctTotals[T any](portions []pagingsource.Portion[T]) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, p := range portions {
		if _, ok := seen[p.TotalSize]; !ok {
			seen[p.TotalSize] = struct{}{}
			out = append(out, p.TotalSize)
		}
	}
	return out
}

func mergePortions[T any](portions []pagingsource.Portion[T]) pagingsource.Portion[T] {
	values := map[int]T{}
	var total int
	for _, p := range portions {
		if p.TotalSize != 0 {
			total = p.TotalSize
		}
		for k, v := range p.Values {
			values[k] = v
		}
	}
	return pagingsource.Portion[T]{TotalSize: total, Values: values}
}
