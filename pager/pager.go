package pager

import (
	"context"
	"errors"
	"sync"

	"github.com/joeycumines/go-paging/internal/accesssignal"
	"github.com/joeycumines/go-paging/internal/snapshotfeed"
	"github.com/joeycumines/go-paging/pagingcore"
	"github.com/joeycumines/go-paging/pagingsource"
	"github.com/joeycumines/go-paging/rangeset"
)

// Pager is the pull-based windowed loader. A Pager instance belongs to
// exactly one subscription lifecycle:
// construct it, call Subscribe once with the subscription's context,
// and every background task it owns is cancelled when that context is
// done.
type Pager[T any] struct {
	cfg    Config
	source pagingsource.PullSource[T]
	signal *accesssignal.Signal
	feed   *snapshotfeed.Feed[*pagingcore.Snapshot[T]]

	mu                  sync.Mutex
	snapshot            *pagingcore.Snapshot[T]
	lastReadKey         int
	hasLastReadKey      bool
	currentLoad         *loadHandle
	currentPlannedRange rangeset.Range
}

type loadHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Pager reading from source, using cfg (zero values
// take the documented defaults).
func New[T any](source pagingsource.PullSource[T], cfg Config) *Pager[T] {
	if source == nil {
		panic(`pager: nil source`)
	}
	cfg = cfg.withDefaults()

	p := &Pager[T]{
		cfg:    cfg,
		source: source,
		signal: accesssignal.New(debounce),
	}
	p.snapshot = pagingcore.New[T](0, map[int]T{}, pagingcore.Success(), p.access, p.retry)
	p.feed = snapshotfeed.New(p.snapshot)
	return p
}

// Subscribe starts the Pager's background scheduler and returns a
// stream of snapshots. The first emission is always a Success,
// total_size=0 snapshot. All background work started by this call is
// cancelled when ctx is done.
func (p *Pager[T]) Subscribe(ctx context.Context) <-chan *pagingcore.Snapshot[T] {
	go p.signal.Run(ctx, func(k int) { p.onStableKey(ctx, k) })
	return p.feed.Subscribe(ctx)
}

func (p *Pager[T]) access(position int) {
	p.signal.Push(position)
}

func (p *Pager[T]) retry(position int) {
	p.signal.Push(position)
}

// onStableKey handles planning and supersession, invoked once per
// debounced, distinct access key.
func (p *Pager[T]) onStableKey(subCtx context.Context, k int) {
	if k < 0 {
		return
	}

	p.mu.Lock()
	if p.currentLoad != nil && p.currentPlannedRange.Contains(k) {
		p.mu.Unlock()
		return
	}
	if p.currentLoad != nil {
		p.cfg.Logger.WithField(`key`, k).Debug(`pager: superseding in-flight load`)
		p.currentLoad.cancel()
		// The superseded loader's planned range no longer reflects the
		// in-flight work; empty it so the contains-check above never
		// consults a stale range before the new loader plans.
		p.currentPlannedRange = rangeset.Empty()
	}

	dir := increasing
	if p.hasLastReadKey && k < p.lastReadKey {
		dir = decreasing
	}
	p.lastReadKey = k
	p.hasLastReadKey = true

	loadCtx, cancel := context.WithCancel(subCtx)
	done := make(chan struct{})
	p.currentLoad = &loadHandle{cancel: cancel, done: done}
	p.mu.Unlock()

	go p.runLoad(loadCtx, cancel, done, k, dir)
}

// runLoad executes one planning+fetch cycle. If that plan was made while
// the total size was still unknown and did not reach k, it plans and
// fetches once more around k after the source has reported a total.
func (p *Pager[T]) runLoad(ctx context.Context, cancel context.CancelFunc, done chan struct{}, k int, dir direction) {
	defer close(done)
	defer p.clearCurrentLoad(done)
	defer cancel()

replan:
	p.mu.Lock()
	plannedTotal := p.snapshot.TotalSize
	p.mu.Unlock()

	pl, queueEmpty := p.beginPlan(k, dir)
	if queueEmpty {
		return
	}

	for _, chunk := range pl.queue {
		if ctx.Err() != nil {
			return
		}
		ch := p.source.ReadData(ctx, chunk.First, chunk.Width())
		for res := range ch {
			if ctx.Err() != nil {
				return
			}
			if res.Err != nil {
				if errors.Is(res.Err, context.Canceled) {
					return
				}
				p.mu.Lock()
				p.snapshot = p.snapshot.WithLoadState(pagingcore.ErrorState(res.Err, k))
				p.feed.Publish(p.snapshot)
				p.mu.Unlock()
				p.cfg.Logger.WithField(`key`, k).WithError(res.Err).Error(`pager: load failed`)
				return
			}
			p.mu.Lock()
			p.mergePortionLocked(res.Portion, pl.cacheWindow)
			p.feed.Publish(p.snapshot)
			p.mu.Unlock()
		}
	}

	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if plannedTotal == 0 && p.snapshot.TotalSize > 0 && !pl.plannedRange.Contains(k) {
		p.mu.Unlock()
		goto replan
	}
	p.snapshot = p.snapshot.WithLoadState(pagingcore.Success())
	p.feed.Publish(p.snapshot)
	p.mu.Unlock()
}

// beginPlan computes the fetch plan, evicts the cache, and (if the
// queue is non-empty) transitions to Loading and publishes once. It
// returns true for queueEmpty when there is nothing to fetch.
func (p *Pager[T]) beginPlan(k int, dir direction) (plan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]int, 0, len(p.snapshot.Values))
	for key := range p.snapshot.Values {
		keys = append(keys, key)
	}
	pl := buildPlan(k, dir, p.snapshot.TotalSize, keys, p.cfg)
	p.currentPlannedRange = pl.plannedRange

	evicted := evictOutsideWindow(p.snapshot.Values, pl.cacheWindow)
	p.snapshot = p.snapshot.WithValues(p.snapshot.TotalSize, evicted)

	if len(pl.queue) == 0 {
		// Nothing to fetch: the plan completes immediately. Publishing
		// Success here also clears any lingering Loading left behind by a
		// superseded loader.
		p.snapshot = p.snapshot.WithLoadState(pagingcore.Success())
		p.feed.Publish(p.snapshot)
		return pl, true
	}

	p.snapshot = p.snapshot.WithLoadState(pagingcore.LoadingState())
	p.feed.Publish(p.snapshot)
	return pl, false
}

// mergePortionLocked merges one portion into the snapshot: a
// disagreeing total size makes the source authoritative and replaces
// values outright; otherwise portion values are merged in. The cache
// window filter is re-applied on every emission.
func (p *Pager[T]) mergePortionLocked(portion pagingsource.Portion[T], cacheWindow rangeset.Range) {
	var merged map[int]T
	totalSize := p.snapshot.TotalSize
	if portion.TotalSize != p.snapshot.TotalSize {
		totalSize = portion.TotalSize
		merged = make(map[int]T, len(portion.Values))
		for k, v := range portion.Values {
			merged[k] = v
		}
	} else {
		merged = make(map[int]T, len(p.snapshot.Values)+len(portion.Values))
		for k, v := range p.snapshot.Values {
			merged[k] = v
		}
		for k, v := range portion.Values {
			merged[k] = v
		}
	}
	merged = evictOutsideWindow(merged, cacheWindow)
	p.snapshot = p.snapshot.WithValues(totalSize, merged)
}

func (p *Pager[T]) clearCurrentLoad(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentLoad != nil && p.currentLoad.done == done {
		p.currentLoad = nil
		p.currentPlannedRange = rangeset.Empty()
	}
}

func evictOutsideWindow[T any](values map[int]T, window rangeset.Range) map[int]T {
	out := make(map[int]T, len(values))
	for k, v := range values {
		if window.Contains(k) {
			out[k] = v
		}
	}
	return out
}
