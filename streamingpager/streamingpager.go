package streamingpager

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

// StreamingPager is the push-source windowed loader. Like Pager, an
// instance belongs to exactly one subscription lifecycle.
type StreamingPager[T any] struct {
	cfg    Config
	source pagingsource.StreamingSource[T]
	signal *accesssignal.Signal
	feed   *snapshotfeed.Feed[*pagingcore.Snapshot[T]]

	totalRetry chan struct{}

	mu             sync.Mutex
	snapshot       *pagingcore.Snapshot[T]
	lastReadKey    int
	hasLastReadKey bool
	activeStreams  *orderedMap[rangeset.Range, *streamHandle]
	rangeStates    *orderedMap[rangeset.Range, rangeState]
}

type streamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a StreamingPager reading from source, using cfg (zero
// values take the documented defaults).
func New[T any](source pagingsource.StreamingSource[T], cfg Config) *StreamingPager[T] {
	if source == nil {
		panic(`streamingpager: nil source`)
	}
	cfg = cfg.withDefaults()

	sp := &StreamingPager[T]{
		cfg:           cfg,
		source:        source,
		signal:        accesssignal.New(cfg.debounce()),
		totalRetry:    make(chan struct{}, 1),
		activeStreams: newOrderedMap[rangeset.Range, *streamHandle](),
		rangeStates:   newOrderedMap[rangeset.Range, rangeState](),
	}
	sp.snapshot = pagingcore.New[T](0, map[int]T{}, pagingcore.Success(), sp.access, sp.retry)
	sp.feed = snapshotfeed.New(sp.snapshot)
	return sp
}

// Subscribe starts the StreamingPager's background tasks (the access
// scheduler and the total-size side channel) and returns a stream of
// snapshots. All background work started by this call is cancelled
// when ctx is done.
func (sp *StreamingPager[T]) Subscribe(ctx context.Context) <-chan *pagingcore.Snapshot[T] {
	go sp.signal.Run(ctx, func(k int) { sp.onStableKey(ctx, k) })
	go sp.runTotalLoop(ctx)
	return sp.feed.Subscribe(ctx)
}

func (sp *StreamingPager[T]) access(position int) {
	sp.signal.Push(position)
}

// retry serves both purposes of the snapshot's retry callback: it
// restarts the total-size subscription if it is in its sticky error
// state, and it drives a fresh planning cycle around position, which
// naturally re-opens any previously-errored range still within the
// window.
func (sp *StreamingPager[T]) retry(position int) {
	select {
	case sp.totalRetry <- struct{}{}:
	default:
	}
	sp.signal.Push(position)
}

// runTotalLoop runs the total-size side channel and its
// sticky-error/retry recovery.
func (sp *StreamingPager[T]) runTotalLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if sp.consumeTotalStream(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-sp.totalRetry:
		}
	}
}

// consumeTotalStream runs one attempt of the total-size subscription.
// It returns true if ctx ended the attempt (caller should stop), false
// if the source errored and a retry should be awaited.
func (sp *StreamingPager[T]) consumeTotalStream(ctx context.Context) bool {
	ch := sp.source.ReadTotal(ctx)
	for res := range ch {
		if ctx.Err() != nil {
			return true
		}
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) {
				return true
			}
			sp.mu.Lock()
			sp.snapshot = sp.snapshot.WithLoadState(pagingcore.ErrorState(res.Err, -1))
			sp.feed.Publish(sp.snapshot)
			sp.mu.Unlock()
			sp.cfg.Logger.WithError(res.Err).Error(`streamingpager: total-size stream failed`)
			return false
		}
		sp.onNewTotal(ctx, res.Total)
	}
	return ctx.Err() != nil
}

// onNewTotal applies a changed total: it trims the snapshot's values
// to the new bound, cancels streams that now reach past the end, and
// re-aligns the window when the last read key falls off it.
func (sp *StreamingPager[T]) onNewTotal(ctx context.Context, newTotal int) {
	sp.mu.Lock()

	if newTotal == sp.snapshot.TotalSize {
		sp.mu.Unlock()
		return
	}

	values := make(map[int]T, len(sp.snapshot.Values))
	for k, v := range sp.snapshot.Values {
		if k >= 0 && k < newTotal {
			values[k] = v
		}
	}
	sp.snapshot = sp.snapshot.WithValues(newTotal, values)
	sp.feed.Publish(sp.snapshot)

	var toCancel []*streamHandle
	for _, r := range append([]rangeset.Range(nil), sp.activeStreams.Keys()...) {
		if r.Last >= newTotal {
			h, _ := sp.activeStreams.Get(r)
			toCancel = append(toCancel, h)
			sp.activeStreams.Delete(r)
			sp.rangeStates.Delete(r)
		}
	}

	shouldRealign := sp.hasLastReadKey && sp.lastReadKey > newTotal
	sp.mu.Unlock()

	for _, h := range toCancel {
		h.cancel()
	}
	if shouldRealign {
		sp.signal.Push(newTotal)
	}
}

// onStableKey runs the window-adjustment algorithm, invoked once per
// debounced, distinct access key.
func (sp *StreamingPager[T]) onStableKey(ctx context.Context, k int) {
	if k < 0 {
		return
	}

	sp.mu.Lock()

	pl := computeTargetChunks(k, sp.lastReadKey, sp.hasLastReadKey, sp.snapshot.TotalSize, append([]rangeset.Range(nil), sp.activeStreams.Keys()...), sp.cfg)

	var toClose []*streamHandle
	for _, r := range append([]rangeset.Range(nil), sp.activeStreams.Keys()...) {
		if h, ok := sp.activeStreams.Get(r); ok && rangeset.DistanceBeyond(pl.window, r) > sp.cfg.CloseThreshold {
			toClose = append(toClose, h)
			sp.activeStreams.Delete(r)
			sp.rangeStates.Delete(r)
		}
	}

	var toOpen []rangeset.Range
	for _, r := range pl.chunks {
		if !sp.activeStreams.Has(r) {
			toOpen = append(toOpen, r)
			sp.rangeStates.Set(r, loadingState())
		}
	}
	sp.snapshot = sp.snapshot.WithLoadState(aggregate(sp.rangeStates))
	sp.feed.Publish(sp.snapshot)

	sp.lastReadKey, sp.hasLastReadKey = k, true

	sp.mu.Unlock()

	for _, h := range toClose {
		h.cancel()
	}

	sorted := sortToOpen(toOpen, pl, k)
	for _, r := range sorted {
		rangeCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		sp.mu.Lock()
		sp.activeStreams.Set(r, &streamHandle{cancel: cancel, done: done})
		sp.mu.Unlock()
		go sp.runPortionStream(rangeCtx, cancel, r, done)
	}
}

// runPortionStream consumes one chunk-aligned portion subscription,
// merging each emission into the snapshot until the stream ends.
func (sp *StreamingPager[T]) runPortionStream(ctx context.Context, cancel context.CancelFunc, r rangeset.Range, done chan struct{}) {
	defer close(done)
	defer sp.finishStream(r, done)
	defer cancel()

	ch := sp.source.ReadPortion(ctx, r.First, r.Width())
	for res := range ch {
		if ctx.Err() != nil {
			return
		}
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) {
				return
			}
			sp.mu.Lock()
			if sp.activeStreams.Has(r) {
				sp.rangeStates.Set(r, errorState(res.Err))
				sp.snapshot = sp.snapshot.WithLoadState(aggregate(sp.rangeStates))
				sp.feed.Publish(sp.snapshot)
			}
			sp.mu.Unlock()
			sp.cfg.Logger.WithField(`range`, r).WithError(res.Err).Error(`streamingpager: portion stream failed`)
			return
		}

		sp.mu.Lock()
		merged := make(map[int]T, len(sp.snapshot.Values)+len(res.Values))
		for k, v := range sp.snapshot.Values {
			merged[k] = v
		}
		for k, v := range res.Values {
			merged[k] = v
		}
		window := rangeset.New(sp.lastReadKey-sp.cfg.CacheSize, sp.lastReadKey+sp.cfg.CacheSize)
		merged = evictOutsideWindow(merged, window)
		sp.snapshot = sp.snapshot.WithValues(sp.snapshot.TotalSize, merged)
		if sp.activeStreams.Has(r) {
			sp.rangeStates.Set(r, successState())
		}
		sp.snapshot = sp.snapshot.WithLoadState(aggregate(sp.rangeStates))
		sp.feed.Publish(sp.snapshot)
		sp.mu.Unlock()
	}
}

// finishStream removes r from the active stream registry once its
// background task exits, for any reason. This cleanup always runs,
// cancelled or not, so the registry stays consistent.
func (sp *StreamingPager[T]) finishStream(r rangeset.Range, done chan struct{}) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if h, ok := sp.activeStreams.Get(r); ok && h.done == done {
		sp.activeStreams.Delete(r)
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
