// Package snapshotfeed implements a watchable latest-value channel: a
// single-producer, latest-wins publication primitive that readers
// subscribe to per-context, always observing the newest published
// value. A generation channel, closed and replaced on every publish,
// serves purely as the wake signal.
package snapshotfeed

import "context"

// Feed holds the latest value of T and lets any number of independent
// subscribers follow it as it is updated.
type Feed[T any] struct {
	mu    chan struct{} // 1-buffered, acts as a mutex
	value T
	gen   chan struct{}
}

// New constructs a Feed with an initial value.
func New[T any](initial T) *Feed[T] {
	f := &Feed[T]{mu: make(chan struct{}, 1), gen: make(chan struct{})}
	f.mu <- struct{}{}
	f.value = initial
	return f
}

// Publish replaces the current value and wakes every subscriber.
func (f *Feed[T]) Publish(v T) {
	<-f.mu
	f.value = v
	old := f.gen
	f.gen = make(chan struct{})
	f.mu <- struct{}{}
	close(old)
}

func (f *Feed[T]) load() (T, <-chan struct{}) {
	<-f.mu
	v, gen := f.value, f.gen
	f.mu <- struct{}{}
	return v, gen
}

// Subscribe returns a channel that immediately receives the current
// value, then receives every subsequent published value, until ctx is
// done (at which point the channel is closed). The channel is
// 1-buffered and conflating: values published while the subscriber
// goroutine is blocked on a send are skipped, so a slow reader does not
// see every intermediate value, but it may still receive up to two
// older values (the buffered one and the pending one) before the
// newest.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan T {
	out := make(chan T, 1)
	go func() {
		defer close(out)
		v, gen := f.load()
		for {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
			select {
			case <-gen:
				v, gen = f.load()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
