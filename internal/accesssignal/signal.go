// Package accesssignal implements the latest-wins, debounced "last
// accessed position" primitive shared by pager.Pager and
// streamingpager.StreamingPager.
//
// A single goroutine owns all timer state, started by the caller
// (Run), and Push never blocks the caller.
package accesssignal

import (
	"context"
	"sync"
	"time"
)

// Signal collapses a burst of Push calls into a single debounced,
// distinct-until-changed delivery to a consumer-supplied function.
type Signal struct {
	debounce time.Duration

	mu       sync.Mutex
	value    int
	hasValue bool
	wake     chan struct{}
}

// New constructs a Signal with the given debounce interval. A
// non-positive debounce delivers on the next tick of the runtime timer
// (effectively immediately).
func New(debounce time.Duration) *Signal {
	return &Signal{debounce: debounce, wake: make(chan struct{}, 1)}
}

// Push records key as the latest access (latest-wins: if Push is
// called multiple times before Run delivers, only the most recent key
// is ever seen). Push never blocks.
func (s *Signal) Push(key int) {
	s.mu.Lock()
	s.value = key
	s.hasValue = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run delivers stable keys to deliver until ctx is done. It's intended
// to be run in its own goroutine, one per subscription; it returns
// when ctx.Done() fires. deliver is never called concurrently with
// itself, and never while any other component mutex is held.
func (s *Signal) Run(ctx context.Context, deliver func(key int)) {
	var timer *time.Timer
	var timerCh <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	lastDelivered := 0
	hasLast := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.wake:
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			key, ok := s.take()
			if !ok {
				continue
			}
			if hasLast && key == lastDelivered {
				continue
			}
			hasLast = true
			lastDelivered = key
			deliver(key)
		}
	}
}

func (s *Signal) take() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.value, s.hasValue
	s.hasValue = false
	return v, ok
}
