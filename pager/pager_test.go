package pager

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-paging/pagingcore"
	"github.com/joeycumines/go-paging/pagingsource"
	"github.com/joeycumines/go-paging/rangeset"
)

// checkNumGoroutines snapshots the goroutine count, returning a func
// that fails the test if the count has not returned to at most the
// baseline within timeout.
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	baseline := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for runtime.NumGoroutine() > baseline {
			if time.Now().After(deadline) {
				t.Errorf(`%d goroutines still running, want <= %d`, runtime.NumGoroutine(), baseline)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// memSource serves identity-valued ints ([position]=position) for a
// fixed total size, with optional one-shot failure injection for a
// specific chunk start.
type memSource struct {
	total int

	mu        sync.Mutex
	failOnce  map[int]bool
	callCount map[int]int
}

func newMemSource(total int) *memSource {
	return &memSource{total: total, failOnce: map[int]bool{}, callCount: map[int]int{}}
}

func (s *memSource) failFirstCallAt(start int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnce[start] = true
}

func (s *memSource) ReadData(ctx context.Context, position, size int) <-chan pagingsource.Result[int] {
	ch := make(chan pagingsource.Result[int], 1)

	s.mu.Lock()
	s.callCount[position]++
	shouldFail := s.failOnce[position] && s.callCount[position] == 1
	s.mu.Unlock()

	go func() {
		defer close(ch)
		if shouldFail {
			select {
			case ch <- pagingsource.Result[int]{Err: errors.New(`injected failure`)}:
			case <-ctx.Done():
			}
			return
		}
		values := make(map[int]int, size)
		for p := position; p < position+size && p < s.total; p++ {
			values[p] = p
		}
		select {
		case ch <- pagingsource.Result[int]{Portion: pagingsource.Portion[int]{TotalSize: s.total, Values: values}}:
		case <-ctx.Done():
		}
	}()

	return ch
}

// pollUntil drains snapshots until pred reports true, or fails the test
// after timeout. The debounce is a fixed 300ms, so timeout should be a
// generous multiple of that.
func pollUntil[T any](t *testing.T, ch <-chan *pagingcore.Snapshot[T], timeout time.Duration, pred func(*pagingcore.Snapshot[T]) bool) *pagingcore.Snapshot[T] {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal(`snapshot channel closed before condition was met`)
			}
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal(`timed out waiting for snapshot condition`)
			return nil
		}
	}
}

func isSuccessAfterAccess[T any](k int) func(*pagingcore.Snapshot[T]) bool {
	return func(s *pagingcore.Snapshot[T]) bool {
		if s.LoadState.Status != pagingcore.StatusSuccess {
			return false
		}
		_, loaded := s.Get(k).IsLoaded()
		return loaded
	}
}

func isErrorAt[T any](k int) func(*pagingcore.Snapshot[T]) bool {
	return func(s *pagingcore.Snapshot[T]) bool {
		return s.LoadState.Status == pagingcore.StatusError && s.LoadState.Key == k
	}
}

func TestPager_InitialAccess(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t) // should always clean up

	source := newMemSource(1000)
	p := New[int](source, Config{LoadSize: 20, PreloadSize: 60, CacheSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snapshots := p.Subscribe(ctx)

	first := <-snapshots // initial: Success, empty
	if first.TotalSize != 0 || !first.IsEmpty() {
		t.Fatalf(`expected an empty initial snapshot, got %+v`, first)
	}

	first.Get(50) // triggers access -> debounce -> plan

	final := pollUntil[int](t, snapshots, 2*time.Second, isSuccessAfterAccess[int](50))

	if v, ok := final.Get(50).IsLoaded(); !ok || v != 50 {
		t.Fatalf(`position 50 should be Loaded(50), got (%v, %v)`, v, ok)
	}
	if final.FirstKey() < 0 {
		t.Fatal(`expected a non-empty window`)
	}
	if final.LastKey() < 50 {
		t.Fatalf(`last key %d should be >= 50`, final.LastKey())
	}
	if len(final.Values) > 200 {
		t.Fatalf(`cache window exceeded: %d values`, len(final.Values))
	}
}

func TestPager_JumpChangesWindow(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t) // should always clean up

	source := newMemSource(1000)
	p := New[int](source, Config{LoadSize: 20, PreloadSize: 60, CacheSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snapshots := p.Subscribe(ctx)

	first := <-snapshots
	first.Get(50)
	_ = pollUntil[int](t, snapshots, 2*time.Second, isSuccessAfterAccess[int](50))

	first.Get(400)
	final := pollUntil[int](t, snapshots, 2*time.Second, isSuccessAfterAccess[int](400))

	if final.FirstKey() < 340 {
		t.Fatalf(`first key %d should be >= 340`, final.FirstKey())
	}
	if final.LastKey() > 459 {
		t.Fatalf(`last key %d should be < 460`, final.LastKey())
	}
}

func TestPager_ErrorThenRetry(t *testing.T) {
	source := newMemSource(1000)
	source.failFirstCallAt(190)

	p := New[int](source, Config{LoadSize: 20, PreloadSize: 60, CacheSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snapshots := p.Subscribe(ctx)

	first := <-snapshots
	first.Get(200)

	errSnap := pollUntil[int](t, snapshots, 2*time.Second, isErrorAt[int](200))

	// Retry with a distinct key: Retry(200) would be swallowed as a
	// non-change by the access debounce, so callers must retry at a
	// neighboring position.
	errSnap.Retry(201)

	final := pollUntil[int](t, snapshots, 2*time.Second, isSuccessAfterAccess[int](200))
	if v, ok := final.Get(200).IsLoaded(); !ok || v != 200 {
		t.Fatalf(`position 200 should be Loaded(200) after retry, got (%v, %v)`, v, ok)
	}
}

func TestComputeDataRange(t *testing.T) {
	tests := [...]struct {
		name  string
		keys  []int
		first int
		last  int
	}{
		{name: `empty`, keys: nil, first: 1, last: 0},
		{name: `single`, keys: []int{5}, first: 5, last: 5},
		{name: `contiguous`, keys: []int{10, 11, 12, 13}, first: 10, last: 13},
		{
			name:  `two runs picks the one nearest the mean`,
			keys:  []int{0, 1, 2, 100, 101, 102},
			first: 0,
			last:  2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := computeDataRange(tc.keys)
			if got.First != tc.first || got.Last != tc.last {
				t.Fatalf(`computeDataRange(%v) = [%d,%d], want [%d,%d]`, tc.keys, got.First, got.Last, tc.first, tc.last)
			}
		})
	}
}

func TestExtendEdges(t *testing.T) {
	t.Run(`left edge extends backward when room allows`, func(t *testing.T) {
		planned := rangeset.New(100, 999)
		pieces := []rangeset.Range{rangeset.New(100, 104)}
		extendEdges(pieces, planned, 20)
		if pieces[0].First != 85 || pieces[0].Last != 104 {
			t.Fatalf(`expected [85,104], got [%d,%d]`, pieces[0].First, pieces[0].Last)
		}
	})
	t.Run(`left edge at absolute zero cannot extend further`, func(t *testing.T) {
		planned := rangeset.New(0, 999)
		pieces := []rangeset.Range{rangeset.New(0, 4)}
		extendEdges(pieces, planned, 20)
		if pieces[0].First != 0 || pieces[0].Last != 4 {
			t.Fatalf(`expected [0,4] unchanged, got [%d,%d]`, pieces[0].First, pieces[0].Last)
		}
	})
	t.Run(`right edge extends forward`, func(t *testing.T) {
		planned := rangeset.New(0, 999)
		pieces := []rangeset.Range{rangeset.New(995, 999)}
		extendEdges(pieces, planned, 20)
		if pieces[0].First != 995 || pieces[0].Last != 1014 {
			t.Fatalf(`expected [995,1014], got [%d,%d]`, pieces[0].First, pieces[0].Last)
		}
	})
}

func TestBuildPlan_EmptyCacheUsesLoadSizeWindow(t *testing.T) {
	pl := buildPlan(0, increasing, 0, nil, Config{LoadSize: 20, PreloadSize: 60, CacheSize: 100}.withDefaults())
	if pl.plannedRange.First != 0 || pl.plannedRange.Last != 19 {
		t.Fatalf(`with totalSize=0, plannedRange should be [0,19], got [%d,%d]`, pl.plannedRange.First, pl.plannedRange.Last)
	}
	if len(pl.queue) == 0 {
		t.Fatal(`expected a non-empty fetch queue on first access`)
	}
}
