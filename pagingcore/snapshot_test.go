package pagingcore

import "testing"

func TestSnapshotGetTriggersAccessExactlyOnce(t *testing.T) {
	var accessed []int
	s := New(10, map[int]string{3: `three`}, Success(), func(position int) {
		accessed = append(accessed, position)
	}, func(int) {})

	if v, ok := s.Get(3).IsLoaded(); !ok || v != `three` {
		t.Fatalf(`Get(3) = (%v, %v), want (three, true)`, v, ok)
	}
	if v, ok := s.Get(4).IsLoaded(); ok {
		t.Fatalf(`Get(4) should be Loading, got (%v, %v)`, v, ok)
	}
	if want := []int{3, 4}; !equalInts(accessed, want) {
		t.Fatalf(`accessed = %v, want %v`, accessed, want)
	}
}

func TestSnapshotGetBeyondTotalSizeIsLoading(t *testing.T) {
	s := New(5, map[int]string{}, Success(), func(int) {}, func(int) {})
	if _, ok := s.Get(100).IsLoaded(); ok {
		t.Fatal(`position beyond total size should be Loading`)
	}
}

func TestSnapshotRetryInvokesCallback(t *testing.T) {
	var got int
	called := false
	s := New[string](0, nil, Success(), func(int) {}, func(position int) {
		called = true
		got = position
	})
	s.Retry(42)
	if !called || got != 42 {
		t.Fatalf(`retry callback not invoked correctly: called=%v got=%d`, called, got)
	}
}

func TestSnapshotIsEmpty(t *testing.T) {
	s := New[string](0, nil, Success(), func(int) {}, func(int) {})
	if !s.IsEmpty() {
		t.Fatal(`total size 0 should be empty`)
	}
	s2 := New[string](1, nil, Success(), func(int) {}, func(int) {})
	if s2.IsEmpty() {
		t.Fatal(`total size 1 should not be empty`)
	}
}

func TestSnapshotFirstLastKey(t *testing.T) {
	empty := New[string](0, nil, Success(), func(int) {}, func(int) {})
	if empty.FirstKey() != -1 || empty.LastKey() != -1 {
		t.Fatalf(`empty snapshot should report sentinel -1, got first=%d last=%d`, empty.FirstKey(), empty.LastKey())
	}
	s := New(100, map[int]int{5: 5, 9: 9, 2: 2}, Success(), func(int) {}, func(int) {})
	if s.FirstKey() != 2 || s.LastKey() != 9 {
		t.Fatalf(`got first=%d last=%d, want 2, 9`, s.FirstKey(), s.LastKey())
	}
}

func TestMapSnapshotPreservesMetadata(t *testing.T) {
	retryCalled := false
	s := New(10, map[int]int{1: 1, 2: 2}, ErrorState(nil, 5), func(int) {}, func(int) { retryCalled = true })
	mapped := MapSnapshot(s, func(v int) string {
		if v == 1 {
			return `one`
		}
		return `other`
	})
	if mapped.TotalSize != s.TotalSize {
		t.Fatalf(`total size not preserved: %d != %d`, mapped.TotalSize, s.TotalSize)
	}
	if mapped.LoadState != s.LoadState {
		t.Fatalf(`load state not preserved: %+v != %+v`, mapped.LoadState, s.LoadState)
	}
	if v, ok := mapped.Values[1]; !ok || v != `one` {
		t.Fatalf(`value not transformed: %v, %v`, v, ok)
	}
	mapped.Retry(1)
	if !retryCalled {
		t.Fatal(`retry callback identity not preserved`)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
