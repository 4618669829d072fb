package pager

import (
	"sort"

	"github.com/joeycumines/go-paging/rangeset"
)

// direction is a plain comparison of the new access key against the
// previous last-read key; the first-ever call is treated as
// increasing.
type direction int

const (
	increasing direction = iota
	decreasing
)

// plan is the result of the planning algorithm, computed once per
// loader under the Pager's mutex.
type plan struct {
	plannedRange rangeset.Range
	cacheWindow  rangeset.Range
	queue        []rangeset.Range
}

// computeDataRange picks the contiguous run of positions in keys that
// contains the key nearest the arithmetic mean of all keys. Note this
// can under-detect loaded runs when the map is sparse and the mean
// falls in a gap; only the run around the mean-nearest key is
// considered already loaded.
func computeDataRange(keys []int) rangeset.Range {
	if len(keys) == 0 {
		return rangeset.Empty()
	}
	sorted := append([]int(nil), keys...)
	sort.Ints(sorted)

	sum := 0
	for _, k := range sorted {
		sum += k
	}
	mean := sum / len(sorted)

	idx := sort.SearchInts(sorted, mean)
	center := nearest(sorted, idx, mean)

	set := make(map[int]struct{}, len(sorted))
	for _, k := range sorted {
		set[k] = struct{}{}
	}

	first, last := center, center
	for {
		if _, ok := set[first-1]; !ok {
			break
		}
		first--
	}
	for {
		if _, ok := set[last+1]; !ok {
			break
		}
		last++
	}
	return rangeset.New(first, last)
}

func nearest(sorted []int, idx, target int) int {
	if idx <= 0 {
		return sorted[0]
	}
	if idx >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	before, after := sorted[idx-1], sorted[idx]
	if target-before <= after-target {
		return before
	}
	return after
}

// buildPlan computes the planned range, cache window, and prioritized
// fetch queue for an access at k, given the current total size and
// materialized keys.
func buildPlan(k int, dir direction, totalSize int, keys []int, cfg Config) plan {
	limit := totalSize
	if limit < 1 {
		limit = 1
	}
	coerced := clamp(k, 0, limit-1)

	var plannedRange rangeset.Range
	if totalSize > 0 {
		plannedRange = rangeset.CoerceIn(
			rangeset.New(coerced-cfg.PreloadSize, coerced+cfg.PreloadSize-1),
			rangeset.New(0, totalSize-1),
		)
	} else {
		plannedRange = rangeset.New(0, cfg.LoadSize-1)
	}

	cacheWindow := rangeset.New(coerced-cfg.CacheSize, coerced+cfg.CacheSize)

	dataRange := computeDataRange(keys)

	half := cfg.LoadSize / 2
	primaryChunk := rangeset.ExpandTo(
		rangeset.CoerceIn(rangeset.New(coerced-half, coerced-half+cfg.LoadSize-1), plannedRange),
		cfg.LoadSize,
		plannedRange.Last,
	)

	var beforeRaw, afterRaw []rangeset.Range
	if before := rangeset.New(plannedRange.First, primaryChunk.First-1); !before.IsEmpty() {
		beforeRaw = rangeset.Subtract(before, dataRange)
	}
	if after := rangeset.New(primaryChunk.Last+1, plannedRange.Last); !after.IsEmpty() {
		afterRaw = rangeset.Subtract(after, dataRange)
	}

	extendEdges(beforeRaw, plannedRange, cfg.LoadSize)
	extendEdges(afterRaw, plannedRange, cfg.LoadSize)

	var prioritizedChunks []rangeset.Range
	for _, r := range rangeset.Subtract(primaryChunk, dataRange) {
		prioritizedChunks = append(prioritizedChunks, rangeset.Chunked(r, cfg.LoadSize)...)
	}

	var beforeChunks, afterChunks []rangeset.Range
	for _, r := range beforeRaw {
		beforeChunks = append(beforeChunks, rangeset.Chunked(r, cfg.LoadSize)...)
	}
	for _, r := range afterRaw {
		afterChunks = append(afterChunks, rangeset.Chunked(r, cfg.LoadSize)...)
	}

	var tail []rangeset.Range
	if dir == increasing {
		tail = append(append(tail, afterChunks...), beforeChunks...)
	} else {
		tail = append(append(tail, beforeChunks...), afterChunks...)
	}
	sort.SliceStable(tail, func(i, j int) bool {
		return abs(tail[i].First-k) < abs(tail[j].First-k)
	})

	queue := append(append([]rangeset.Range(nil), prioritizedChunks...), tail...)

	return plan{plannedRange: plannedRange, cacheWindow: cacheWindow, queue: queue}
}

// extendEdges widens any piece touching plannedRange.First or
// plannedRange.Last that is narrower than loadSize, moving its outer
// endpoint (First at the left edge, Last at the right edge) so the
// width becomes loadSize; a left-edge piece's First is clamped to 0.
// This amortizes small leftover edge pieces into a full load.
func extendEdges(pieces []rangeset.Range, plannedRange rangeset.Range, loadSize int) {
	for i, r := range pieces {
		if r.Width() >= loadSize {
			continue
		}
		if r.First == plannedRange.First {
			newFirst := r.Last - loadSize + 1
			if newFirst < 0 {
				newFirst = 0
			}
			pieces[i] = rangeset.New(newFirst, r.Last)
			continue
		}
		if r.Last == plannedRange.Last {
			pieces[i] = rangeset.New(r.First, r.First+loadSize-1)
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
