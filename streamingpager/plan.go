package streamingpager

import (
	"math"
	"sort"

	"github.com/joeycumines/go-paging/rangeset"
)

// targetPlan is the result of the window-adjustment algorithm,
// computed once per stable access event under the mutex.
type targetPlan struct {
	chunks           []rangeset.Range
	window           rangeset.Range
	center           rangeset.Range
	directionForward bool
}

// computeTargetChunks computes the direction, window, and the
// backward/center/forward chunk sequence for an access at k.
func computeTargetChunks(k, lastReadKey int, hasLastReadKey bool, totalSize int, activeRanges []rangeset.Range, cfg Config) targetPlan {
	directionForward := !hasLastReadKey || k > lastReadKey

	if totalSize == 0 {
		center := rangeset.New(0, cfg.LoadSize-1)
		return targetPlan{chunks: []rangeset.Range{center}, window: center, center: center, directionForward: directionForward}
	}

	bounds := rangeset.New(0, totalSize-1)
	windowUnaligned := rangeset.CoerceIn(rangeset.New(k-cfg.PreloadSize, k+cfg.PreloadSize), bounds)

	baseStart := rangeset.AlignedChunkStart(k, 0, cfg.LoadSize)
	bestDist := -1
	for _, r := range activeRanges {
		if !rangeset.Intersects(r, windowUnaligned) {
			continue
		}
		d := abs(r.First - k)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			baseStart = r.First
		}
	}

	center := rangeset.AlignedChunkContaining(k, baseStart, cfg.LoadSize, totalSize)
	window := rangeset.CoerceIn(rangeset.New(center.First-cfg.PreloadSize, center.Last+cfg.PreloadSize), bounds)

	var forward []rangeset.Range
	for start := center.Last + 1; start <= window.Last; start += cfg.LoadSize {
		end := start + cfg.LoadSize - 1
		if end > totalSize-1 {
			end = totalSize - 1
		}
		forward = append(forward, rangeset.New(start, end))
	}

	var backward []rangeset.Range
	for start := center.First - cfg.LoadSize; start >= window.First; start -= cfg.LoadSize {
		end := start + cfg.LoadSize - 1
		backward = append(backward, rangeset.New(start, end))
	}
	for i, j := 0, len(backward)-1; i < j; i, j = i+1, j-1 {
		backward[i], backward[j] = backward[j], backward[i]
	}

	chunks := make([]rangeset.Range, 0, len(backward)+1+len(forward))
	chunks = append(chunks, backward...)
	chunks = append(chunks, center)
	chunks = append(chunks, forward...)

	return targetPlan{chunks: chunks, window: window, center: center, directionForward: directionForward}
}

// sortToOpen applies a direction-biased ordering that opens chunks in
// the travel direction first and backfills the opposite side last,
// using each chunk's position in the backward/center/forward sequence
// (rather than its raw distance in positions) as the signed delta from
// the anchor.
func sortToOpen(toOpen []rangeset.Range, pl targetPlan, k int) []rangeset.Range {
	anchorIdx := 0
	for i, c := range pl.chunks {
		if c.Contains(k) {
			anchorIdx = i
			break
		}
	}
	indexOf := make(map[rangeset.Range]int, len(pl.chunks))
	for i, c := range pl.chunks {
		indexOf[c] = i
	}

	sorted := append([]rangeset.Range(nil), toOpen...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i], indexOf, anchorIdx, pl.directionForward) < sortKey(sorted[j], indexOf, anchorIdx, pl.directionForward)
	})
	return sorted
}

func sortKey(r rangeset.Range, indexOf map[rangeset.Range]int, anchorIdx int, directionForward bool) int {
	const half = math.MaxInt / 2
	delta := indexOf[r] - anchorIdx
	switch {
	case directionForward && delta >= 0:
		return delta
	case directionForward && delta < 0:
		return half + abs(delta)
	case !directionForward && delta <= 0:
		return abs(delta)
	default:
		return half + delta
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
