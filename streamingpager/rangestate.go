package streamingpager

import (
	"github.com/joeycumines/go-paging/pagingcore"
	"github.com/joeycumines/go-paging/rangeset"
)

// rangeState is the per-range load state of one chunk-aligned
// subscription.
type rangeState struct {
	status pagingcore.LoadStatus
	err    error
}

func loadingState() rangeState { return rangeState{status: pagingcore.StatusLoading} }
func successState() rangeState { return rangeState{status: pagingcore.StatusSuccess} }
func errorState(err error) rangeState {
	return rangeState{status: pagingcore.StatusError, err: err}
}

// aggregate derives the aggregate load state: any Loading wins
// outright; otherwise the first Error by iteration order; otherwise
// Success.
func aggregate(states *orderedMap[rangeset.Range, rangeState]) pagingcore.LoadState {
	var firstErr *rangeState
	var firstErrRange rangeset.Range
	sawLoading := false
	states.Range(func(k rangeset.Range, v rangeState) bool {
		switch v.status {
		case pagingcore.StatusLoading:
			sawLoading = true
			return false
		case pagingcore.StatusError:
			if firstErr == nil {
				cp := v
				firstErr = &cp
				firstErrRange = k
			}
		}
		return true
	})
	if sawLoading {
		return pagingcore.LoadingState()
	}
	if firstErr != nil {
		return pagingcore.ErrorState(firstErr.err, firstErrRange.First)
	}
	return pagingcore.Success()
}
