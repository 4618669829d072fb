package mediator

import "github.com/joeycumines/go-paging/telemetry"

// StalePredicate reports whether a cached record should be treated as
// stale (and therefore excluded from local emissions and treated as
// missing).
type StalePredicate[T any] func(v T) bool

// Config configures a Mediator. All fields default as documented when
// left at their zero value; New panics if a resulting value would be
// non-positive.
type Config[T any] struct {
	// LoadSize, PrefetchSize, and CacheSize are forwarded to the
	// embedded per-query pager.Pager. Defaults: 20, 60, 100.
	LoadSize, PrefetchSize, CacheSize int
	// IsRecordStale excludes matching cached records from local
	// emissions and treats their positions as missing. Defaults to a
	// predicate that never reports stale.
	IsRecordStale StalePredicate[T]
	// Concurrency bounds parallel remote fetches for missing
	// sub-ranges. Defaults to 1.
	Concurrency int
	// FetchFullRangeOnMiss, if true, always fetches the whole requested
	// range in one call instead of computing gap ranges.
	FetchFullRangeOnMiss bool
	// EmitOutdatedRecords, if true, emits the raw local portion
	// (including stale entries) before the stale-filtered one.
	EmitOutdatedRecords bool
	// DisableIntermediateResults turns off per-range emission of remote
	// portions as they land. Left at its zero value (false), each
	// remote portion is emitted as it arrives whenever fetching is
	// effectively serial (concurrency == 1 or a single missing range);
	// with genuine parallel fetching, nothing is emitted until all
	// fetches complete regardless of this setting. Named as a negative
	// so the zero value means intermediate results are emitted.
	DisableIntermediateResults bool
	// Logger receives debug/warn/error events. Defaults to
	// telemetry.Discard{}.
	Logger telemetry.Logger
}

func (c Config[T]) withDefaults() Config[T] {
	if c.LoadSize == 0 {
		c.LoadSize = 20
	}
	if c.PrefetchSize == 0 {
		c.PrefetchSize = 60
	}
	if c.CacheSize == 0 {
		c.CacheSize = 100
	}
	if c.IsRecordStale == nil {
		c.IsRecordStale = func(T) bool { return false }
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.Logger == nil {
		c.Logger = telemetry.Discard{}
	}
	if c.LoadSize <= 0 || c.PrefetchSize < 0 || c.CacheSize < 0 || c.Concurrency < 1 {
		panic(`mediator: invalid config: LoadSize must be positive, PrefetchSize/CacheSize must be non-negative, Concurrency must be >= 1`)
	}
	return c
}
