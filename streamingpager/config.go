package streamingpager

import (
	"time"

	"github.com/joeycumines/go-paging/telemetry"
)

// Config configures a StreamingPager. All fields default as documented
// when left at their zero value; New panics if a resulting value would
// be non-positive.
type Config struct {
	// LoadSize is the nominal width of each chunk-aligned subscription.
	// Defaults to 20.
	LoadSize int
	// PreloadSize is the half-width of the range the planner tries to
	// keep subscribed on each side of the access position. Defaults to
	// 60.
	PreloadSize int
	// CacheSize is the half-width of the retention window applied to
	// merged values on every portion emission. Defaults to 100.
	CacheSize int
	// CloseThreshold is how far beyond the active window a subscribed
	// range must drift before it is closed. Defaults to LoadSize.
	CloseThreshold int
	// KeyDebounceMs is the debounce window, in milliseconds, applied to
	// access events. Defaults to 300.
	KeyDebounceMs int
	// Logger receives debug/warn/error events. Defaults to
	// telemetry.Discard{}.
	Logger telemetry.Logger
}

func (c Config) withDefaults() Config {
	if c.LoadSize == 0 {
		c.LoadSize = 20
	}
	if c.PreloadSize == 0 {
		c.PreloadSize = 60
	}
	if c.CacheSize == 0 {
		c.CacheSize = 100
	}
	if c.CloseThreshold == 0 {
		c.CloseThreshold = c.LoadSize
	}
	if c.KeyDebounceMs == 0 {
		c.KeyDebounceMs = 300
	}
	if c.Logger == nil {
		c.Logger = telemetry.Discard{}
	}
	if c.LoadSize <= 0 || c.PreloadSize < 0 || c.CacheSize < 0 || c.CloseThreshold < 0 || c.KeyDebounceMs < 0 {
		panic(`streamingpager: invalid config: LoadSize must be positive, PreloadSize/CacheSize/CloseThreshold/KeyDebounceMs must be non-negative`)
	}
	return c
}

func (c Config) debounce() time.Duration {
	return time.Duration(c.KeyDebounceMs) * time.Millisecond
}
