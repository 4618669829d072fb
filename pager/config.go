package pager

import (
	"time"

	"github.com/joeycumines/go-paging/telemetry"
)

// debounce is the fixed access-event debounce interval.
const debounce = 300 * time.Millisecond

// Config configures a Pager. All fields default as documented when
// left at their zero value; New panics if a resulting value would be
// non-positive.
type Config struct {
	// LoadSize is the target chunk width. Defaults to 20.
	LoadSize int
	// PreloadSize is the half-width of the window the planner tries to
	// have loaded on each side of the access position. Defaults to 60.
	PreloadSize int
	// CacheSize is the half-width of the retention window; values
	// outside it are evicted on every plan. Defaults to 100.
	CacheSize int
	// Logger receives a Debug event when an in-flight load is
	// superseded and an Error event when a load fails. Defaults to
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
	if c.Logger == nil {
		c.Logger = telemetry.Discard{}
	}
	if c.LoadSize <= 0 || c.PreloadSize < 0 || c.CacheSize < 0 {
		panic(`pager: invalid config: LoadSize must be positive, PreloadSize and CacheSize must be non-negative`)
	}
	return c
}
