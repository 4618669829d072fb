// Package pager implements a pull-based windowed loader: on-demand
// loading triggered by consumer access to item positions, with access
// debounce, directional priority, a single in-flight load, and bounded
// positional cache eviction.
//
// Every background loader owns a context.Context; a superseded loader
// is cancelled cooperatively rather than forcibly stopped, and the
// mutex-guarded critical sections never call out to user code.
package pager
