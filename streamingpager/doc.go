// Package streamingpager implements the push-source variant of the
// windowed loader: a set of chunk-aligned subscriptions opened and
// closed around the last accessed position, fed by independently live
// total-size and portion streams.
//
// The task-ownership and mutex-discipline idioms follow pager: every
// background subscription owns a context.Context, and the only
// critical sections under the shared mutex are planning and
// merge-and-publish.
package streamingpager
