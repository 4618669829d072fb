// Package telemetry is the ambient logging seam shared by pager,
// streamingpager, and mediator. It exposes a minimal Logger interface
// (three leveled methods plus field chaining) with a zero-cost Discard
// default, and a Logiface adapter wired to
// github.com/joeycumines/logiface backed by
// github.com/joeycumines/stumpy.
package telemetry
