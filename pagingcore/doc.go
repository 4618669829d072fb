// Package pagingcore holds the immutable snapshot type and its
// supporting tagged-union state types, shared by pager, streamingpager,
// and mediator. Nothing in this package touches a clock, a mutex, or a
// data source; Snapshot values are plain immutable data plus two
// callbacks (access and retry) that notify an owning component.
package pagingcore
