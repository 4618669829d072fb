// Package rangeset implements pure, total functions over closed integer
// ranges: subtraction, chunking into fixed-size aligned pieces,
// intersection, distance, coercion, and alignment of a chunk to a base.
//
// Every function here is deterministic and side-effect free; none of
// them allocate more than the output requires, and none of them touch
// a clock, a mutex, or a data source. The paging components in this
// module (pager, streamingpager, mediator) build all of their planning
// decisions on top of these primitives.
package rangeset
