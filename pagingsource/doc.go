// Package pagingsource defines the data-source contracts consumed by
// pager, streamingpager, and mediator. Implementations of these
// interfaces (HTTP clients, database readers, in-memory test doubles)
// live outside this module.
package pagingsource
