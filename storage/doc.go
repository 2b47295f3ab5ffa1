// Package storage defines the persistence interfaces for bookmarks, chunks,
// entities and entity-bookmark links, plus the serialization helpers shared
// by backends.
//
// Repositories are grouped per aggregate. All implementations must be safe
// for concurrent use; the pipeline and the enrichment workers hit them from
// multiple goroutines. Status transitions on bookmarks go through
// compare-and-swap (UpdateStatus) so concurrent deliveries of the same
// message cannot double-run a pipeline stage.
package storage
