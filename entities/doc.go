// Package entities turns bookmark text into resolved media entities.
//
// Extraction finds book, movie and TV show mentions in a bookmark's summary,
// deduplicates them per user by normalized name, and links each mention back
// to the bookmark it came from. Enrichment then resolves pending entities
// against external catalogs: search candidates are cached on the entity,
// unambiguous results are enriched directly, and the rest go through a single
// batched disambiguation call. Every per-entity failure is isolated; one bad
// entity never blocks its siblings.
package entities
