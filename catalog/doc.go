// Package catalog defines the external media catalog abstraction used by
// entity enrichment.
//
// A Provider searches one external catalog (Open Library for books, TMDB for
// movies and TV shows) and returns raw candidates. The Registry routes each
// entity type to its provider. WithRetry wraps transient search failures with
// exponential backoff, honoring server-supplied Retry-After hints.
package catalog
