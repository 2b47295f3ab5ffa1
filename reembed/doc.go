// Package reembed regenerates chunk embeddings with a new or updated
// embedding model.
//
// Chunks are processed in batches with progress tracking, retry with
// exponential backoff, and vector normalization for cosine similarity.
package reembed
