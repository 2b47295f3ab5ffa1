// Package queue connects message delivery to the processing pipeline.
//
// A Source delivers batches of messages with per-message acknowledgement and
// at-least-once semantics; Memory is the in-process implementation used by
// tests and the single-process worker. The Dispatcher fans a batch out over a
// bounded worker pool, acks or nacks each message individually, and collects
// the users whose entities need enrichment; after the batch drains it
// enqueues one enrichment message per flagged user, so the enrichment run
// itself is delivered at-least-once.
package queue
