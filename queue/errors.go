package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrSourceRequired is returned when no message source is provided.
	ErrSourceRequired = errors.New("message source is required")

	// ErrEnqueuerRequired is returned when no enqueuer is provided.
	ErrEnqueuerRequired = errors.New("message enqueuer is required")

	// ErrPipelineRequired is returned when no ingestion pipeline is provided.
	ErrPipelineRequired = errors.New("ingestion pipeline is required")

	// ErrExtractorRequired is returned when no entity extractor is provided.
	ErrExtractorRequired = errors.New("entity extractor is required")

	// ErrEnricherRequired is returned when no enricher is provided.
	ErrEnricherRequired = errors.New("enricher is required")

	// ErrBookmarkRepositoryRequired is returned when no bookmark repository is provided.
	ErrBookmarkRepositoryRequired = errors.New("bookmark repository is required")
)
