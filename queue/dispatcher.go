// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/ingestion"
	"github.com/poiesic/shelfmark/storage"
)

// Enricher resolves a user's pending entities against the media catalogs.
// *entities.Enricher satisfies this.
type Enricher interface {
	EnrichUser(ctx context.Context, userID core.ID) error
}

// defaultBatchSize caps how many deliveries one Receive call returns.
const defaultBatchSize = 16

// Dispatcher consumes messages and fans them out over a bounded worker pool.
// Each message is acked or nacked individually; after a batch drains, one
// enrichment message is enqueued per user whose entities changed during the
// batch, so the enrichment run is itself covered by redelivery.
type Dispatcher struct {
	source    Source
	enqueuer  Enqueuer
	bookmarks storage.BookmarkRepository
	pipeline  *ingestion.Pipeline
	extractor ingestion.MentionExtractor
	enricher  Enricher

	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher) error

// WithConcurrency sets the worker pool size for message processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithConcurrency(size int) DispatcherOption {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		if d.pool != nil {
			d.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	}
}

// WithBatchSize caps how many deliveries are pulled per batch.
func WithBatchSize(size int) DispatcherOption {
	return func(d *Dispatcher) error {
		if size > 0 {
			d.batchSize = size
		}
		return nil
	}
}

// WithDispatcherLogger sets a custom logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}

// NewDispatcher creates a message dispatcher. The enqueuer publishes
// follow-up messages to the same queue the source consumes.
func NewDispatcher(
	source Source,
	enqueuer Enqueuer,
	bookmarks storage.BookmarkRepository,
	pipeline *ingestion.Pipeline,
	extractor ingestion.MentionExtractor,
	enricher Enricher,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerRequired
	}
	if bookmarks == nil {
		return nil, ErrBookmarkRepositoryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		source:    source,
		enqueuer:  enqueuer,
		bookmarks: bookmarks,
		pipeline:  pipeline,
		extractor: extractor,
		enricher:  enricher,
		pool:      pool,
		batchSize: defaultBatchSize,
		logger:    slog.Default().With("component", "dispatcher"),
	}

	for _, opt := range opts {
		if optErr := opt(d); optErr != nil {
			d.Release()
			return nil, optErr
		}
	}
	return d, nil
}

// Run consumes batches until the context is cancelled or the source closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		batch, err := d.source.Receive(ctx, d.batchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		d.ProcessBatch(ctx, batch)
	}
}

// batchState accumulates batch-scoped results across worker goroutines.
type batchState struct {
	mu          sync.Mutex
	enrichUsers map[core.ID]struct{}
}

func (b *batchState) markUser(userID core.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enrichUsers == nil {
		b.enrichUsers = make(map[core.ID]struct{})
	}
	b.enrichUsers[userID] = struct{}{}
}

func (b *batchState) users() []core.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]core.ID, 0, len(b.enrichUsers))
	for userID := range b.enrichUsers {
		users = append(users, userID)
	}
	return users
}

// ProcessBatch handles one batch of deliveries with bounded parallelism,
// then enqueues one enrichment message per user the batch flagged. The
// enrichment work happens when that message is delivered, under the same
// ack/nack discipline as every other message.
func (d *Dispatcher) ProcessBatch(ctx context.Context, batch []Delivery) {
	if len(batch) == 0 {
		return
	}

	state := &batchState{}
	var wg sync.WaitGroup

	for _, delivery := range batch {
		wg.Add(1)
		submitErr := d.pool.Submit(func() {
			defer wg.Done()
			d.handle(ctx, delivery, state)
		})
		if submitErr != nil {
			wg.Done()
			d.logger.Error("failed to submit delivery", "err", submitErr)
			d.nack(ctx, delivery)
		}
	}
	wg.Wait()

	users := state.users()
	if len(users) == 0 {
		return
	}
	messages := make([]Message, 0, len(users))
	for _, userID := range users {
		messages = append(messages, Message{
			Type:   MessageTypeEntityEnrichment,
			UserID: userID,
		})
	}
	if err := d.enqueuer.Enqueue(ctx, messages...); err != nil {
		d.logger.Error("failed to enqueue enrichment", "users", len(users), "err", err)
	}
}

// handle processes one delivery. Domain failures are persisted by the
// handlers and acked; only storage-level errors nack for redelivery.
func (d *Dispatcher) handle(ctx context.Context, delivery Delivery, state *batchState) {
	message := delivery.Message

	var err error
	switch message.Type {
	case MessageTypeIngest, "":
		err = d.handleIngest(ctx, message, state)
	case MessageTypeEntityExtraction:
		err = d.handleExtraction(ctx, message, state)
	case MessageTypeEntityEnrichment:
		// Run here, not via the batch set: a storage error must nack so
		// the pending entities are retried.
		err = d.enricher.EnrichUser(ctx, message.UserID)
	default:
		// Unknown types are acked, not endlessly redelivered.
		d.logger.Warn("dropping message of unknown type", "type", message.Type)
	}

	if err != nil {
		d.logger.Error("message handling failed",
			"type", message.Type, "bookmark", message.BookmarkID,
			"attempt", delivery.Attempt, "err", err)
		d.nack(ctx, delivery)
		return
	}
	if ackErr := d.source.Ack(ctx, delivery); ackErr != nil {
		d.logger.Error("ack failed", "delivery", delivery.ID, "err", ackErr)
	}
}

func (d *Dispatcher) handleIngest(ctx context.Context, message Message, state *batchState) error {
	outcome, err := d.pipeline.Process(ctx, message.BookmarkID)
	if err != nil {
		return err
	}
	if outcome.NewEntities {
		state.markUser(message.UserID)
	}
	return nil
}

func (d *Dispatcher) handleExtraction(ctx context.Context, message Message, state *batchState) error {
	bookmark, err := d.bookmarks.GetBookmark(ctx, message.BookmarkID)
	if err != nil {
		return err
	}
	if bookmark.EntitiesExtracted {
		return nil
	}

	created, err := d.extractor.ExtractForBookmark(ctx, bookmark)
	if err != nil {
		return err
	}
	if err := d.bookmarks.MarkEntitiesExtracted(ctx, bookmark.Id); err != nil {
		return err
	}
	if created {
		state.markUser(bookmark.UserId)
	}
	return nil
}

func (d *Dispatcher) nack(ctx context.Context, delivery Delivery) {
	if err := d.source.Nack(ctx, delivery); err != nil {
		d.logger.Error("nack failed", "delivery", delivery.ID, "err", err)
	}
}

// Release releases the worker pool. The dispatcher must not be used after.
func (d *Dispatcher) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}
