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

package reembed

import (
	"context"

	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to process per batch
	DefaultBatchSize = 100
)

// ChunkIterator walks a user's chunks, bookmark by bookmark, in batches.
type ChunkIterator struct {
	bookmarks storage.BookmarkRepository
	chunks    storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to hand to fn per call (must be > 0)
func NewChunkIterator(bookmarks storage.BookmarkRepository, chunks storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		bookmarks: bookmarks,
		chunks:    chunks,
		batchSize: batchSize,
	}
}

// Count returns the total number of chunks stored for a user.
func (it *ChunkIterator) Count(ctx context.Context, userID core.ID) (int, error) {
	bookmarks, err := it.bookmarks.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, bookmark := range bookmarks {
		chunks, err := it.chunks.GetChunksByBookmark(ctx, bookmark.Id)
		if err != nil {
			return 0, err
		}
		total += len(chunks)
	}
	return total, nil
}

// ForEach iterates over all of a user's chunks, calling fn for each batch.
// Iteration stops on first error from fn.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, userID core.ID, fn func([]*core.Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	bookmarks, err := it.bookmarks.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	var pending []*core.Chunk
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := pending
		pending = nil
		if err := fn(batch); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	for _, bookmark := range bookmarks {
		chunks, err := it.chunks.GetChunksByBookmark(ctx, bookmark.Id)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			pending = append(pending, chunk)
			if len(pending) >= it.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	return flush()
}
