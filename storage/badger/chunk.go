package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	return &ChunkRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// ReplaceChunks atomically replaces all chunks for a bookmark.
// Old chunks (and their embeddings) are deleted first so a re-chunked
// bookmark never mixes stale and fresh chunks.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, bookmarkID core.ID, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteChunksInTx(tx, bookmarkID); err != nil {
			return err
		}

		for _, chunk := range chunks {
			chunk.BookmarkId = bookmarkID
			if chunk.Id == 0 {
				chunk.Id = core.IDFromContent(fmt.Sprintf("(%d,%d,%s)", bookmarkID, chunk.Position, chunk.Content))
			}
			chunk.InsertedAt = time.Now().UTC()
			chunk.UpdatedAt = chunk.InsertedAt

			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(bookmarkID, chunk.Position), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// GetChunksByBookmark retrieves all chunks for a bookmark, ordered by position.
func (r *ChunkRepository) GetChunksByBookmark(ctx context.Context, bookmarkID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkKey(bookmarkID)
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// BigEndian position in the key makes this iteration position-ordered
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// UpdateChunks updates existing chunks, typically to attach embeddings.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.BookmarkId, chunk.Position)
			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}

			chunk.UpdatedAt = time.Now().UTC()

			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// DeleteByBookmark removes all chunks for a bookmark.
func (r *ChunkRepository) DeleteByBookmark(ctx context.Context, bookmarkID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteChunksInTx(tx, bookmarkID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// deleteChunksInTx removes every chunk key under the bookmark's prefix.
func deleteChunksInTx(tx *badger.Txn, bookmarkID core.ID) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialChunkKey(bookmarkID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
