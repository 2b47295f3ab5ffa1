package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

// BookmarkRepository implements storage.BookmarkRepository for BadgerDB.
type BookmarkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.BookmarkRepository = (*BookmarkRepository)(nil)

// NewBookmarkRepository creates a new BookmarkRepository.
func NewBookmarkRepository(backend *Backend) (*BookmarkRepository, error) {
	idSeq, err := backend.GetSequence(bookmarkIDSeq)
	if err != nil {
		return nil, err
	}

	return &BookmarkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *BookmarkRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *BookmarkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddBookmarks adds one or more bookmarks to storage.
func (r *BookmarkRepository) AddBookmarks(ctx context.Context, bookmarks ...*core.Bookmark) ([]*core.Bookmark, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, bookmark := range bookmarks {
			// (UserId, URL) is unique per user
			urlKey := makeBookmarkURLKey(bookmark.UserId, bookmark.URL)
			if _, err := tx.Get(urlKey); err == nil {
				return storage.ErrDuplicateKey
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if bookmark.Id == 0 {
				nextID, err := r.idSeq.Next()
				if err != nil {
					return err
				}
				// BadgerDB sequences can return 0 on first call, so we skip it
				if nextID == 0 {
					nextID, err = r.idSeq.Next()
					if err != nil {
						return err
					}
				}
				bookmark.Id = core.ID(nextID)
			}

			if bookmark.Status == 0 {
				bookmark.Status = core.BookmarkStatusPending
			}
			bookmark.InsertedAt = time.Now().UTC()
			bookmark.UpdatedAt = bookmark.InsertedAt

			if err := writeBookmark(tx, bookmark); err != nil {
				return err
			}

			if err := tx.Set(urlKey, storage.MarshalID(bookmark.Id)); err != nil {
				return err
			}

			userKey := makeBookmarkUserKey(bookmark.UserId, bookmark.Id)
			if err := tx.Set(userKey, storage.MarshalID(bookmark.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return bookmarks, err
}

// UpdateBookmarks updates existing bookmarks.
func (r *BookmarkRepository) UpdateBookmarks(ctx context.Context, bookmarks ...*core.Bookmark) ([]*core.Bookmark, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, bookmark := range bookmarks {
			old, err := readBookmark(tx, makeBookmarkKey(bookmark.Id))
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			bookmark.UpdatedAt = time.Now().UTC()

			if err := writeBookmark(tx, bookmark); err != nil {
				return err
			}

			// Update URL index if the URL changed
			if old.URL != bookmark.URL || old.UserId != bookmark.UserId {
				if err := tx.Delete(makeBookmarkURLKey(old.UserId, old.URL)); err != nil {
					return err
				}
				newURLKey := makeBookmarkURLKey(bookmark.UserId, bookmark.URL)
				if err := tx.Set(newURLKey, storage.MarshalID(bookmark.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return bookmarks, err
}

// DeleteBookmarks removes bookmarks by their IDs.
func (r *BookmarkRepository) DeleteBookmarks(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeBookmarkKey(id)

			bookmark, err := readBookmark(tx, key)
			if err != nil {
				return err
			}
			if bookmark == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(makeBookmarkURLKey(bookmark.UserId, bookmark.URL)); err != nil {
				return err
			}
			if err := tx.Delete(makeBookmarkUserKey(bookmark.UserId, id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetBookmark retrieves a single bookmark by ID.
func (r *BookmarkRepository) GetBookmark(ctx context.Context, id core.ID) (*core.Bookmark, error) {
	var result *core.Bookmark
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readBookmark(tx, makeBookmarkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// FindByUserAndURL retrieves the bookmark a user saved for a URL.
func (r *BookmarkRepository) FindByUserAndURL(ctx context.Context, userID core.ID, url string) (*core.Bookmark, error) {
	var result *core.Bookmark
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBookmarkURLKey(userID, url))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var bookmarkID core.ID
		err = item.Value(func(val []byte) error {
			bookmarkID, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return err
		}

		result, err = readBookmark(tx, makeBookmarkKey(bookmarkID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListByUser retrieves all bookmarks belonging to a user, ordered by ID.
func (r *BookmarkRepository) ListByUser(ctx context.Context, userID core.ID) ([]*core.Bookmark, error) {
	var results []*core.Bookmark
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialBookmarkUserKey(userID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var bookmarkID core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				bookmarkID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			bookmark, err := readBookmark(tx, makeBookmarkKey(bookmarkID))
			if err != nil {
				return err
			}
			if bookmark != nil {
				results = append(results, bookmark)
			}
		}
		return nil
	}, false)
	return results, err
}

// UpdateStatus transitions a bookmark's status with compare-and-swap semantics.
func (r *BookmarkRepository) UpdateStatus(ctx context.Context, id core.ID, from, to core.BookmarkStatus) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		bookmark, err := readBookmark(tx, makeBookmarkKey(id))
		if err != nil {
			return err
		}
		if bookmark == nil {
			return storage.ErrNotFound
		}
		if bookmark.Status != from {
			return storage.ErrStatusConflict
		}

		bookmark.Status = to
		bookmark.UpdatedAt = time.Now().UTC()
		if to != core.BookmarkStatusFailed {
			bookmark.ErrorMessage = ""
		}

		if err := writeBookmark(tx, bookmark); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AdvanceBookmark persists a bookmark's fields and its from->to status
// transition in one write. The stored status is the one compared, so a
// lagging worker whose in-memory copy went stale cannot overwrite a
// concurrent worker's progress.
func (r *BookmarkRepository) AdvanceBookmark(ctx context.Context, bookmark *core.Bookmark, from, to core.BookmarkStatus) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		stored, err := readBookmark(tx, makeBookmarkKey(bookmark.Id))
		if err != nil {
			return err
		}
		if stored == nil {
			return storage.ErrNotFound
		}
		if stored.Status != from {
			return storage.ErrStatusConflict
		}

		bookmark.Status = to
		bookmark.UpdatedAt = time.Now().UTC()
		if to != core.BookmarkStatusFailed {
			bookmark.ErrorMessage = ""
		}
		// The extraction guard only ever moves to true
		bookmark.EntitiesExtracted = bookmark.EntitiesExtracted || stored.EntitiesExtracted

		if err := writeBookmark(tx, bookmark); err != nil {
			return err
		}

		if stored.URL != bookmark.URL || stored.UserId != bookmark.UserId {
			if err := tx.Delete(makeBookmarkURLKey(stored.UserId, stored.URL)); err != nil {
				return err
			}
			newURLKey := makeBookmarkURLKey(bookmark.UserId, bookmark.URL)
			if err := tx.Set(newURLKey, storage.MarshalID(bookmark.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// SetFailed forces a bookmark to the failed status and records the message.
func (r *BookmarkRepository) SetFailed(ctx context.Context, id core.ID, message string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		bookmark, err := readBookmark(tx, makeBookmarkKey(id))
		if err != nil {
			return err
		}
		if bookmark == nil {
			return storage.ErrNotFound
		}

		bookmark.Status = core.BookmarkStatusFailed
		bookmark.ErrorMessage = message
		bookmark.UpdatedAt = time.Now().UTC()

		if err := writeBookmark(tx, bookmark); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// MarkEntitiesExtracted sets the EntitiesExtracted guard flag.
func (r *BookmarkRepository) MarkEntitiesExtracted(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		bookmark, err := readBookmark(tx, makeBookmarkKey(id))
		if err != nil {
			return err
		}
		if bookmark == nil {
			return storage.ErrNotFound
		}
		if bookmark.EntitiesExtracted {
			return nil
		}

		bookmark.EntitiesExtracted = true
		bookmark.UpdatedAt = time.Now().UTC()

		if err := writeBookmark(tx, bookmark); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// writeBookmark stores a bookmark's primary record.
func writeBookmark(tx *badger.Txn, bookmark *core.Bookmark) error {
	value, err := storage.MarshalBookmark(bookmark)
	if err != nil {
		return err
	}
	return tx.Set(makeBookmarkKey(bookmark.Id), value)
}

// readBookmark reads a bookmark from the transaction. Missing keys yield nil.
func readBookmark(tx *badger.Txn, key []byte) (*core.Bookmark, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var bookmark *core.Bookmark
	err = item.Value(func(val []byte) error {
		var err error
		bookmark, err = storage.UnmarshalBookmark(val)
		return err
	})
	return bookmark, err
}
