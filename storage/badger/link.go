package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

// LinkRepository implements storage.LinkRepository for BadgerDB.
type LinkRepository struct {
	backend *Backend
}

var _ storage.LinkRepository = (*LinkRepository)(nil)

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(backend *Backend) (*LinkRepository, error) {
	return &LinkRepository{
		backend: backend,
	}, nil
}

// Close releases resources. LinkRepository has no resources to release.
func (r *LinkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *LinkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateLink stores an entity-bookmark link. Linking an already linked pair
// keeps the original link untouched.
func (r *LinkRepository) CreateLink(ctx context.Context, link *core.EntityBookmarkLink) (bool, error) {
	created := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLinkKey(link.EntityId, link.BookmarkId)
		if _, err := tx.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		link.InsertedAt = time.Now().UTC()

		value, err := storage.MarshalLink(link)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}

		reverseKey := makeLinkBookmarkKey(link.BookmarkId, link.EntityId)
		if err := tx.Set(reverseKey, storage.MarshalID(link.EntityId)); err != nil {
			return err
		}

		created = true
		return tx.Commit()
	}, true)

	return created, err
}

// ListByEntity retrieves all links for an entity.
func (r *LinkRepository) ListByEntity(ctx context.Context, entityID core.ID) ([]*core.EntityBookmarkLink, error) {
	var results []*core.EntityBookmarkLink
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialLinkKey(entityID)
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var link *core.EntityBookmarkLink
			err := iter.Item().Value(func(val []byte) error {
				var err error
				link, err = storage.UnmarshalLink(val)
				return err
			})
			if err != nil {
				return err
			}
			if link != nil {
				results = append(results, link)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListByBookmark retrieves all links for a bookmark via the reverse index.
func (r *LinkRepository) ListByBookmark(ctx context.Context, bookmarkID core.ID) ([]*core.EntityBookmarkLink, error) {
	var results []*core.EntityBookmarkLink
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialLinkBookmarkKey(bookmarkID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entityID core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entityID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			link, err := readLink(tx, makeLinkKey(entityID, bookmarkID))
			if err != nil {
				return err
			}
			if link != nil {
				results = append(results, link)
			}
		}
		return nil
	}, false)
	return results, err
}

// DeleteByEntity removes all links for an entity, including reverse index keys.
func (r *LinkRepository) DeleteByEntity(ctx context.Context, entityID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialLinkKey(entityID)
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)

		var links []*core.EntityBookmarkLink
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var link *core.EntityBookmarkLink
			err := iter.Item().Value(func(val []byte) error {
				var err error
				link, err = storage.UnmarshalLink(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			if link != nil {
				links = append(links, link)
			}
		}
		iter.Close()

		for _, link := range links {
			if err := tx.Delete(makeLinkKey(link.EntityId, link.BookmarkId)); err != nil {
				return err
			}
			if err := tx.Delete(makeLinkBookmarkKey(link.BookmarkId, link.EntityId)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readLink reads a link from the transaction. Missing keys yield nil.
func readLink(tx *badger.Txn, key []byte) (*core.EntityBookmarkLink, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var link *core.EntityBookmarkLink
	err = item.Value(func(val []byte) error {
		var err error
		link, err = storage.UnmarshalLink(val)
		return err
	})
	return link, err
}
