package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (*EntityRepository, error) {
	return &EntityRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EntityRepository has no resources to release.
func (r *EntityRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EntityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddEntities adds one or more entities to storage.
func (r *EntityRepository) AddEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entity := range entities {
			// Use content-based ID if not set
			if entity.Id == 0 {
				entity.Id = core.IDFromContent(entity.Tuple())
			}

			entity.InsertedAt = time.Now().UTC()
			entity.UpdatedAt = entity.InsertedAt

			if err := writeEntity(tx, entity); err != nil {
				return err
			}

			tupleKey := makeEntityTupleKey(entity.UserId, entity.Type, entity.NormalizedName)
			if err := tx.Set(tupleKey, storage.MarshalID(entity.Id)); err != nil {
				return err
			}

			userKey := makeEntityUserKey(entity.UserId, entity.Id)
			if err := tx.Set(userKey, storage.MarshalID(entity.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entities, err
}

// UpdateEntities updates existing entities.
func (r *EntityRepository) UpdateEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entity := range entities {
			old, err := readEntity(tx, makeEntityKey(entity.Id))
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			entity.UpdatedAt = time.Now().UTC()

			if err := writeEntity(tx, entity); err != nil {
				return err
			}

			// Update tuple index if the identity changed
			if old.NormalizedName != entity.NormalizedName || old.Type != entity.Type || old.UserId != entity.UserId {
				oldTupleKey := makeEntityTupleKey(old.UserId, old.Type, old.NormalizedName)
				if err := tx.Delete(oldTupleKey); err != nil {
					return err
				}
				newTupleKey := makeEntityTupleKey(entity.UserId, entity.Type, entity.NormalizedName)
				if err := tx.Set(newTupleKey, storage.MarshalID(entity.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return entities, err
}

// DeleteEntities removes entities by their IDs.
func (r *EntityRepository) DeleteEntities(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntityKey(id)

			entity, err := readEntity(tx, key)
			if err != nil {
				return err
			}
			if entity == nil {
				return storage.ErrNotFound
			}

			tupleKey := makeEntityTupleKey(entity.UserId, entity.Type, entity.NormalizedName)
			if err := tx.Delete(tupleKey); err != nil {
				return err
			}
			if err := tx.Delete(makeEntityUserKey(entity.UserId, id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves a single entity by ID.
func (r *EntityRepository) GetEntity(ctx context.Context, id core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, makeEntityKey(id))
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

// GetEntities retrieves multiple entities by their IDs.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	var result []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	}, false)
	return result, err
}

// FindByTuple finds an entity by its (user, type, normalized name) tuple.
func (r *EntityRepository) FindByTuple(ctx context.Context, userID core.ID, entityType core.EntityType, normalizedName string) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntityTupleKey(userID, entityType, normalizedName))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var entityID core.ID
		err = item.Value(func(val []byte) error {
			entityID, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return err
		}

		result, err = readEntity(tx, makeEntityKey(entityID))
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

// GetOrCreateEntity finds or creates an entity by its tuple.
func (r *EntityRepository) GetOrCreateEntity(ctx context.Context, entity *core.Entity) (*core.Entity, bool, error) {
	existing, err := r.FindByTuple(ctx, entity.UserId, entity.Type, entity.NormalizedName)
	if err == nil {
		return existing, false, nil
	}
	if err != storage.ErrNotFound {
		return nil, false, err
	}

	added, err := r.AddEntities(ctx, entity)
	if err != nil {
		// A concurrent caller may have created it between lookup and insert
		existing, findErr := r.FindByTuple(ctx, entity.UserId, entity.Type, entity.NormalizedName)
		if findErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}

	return added[0], true, nil
}

// ListByUser retrieves all entities belonging to a user, ordered by ID.
func (r *EntityRepository) ListByUser(ctx context.Context, userID core.ID) ([]*core.Entity, error) {
	var results []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialEntityUserKey(userID)
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

			entity, err := readEntity(tx, makeEntityKey(entityID))
			if err != nil {
				return err
			}
			if entity != nil {
				results = append(results, entity)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListByUserAndStatus retrieves a user's entities in the given status.
func (r *EntityRepository) ListByUserAndStatus(ctx context.Context, userID core.ID, status core.EntityStatus) ([]*core.Entity, error) {
	entities, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := entities[:0]
	for _, entity := range entities {
		if entity.Status == status {
			filtered = append(filtered, entity)
		}
	}
	return filtered, nil
}

// writeEntity stores an entity's primary record.
func writeEntity(tx *badger.Txn, entity *core.Entity) error {
	value, err := storage.MarshalEntity(entity)
	if err != nil {
		return err
	}
	return tx.Set(makeEntityKey(entity.Id), value)
}

// readEntity reads an entity from the transaction. Missing keys yield nil.
func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var err error
		entity, err = storage.UnmarshalEntity(val)
		return err
	})
	return entity, err
}
