package storage

import (
	"context"

	"github.com/poiesic/shelfmark/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// BookmarkRepository provides operations for managing bookmarks.
type BookmarkRepository interface {
	Repository

	// AddBookmarks adds one or more bookmarks to storage.
	// For bookmarks with ID=0, generates new IDs from sequence.
	// Sets InsertedAt timestamp and the pending status if not already set.
	// Returns ErrDuplicateKey if a bookmark with the same (UserId, URL)
	// already exists.
	AddBookmarks(ctx context.Context, bookmarks ...*core.Bookmark) ([]*core.Bookmark, error)

	// UpdateBookmarks updates existing bookmarks.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any bookmark doesn't exist.
	UpdateBookmarks(ctx context.Context, bookmarks ...*core.Bookmark) ([]*core.Bookmark, error)

	// DeleteBookmarks removes bookmarks by their IDs.
	// Also removes associated indices.
	// Returns ErrNotFound if any bookmark doesn't exist.
	DeleteBookmarks(ctx context.Context, ids ...core.ID) error

	// GetBookmark retrieves a single bookmark by ID.
	// Returns ErrNotFound if the bookmark doesn't exist.
	GetBookmark(ctx context.Context, id core.ID) (*core.Bookmark, error)

	// FindByUserAndURL retrieves the bookmark a user saved for a URL.
	// Returns ErrNotFound if no such bookmark exists.
	FindByUserAndURL(ctx context.Context, userID core.ID, url string) (*core.Bookmark, error)

	// ListByUser retrieves all bookmarks belonging to a user, ordered by ID.
	ListByUser(ctx context.Context, userID core.ID) ([]*core.Bookmark, error)

	// UpdateStatus transitions a bookmark's status with compare-and-swap
	// semantics. Returns ErrStatusConflict if the current status is not from,
	// ErrNotFound if the bookmark doesn't exist.
	UpdateStatus(ctx context.Context, id core.ID, from, to core.BookmarkStatus) error

	// AdvanceBookmark persists a bookmark's fields together with the
	// from->to status transition in a single write, compare-and-swapping on
	// the stored status. Nothing is written when the stored status is not
	// from; ErrStatusConflict is returned instead. On success the passed
	// bookmark carries the new status.
	AdvanceBookmark(ctx context.Context, bookmark *core.Bookmark, from, to core.BookmarkStatus) error

	// SetFailed forces a bookmark to the failed status from any state and
	// records the failure message.
	SetFailed(ctx context.Context, id core.ID, message string) error

	// MarkEntitiesExtracted sets the EntitiesExtracted guard flag.
	MarkEntitiesExtracted(ctx context.Context, id core.ID) error
}

// ChunkRepository provides operations for managing content chunks.
type ChunkRepository interface {
	Repository

	// ReplaceChunks atomically replaces all chunks for a bookmark. Old chunks
	// and their embeddings are deleted; the new chunks are stored with dense
	// positions as given. IDs are derived from bookmark, position and content.
	ReplaceChunks(ctx context.Context, bookmarkID core.ID, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunksByBookmark retrieves all chunks for a bookmark, ordered by
	// position.
	GetChunksByBookmark(ctx context.Context, bookmarkID core.ID) ([]*core.Chunk, error)

	// UpdateChunks updates existing chunks, typically to attach embeddings.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// DeleteByBookmark removes all chunks for a bookmark.
	DeleteByBookmark(ctx context.Context, bookmarkID core.ID) error
}

// EntityRepository provides operations for managing media entities.
type EntityRepository interface {
	Repository

	// AddEntities adds one or more entities to storage.
	// Uses content-based IDs (IDFromContent of the entity tuple).
	// Sets InsertedAt timestamp if not already set.
	AddEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error)

	// UpdateEntities updates existing entities.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any entity doesn't exist.
	UpdateEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error)

	// DeleteEntities removes entities by their IDs.
	// Returns ErrNotFound if any entity doesn't exist.
	DeleteEntities(ctx context.Context, ids ...core.ID) error

	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing entities).
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// FindByTuple finds an entity by its (user, type, normalized name) tuple.
	// Returns ErrNotFound if no matching entity exists.
	FindByTuple(ctx context.Context, userID core.ID, entityType core.EntityType, normalizedName string) (*core.Entity, error)

	// GetOrCreateEntity finds or creates an entity by its tuple. The boolean
	// reports whether a new entity was created.
	// Thread-safe: handles concurrent creation attempts.
	GetOrCreateEntity(ctx context.Context, entity *core.Entity) (*core.Entity, bool, error)

	// ListByUser retrieves all entities belonging to a user, ordered by ID.
	ListByUser(ctx context.Context, userID core.ID) ([]*core.Entity, error)

	// ListByUserAndStatus retrieves a user's entities in the given status.
	ListByUserAndStatus(ctx context.Context, userID core.ID, status core.EntityStatus) ([]*core.Entity, error)
}

// LinkRepository provides operations for entity-bookmark links.
type LinkRepository interface {
	Repository

	// CreateLink stores a link between an entity and a bookmark. Creation is
	// idempotent: linking the same pair again is a no-op that keeps the
	// original link. The boolean reports whether a new link was created.
	CreateLink(ctx context.Context, link *core.EntityBookmarkLink) (bool, error)

	// ListByEntity retrieves all links for an entity.
	ListByEntity(ctx context.Context, entityID core.ID) ([]*core.EntityBookmarkLink, error)

	// ListByBookmark retrieves all links for a bookmark.
	ListByBookmark(ctx context.Context, bookmarkID core.ID) ([]*core.EntityBookmarkLink, error)

	// DeleteByEntity removes all links for an entity.
	DeleteByEntity(ctx context.Context, entityID core.ID) error
}
