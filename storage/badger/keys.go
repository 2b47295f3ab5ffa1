package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/shelfmark/core"
)

// Key prefixes for different data types
const (
	bookmarkPrefix        = "bkmrec"
	bookmarkURLPrefix     = "bkmurl"
	bookmarkUserPrefix    = "bkmusr"
	bookmarkIDSeq         = "bkmrecseq"
	chunkPrefix           = "chkrec"
	entityPrefix          = "entrec"
	entityTuplePrefix     = "enttup"
	entityUserPrefix      = "entusr"
	linkPrefix            = "lnkrec"
	linkBookmarkPrefix    = "lnkbkm"
)

// makeBookmarkKey generates a key for a bookmark by ID.
func makeBookmarkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", bookmarkPrefix, id))
}

// makeBookmarkURLKey generates a composite key for the (user, URL) unique index.
// Format: prefix:userID:url
func makeBookmarkURLKey(userID core.ID, url string) []byte {
	prefix := bookmarkURLPrefix + ":"
	buf := make([]byte, len(prefix)+8+len(url))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(userID))
	offset += 8
	copy(buf[offset:], url)
	return buf
}

// makeBookmarkUserKey generates a composite key for the per-user index.
// Format: prefix:userID:bookmarkID
func makeBookmarkUserKey(userID, bookmarkID core.ID) []byte {
	return makeCompositeKey(bookmarkUserPrefix, userID, uint64(bookmarkID))
}

// makePartialBookmarkUserKey generates a partial key for per-user scans.
func makePartialBookmarkUserKey(userID core.ID) []byte {
	return makePartialKey(bookmarkUserPrefix, userID)
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:bookmarkID:position
// BigEndian positions make prefix iteration yield chunks in order.
func makeChunkKey(bookmarkID core.ID, position int) []byte {
	return makeCompositeKey(chunkPrefix, bookmarkID, uint64(position))
}

// makePartialChunkKey generates a partial key for per-bookmark chunk scans.
func makePartialChunkKey(bookmarkID core.ID) []byte {
	return makePartialKey(chunkPrefix, bookmarkID)
}

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", entityPrefix, id))
}

// makeEntityTupleKey generates a key for entity lookup by dedup tuple.
func makeEntityTupleKey(userID core.ID, entityType core.EntityType, normalizedName string) []byte {
	prefix := entityTuplePrefix + ":"
	tuple := core.EntityTuple(userID, entityType, normalizedName)
	buf := make([]byte, len(prefix)+len(tuple))
	offset := copy(buf, prefix)
	copy(buf[offset:], tuple)
	return buf
}

// makeEntityUserKey generates a composite key for the per-user entity index.
// Format: prefix:userID:entityID
func makeEntityUserKey(userID, entityID core.ID) []byte {
	return makeCompositeKey(entityUserPrefix, userID, uint64(entityID))
}

// makePartialEntityUserKey generates a partial key for per-user entity scans.
func makePartialEntityUserKey(userID core.ID) []byte {
	return makePartialKey(entityUserPrefix, userID)
}

// makeLinkKey generates a composite key for an entity-bookmark link.
// Format: prefix:entityID:bookmarkID
func makeLinkKey(entityID, bookmarkID core.ID) []byte {
	return makeCompositeKey(linkPrefix, entityID, uint64(bookmarkID))
}

// makePartialLinkKey generates a partial key for per-entity link scans.
func makePartialLinkKey(entityID core.ID) []byte {
	return makePartialKey(linkPrefix, entityID)
}

// makeLinkBookmarkKey generates a composite key for the reverse link index.
// Format: prefix:bookmarkID:entityID
func makeLinkBookmarkKey(bookmarkID, entityID core.ID) []byte {
	return makeCompositeKey(linkBookmarkPrefix, bookmarkID, uint64(entityID))
}

// makePartialLinkBookmarkKey generates a partial key for per-bookmark link scans.
func makePartialLinkBookmarkKey(bookmarkID core.ID) []byte {
	return makePartialKey(linkBookmarkPrefix, bookmarkID)
}

// makeCompositeKey builds prefix:id:second with both numbers in BigEndian
// order so lexicographic sort matches numeric sort.
func makeCompositeKey(prefix string, id core.ID, second uint64) []byte {
	p := prefix + ":"
	buf := make([]byte, len(p)+16)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], second)
	return buf
}

// makePartialKey builds prefix:id for range scans over composite keys.
func makePartialKey(prefix string, id core.ID) []byte {
	p := prefix + ":"
	buf := make([]byte, len(p)+8)
	offset := copy(buf, p)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
