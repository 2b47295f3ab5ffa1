package core

import (
	"encoding/binary"
	"strings"
	"time"
	"unicode"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// BookmarkStatus tracks a bookmark's progress through the ingestion pipeline.
type BookmarkStatus int

const (
	// BookmarkStatusPending means the bookmark was saved but not yet fetched.
	BookmarkStatusPending BookmarkStatus = iota + 1
	// BookmarkStatusMarkdownReady means the page was fetched and converted to markdown.
	BookmarkStatusMarkdownReady
	// BookmarkStatusContentReady means the summary was generated.
	BookmarkStatusContentReady
	// BookmarkStatusChunksReady means chunks were generated and persisted.
	BookmarkStatusChunksReady
	// BookmarkStatusDone means every chunk has an embedding.
	BookmarkStatusDone
	// BookmarkStatusFailed means a pipeline stage failed; ErrorMessage holds the cause.
	BookmarkStatusFailed
)

// String returns the status name used in logs and serialized records.
func (s BookmarkStatus) String() string {
	switch s {
	case BookmarkStatusPending:
		return "pending"
	case BookmarkStatusMarkdownReady:
		return "markdown_ready"
	case BookmarkStatusContentReady:
		return "content_ready"
	case BookmarkStatusChunksReady:
		return "chunks_ready"
	case BookmarkStatusDone:
		return "done"
	case BookmarkStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Bookmark represents one saved URL for one user.
// It is created at save time and mutated exclusively by the pipeline stages.
// (UserId, URL) is unique per user.
type Bookmark struct {
	Id                ID
	UserId            ID
	URL               string
	Title             string
	Markdown          string // Raw extracted page content
	Summary           string // LLM-generated summary (populated by the summarize stage)
	Status            BookmarkStatus
	ErrorMessage      string            // Set when Status is failed
	EntitiesExtracted bool              // Guard: entity extraction already ran for this bookmark
	Metadata          map[string]string // Page metadata captured at fetch time (description, site name, ...)
	InsertedAt        time.Time
	UpdatedAt         time.Time
}

// Chunk is one token-bounded unit of a bookmark's content.
// Chunks for a bookmark are fully replaced on every chunk-stage run,
// so Position is always contiguous from 0.
type Chunk struct {
	Id             ID
	BookmarkId     ID
	Content        string // Includes the "Section: ..." breadcrumb header
	Position       int    // 0-based, dense, stable ordering within the bookmark
	TokenCount     int
	BreadcrumbPath string
	Vector         []float32 // Embedding; nil means pending embedding
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// EntityType discriminates the media catalogs an entity can resolve against.
type EntityType string

const (
	EntityTypeBook   EntityType = "book"
	EntityTypeMovie  EntityType = "movie"
	EntityTypeTVShow EntityType = "tv_show"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeBook, EntityTypeMovie, EntityTypeTVShow:
		return true
	}
	return false
}

// EntityStatus tracks an entity's progress through enrichment.
type EntityStatus int

const (
	// EntityStatusPending means the entity was extracted but not yet searched.
	EntityStatusPending EntityStatus = iota + 1
	// EntityStatusCandidatesFound means catalog candidates are cached on the entity.
	EntityStatusCandidatesFound
	// EntityStatusEnriched means the entity resolved to canonical external metadata.
	EntityStatusEnriched
	// EntityStatusAmbiguous means disambiguation could not pick a candidate.
	EntityStatusAmbiguous
	// EntityStatusFailed means search or disambiguation failed for this entity.
	EntityStatusFailed
)

// String returns the status name used in logs and serialized records.
func (s EntityStatus) String() string {
	switch s {
	case EntityStatusPending:
		return "pending"
	case EntityStatusCandidatesFound:
		return "candidates_found"
	case EntityStatusEnriched:
		return "enriched"
	case EntityStatusAmbiguous:
		return "ambiguous"
	case EntityStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Candidate is one raw result from a catalog search, cached verbatim on the
// entity so a later enrichment run can resume without re-querying the catalog.
type Candidate struct {
	Type       EntityType
	ExternalID string
	Title      string
	Year       int
	Authors    []string // Books
	Directors  []string // Movies
	Creators   []string // TV shows
	Language   string
	Popularity float64 // Movie/TV relevance signal; 0 when the provider has none
	ImageURL   string  // Cover or poster URL
}

// SearchCandidates is the cached result of the enrichment search phase.
// Its presence (with status candidates_found) is the resumability checkpoint.
type SearchCandidates struct {
	Provider   string
	SearchedAt time.Time
	Candidates []Candidate
}

// Entity represents one media entity per (UserId, Type, NormalizedName).
type Entity struct {
	Id               ID
	UserId           ID
	Type             EntityType
	Name             string
	NormalizedName   string // Dedup key: lowercased, punctuation-stripped, whitespace-collapsed
	ExternalID       string // Set once enriched
	Status           EntityStatus
	Metadata         Metadata          // Tagged union, see metadata.go; nil until enrichment concludes
	SearchCandidates *SearchCandidates // Cached raw catalog results; nil until the search phase runs
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// Tuple returns the dedup key string "(userId,type,normalizedName)".
// It is used for generating deterministic entity IDs.
func (e *Entity) Tuple() string {
	return EntityTuple(e.UserId, e.Type, e.NormalizedName)
}

// EntityTuple builds the dedup key string for an entity identity.
func EntityTuple(userID ID, entityType EntityType, normalizedName string) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(userID.Hex())
	b.WriteByte(',')
	b.WriteString(string(entityType))
	b.WriteByte(',')
	b.WriteString(normalizedName)
	b.WriteByte(')')
	return b.String()
}

// Hex returns the ID as a fixed-width lowercase hex string. It is the
// textual form used in dedup tuples and wire payloads.
func (id ID) Hex() string {
	const digits = "0123456789abcdef"
	var buf [16]byte
	v := uint64(id)
	for i := 15; i >= 0; i-- {
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}

// ExtractionHints carries year/author/director/language signals mined when an
// entity mention is extracted. The zero value means no hints.
type ExtractionHints struct {
	Year     int
	Author   string
	Director string
	Language string
}

// Empty reports whether no hint field is set.
func (h ExtractionHints) Empty() bool {
	return h == ExtractionHints{}
}

// Merge fills unset fields of h from other, keeping existing values.
// Used to take the first non-empty hint found across all bookmarks
// mentioning an entity.
func (h ExtractionHints) Merge(other ExtractionHints) ExtractionHints {
	if h.Year == 0 {
		h.Year = other.Year
	}
	if h.Author == "" {
		h.Author = other.Author
	}
	if h.Director == "" {
		h.Director = other.Director
	}
	if h.Language == "" {
		h.Language = other.Language
	}
	return h
}

// EntityBookmarkLink joins an entity to a bookmark that mentions it.
// One row per (EntityId, BookmarkId); creation is idempotent.
type EntityBookmarkLink struct {
	EntityId       ID
	BookmarkId     ID
	ContextSnippet string
	Confidence     float64 // 0-1, from extraction
	Hints          ExtractionHints
	InsertedAt     time.Time
}

// NormalizeName canonicalizes an entity name for deduplication:
// lowercased, punctuation stripped, whitespace collapsed.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// Stripped entirely; "don't" and "dont" normalize identically.
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
