package chunking

import (
	"strings"

	"github.com/poiesic/shelfmark/token"
)

// Chunk is one finalized, embedding-ready unit of content.
type Chunk struct {
	Content        string // Header + overlap + packed content
	BreadcrumbPath string
	TokenCount     int // Recomputed on the final content string
	Position       int // 0-based index in final order
}

// Chunker splits markdown into bounded chunks. It is stateless and safe for
// concurrent use.
type Chunker struct {
	counter token.Counter
	config  Config
}

// NewChunker creates a chunker with the given token counter and config.
func NewChunker(counter token.Counter, cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{counter: counter, config: cfg}, nil
}

// Chunk splits markdown into ordered, labeled, token-bounded chunks.
// Given identical input and config the output is byte-identical.
func (c *Chunker) Chunk(markdown string) []Chunk {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	var raw []rawChunk
	for _, sec := range extractSections(markdown) {
		raw = append(raw, packSection(sec, c.counter, c.config)...)
	}

	applyOverlap(raw, c.counter, c.config)

	chunks := make([]Chunk, 0, len(raw))
	for i, rc := range raw {
		content := sectionHeader(rc.breadcrumb) + rc.content
		chunks = append(chunks, Chunk{
			Content:        content,
			BreadcrumbPath: rc.breadcrumb,
			TokenCount:     c.counter.Count(content),
			Position:       i,
		})
	}
	return chunks
}
