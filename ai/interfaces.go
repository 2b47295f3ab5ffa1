package ai

import (
	"context"

	"github.com/poiesic/shelfmark/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer produces a short prose summary of page content.
// Implementations must be thread-safe for concurrent use.
type Summarizer interface {
	// Summarize generates a summary for the given page title and markdown.
	Summarize(ctx context.Context, title, markdown string) (string, error)
}

// EntityExtractor finds media entity mentions (books, movies, TV shows)
// in text. Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes text and returns the media entities it
	// mentions, each with a confidence score, a context snippet, and any
	// year/author/director/language hints present near the mention.
	// Returns an empty slice if no entities are found.
	ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, error)
}

// Disambiguator resolves ambiguous catalog candidates in a single batched
// call. Implementations must be thread-safe for concurrent use.
type Disambiguator interface {
	// Disambiguate picks the best candidate for each request, or none.
	// A transport or decoding failure fails the whole batch; callers are
	// responsible for marking every affected entity failed.
	Disambiguate(ctx context.Context, requests []DisambiguationRequest) ([]DisambiguationDecision, error)
}

// ExtractedEntity is one media entity mention identified in text.
type ExtractedEntity struct {
	// Type is the media category of the mention.
	Type core.EntityType

	// Name is the entity name as written in the text.
	Name string

	// Confidence is the extractor's certainty in [0, 1].
	Confidence float64

	// ContextSnippet is the sentence or phrase surrounding the mention.
	ContextSnippet string

	// Hints are disambiguation signals mined at extraction time.
	Hints core.ExtractionHints
}

// DisambiguationRequest describes one ambiguous entity and its candidates.
type DisambiguationRequest struct {
	EntityID   core.ID
	Name       string
	Type       core.EntityType
	Hints      core.ExtractionHints
	Candidates []core.Candidate
}

// DisambiguationDecision is the model's verdict for one entity.
type DisambiguationDecision struct {
	EntityID core.ID

	// SelectedExternalID names the chosen candidate; empty means the model
	// declined to pick one.
	SelectedExternalID string

	// Confidence is the model's certainty in [0, 1].
	Confidence float64

	// Reasoning is the model's explanation, kept for manual review of
	// ambiguous outcomes.
	Reasoning string
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages the service
// instances, ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Summarizer returns the page summarization service.
	Summarizer() Summarizer

	// EntityExtractor returns the entity mention extraction service.
	EntityExtractor() EntityExtractor

	// Disambiguator returns the candidate disambiguation service.
	Disambiguator() Disambiguator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
