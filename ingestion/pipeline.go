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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/chunking"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/fetch"
	"github.com/poiesic/shelfmark/storage"
)

// MentionExtractor finds media entity mentions for a processed bookmark.
// It is invoked once per bookmark, after the summary is available.
type MentionExtractor interface {
	// ExtractForBookmark extracts and links entity mentions. The boolean
	// reports whether any new entity was created, which signals that the
	// user has entities awaiting enrichment.
	ExtractForBookmark(ctx context.Context, bookmark *core.Bookmark) (bool, error)
}

// Outcome reports what a pipeline run did, beyond the persisted status.
type Outcome struct {
	// NewEntities is true when entity extraction created at least one new
	// entity for the bookmark's user.
	NewEntities bool
}

// Pipeline orchestrates the processing of bookmarks through their stages.
type Pipeline struct {
	bookmarks storage.BookmarkRepository
	chunks    storage.ChunkRepository
	fetcher   fetch.Fetcher
	provider  ai.AIProvider
	chunker   *chunking.Chunker
	extractor MentionExtractor
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMentionExtractor enables entity mention extraction after the summarize
// stage. Without it the pipeline skips extraction entirely.
func WithMentionExtractor(extractor MentionExtractor) Option {
	return func(p *Pipeline) {
		p.extractor = extractor
	}
}

// NewPipeline creates a new bookmark processing pipeline.
func NewPipeline(
	bookmarks storage.BookmarkRepository,
	chunks storage.ChunkRepository,
	fetcher fetch.Fetcher,
	provider ai.AIProvider,
	chunker *chunking.Chunker,
	opts ...Option,
) (*Pipeline, error) {
	if bookmarks == nil {
		return nil, ErrBookmarkRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}

	p := &Pipeline{
		bookmarks: bookmarks,
		chunks:    chunks,
		fetcher:   fetcher,
		provider:  provider,
		chunker:   chunker,
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// stage is one step of the pipeline. run mutates the bookmark in memory; the
// pipeline persists the mutation and the from->to status transition.
type stage struct {
	name string
	from core.BookmarkStatus
	to   core.BookmarkStatus
	run  func(ctx context.Context, bookmark *core.Bookmark) error
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{"fetch", core.BookmarkStatusPending, core.BookmarkStatusMarkdownReady, p.runFetch},
		{"summarize", core.BookmarkStatusMarkdownReady, core.BookmarkStatusContentReady, p.runSummarize},
		{"chunk", core.BookmarkStatusContentReady, core.BookmarkStatusChunksReady, p.runChunk},
		{"embed", core.BookmarkStatusChunksReady, core.BookmarkStatusDone, p.runEmbed},
	}
}

// Process runs the bookmark through every remaining stage. Bookmarks already
// done or failed are left untouched. A stage failure persists the failed
// status with its cause and returns a nil error; the returned error is
// reserved for storage problems, which the caller should retry.
func (p *Pipeline) Process(ctx context.Context, bookmarkID core.ID) (*Outcome, error) {
	bookmark, err := p.bookmarks.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{}

	switch bookmark.Status {
	case core.BookmarkStatusDone:
		p.logger.Debug("bookmark already done", "bookmark", bookmarkID)
		return outcome, nil
	case core.BookmarkStatusFailed:
		p.logger.Debug("bookmark previously failed, skipping", "bookmark", bookmarkID)
		return outcome, nil
	}

	for _, s := range p.stages() {
		if bookmark.Status != s.from {
			continue
		}

		p.logger.Debug("running stage", "stage", s.name, "bookmark", bookmarkID)

		if err := s.run(ctx, bookmark); err != nil {
			message := fmt.Sprintf("%s: %v", s.name, err)
			p.logger.Warn("stage failed", "stage", s.name, "bookmark", bookmarkID, "err", err)
			if failErr := p.bookmarks.SetFailed(ctx, bookmarkID, message); failErr != nil {
				return nil, failErr
			}
			return outcome, nil
		}

		// Stage output and transition land in one compare-and-swapped
		// write; a lagging delivery must not clobber the worker ahead.
		if err := p.bookmarks.AdvanceBookmark(ctx, bookmark, s.from, s.to); err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				// Another worker advanced this bookmark; leave it to them.
				p.logger.Debug("status moved underneath us", "stage", s.name, "bookmark", bookmarkID)
				return outcome, nil
			}
			return nil, err
		}

		if s.name == "summarize" {
			created, err := p.extractMentions(ctx, bookmark)
			if err != nil {
				return nil, err
			}
			outcome.NewEntities = outcome.NewEntities || created
		}
	}

	p.logger.Info("bookmark processed", "bookmark", bookmarkID, "status", bookmark.Status)
	return outcome, nil
}

// extractMentions runs entity extraction once per bookmark. Extraction
// failures are logged and swallowed; they never fail the bookmark.
func (p *Pipeline) extractMentions(ctx context.Context, bookmark *core.Bookmark) (bool, error) {
	if p.extractor == nil || bookmark.EntitiesExtracted {
		return false, nil
	}

	created, err := p.extractor.ExtractForBookmark(ctx, bookmark)
	if err != nil {
		p.logger.Error("entity extraction failed", "bookmark", bookmark.Id, "err", err)
		return false, nil
	}

	if err := p.bookmarks.MarkEntitiesExtracted(ctx, bookmark.Id); err != nil {
		return false, err
	}
	bookmark.EntitiesExtracted = true
	return created, nil
}

func (p *Pipeline) runFetch(ctx context.Context, bookmark *core.Bookmark) error {
	result, err := p.fetcher.Fetch(ctx, bookmark.URL)
	if err != nil {
		return err
	}

	bookmark.Markdown = result.Markdown
	if result.Title != "" {
		bookmark.Title = result.Title
	}
	if len(result.Metadata) > 0 {
		bookmark.Metadata = result.Metadata
	}
	return nil
}

func (p *Pipeline) runSummarize(ctx context.Context, bookmark *core.Bookmark) error {
	summary, err := p.provider.Summarizer().Summarize(ctx, bookmark.Title, bookmark.Markdown)
	if err != nil {
		return err
	}
	bookmark.Summary = summary
	return nil
}

func (p *Pipeline) runChunk(ctx context.Context, bookmark *core.Bookmark) error {
	pieces := p.chunker.Chunk(bookmark.Markdown)

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			BookmarkId:     bookmark.Id,
			Content:        piece.Content,
			Position:       piece.Position,
			TokenCount:     piece.TokenCount,
			BreadcrumbPath: piece.BreadcrumbPath,
		}
	}

	// Replacing drops any chunks (and embeddings) from a previous run
	if _, err := p.chunks.ReplaceChunks(ctx, bookmark.Id, chunks...); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) runEmbed(ctx context.Context, bookmark *core.Bookmark) error {
	chunks, err := p.chunks.GetChunksByBookmark(ctx, bookmark.Id)
	if err != nil {
		return err
	}

	var pending []*core.Chunk
	for _, chunk := range chunks {
		if chunk.Vector == nil {
			pending = append(pending, chunk)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Content
	}

	vectors, err := p.provider.Embedder().EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pending))
	}

	for i, chunk := range pending {
		chunk.Vector = vectors[i]
	}
	if _, err := p.chunks.UpdateChunks(ctx, pending...); err != nil {
		return err
	}
	return nil
}
