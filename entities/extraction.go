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

package entities

import (
	"context"
	"log/slog"

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

// Extractor finds media entity mentions in processed bookmarks and persists
// them as deduplicated entities with bookmark links.
type Extractor struct {
	entities  storage.EntityRepository
	links     storage.LinkRepository
	extractor ai.EntityExtractor
	logger    *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorLogger sets a custom logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an entity mention extractor.
func NewExtractor(
	entities storage.EntityRepository,
	links storage.LinkRepository,
	extractor ai.EntityExtractor,
	opts ...ExtractorOption,
) (*Extractor, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if links == nil {
		return nil, ErrLinkRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	e := &Extractor{
		entities:  entities,
		links:     links,
		extractor: extractor,
		logger:    slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractForBookmark extracts entity mentions from the bookmark's summary and
// title, upserts the entities and links each mention to the bookmark. The
// boolean reports whether any new entity was created. Re-linking an already
// linked pair is a no-op; callers guard repeated extraction with the
// bookmark's EntitiesExtracted flag.
func (e *Extractor) ExtractForBookmark(ctx context.Context, bookmark *core.Bookmark) (bool, error) {
	text := bookmark.Summary
	if bookmark.Title != "" {
		text = bookmark.Title + "\n\n" + text
	}

	mentions, err := e.extractor.ExtractEntities(ctx, text)
	if err != nil {
		return false, err
	}
	if len(mentions) == 0 {
		e.logger.Debug("no entity mentions found", "bookmark", bookmark.Id)
		return false, nil
	}

	createdAny := false
	for _, mention := range mentions {
		normalized := core.NormalizeName(mention.Name)
		if normalized == "" {
			continue
		}

		entity, created, err := e.entities.GetOrCreateEntity(ctx, &core.Entity{
			UserId:         bookmark.UserId,
			Type:           mention.Type,
			Name:           mention.Name,
			NormalizedName: normalized,
			Status:         core.EntityStatusPending,
		})
		if err != nil {
			return createdAny, err
		}
		createdAny = createdAny || created

		if _, err := e.links.CreateLink(ctx, &core.EntityBookmarkLink{
			EntityId:       entity.Id,
			BookmarkId:     bookmark.Id,
			ContextSnippet: mention.ContextSnippet,
			Confidence:     mention.Confidence,
			Hints:          mention.Hints,
		}); err != nil {
			return createdAny, err
		}
	}

	e.logger.Info("entity mentions extracted",
		"bookmark", bookmark.Id, "mentions", len(mentions), "new", createdAny)
	return createdAny, nil
}
