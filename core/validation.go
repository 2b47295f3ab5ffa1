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


package core

import "fmt"

// ValidateBookmark validates a Bookmark according to domain rules.
//
// Validation rules:
//   - URL must not be empty
//   - UserId must not be zero
//
// NOT validated (populated by pipeline stages):
//   - Title, Markdown, Summary (empty until the fetch/summarize stages run)
//   - Status (zero value is rejected by the pipeline, not here)
//   - ID (0 is valid from database sequences)
func ValidateBookmark(bookmark *Bookmark) error {
	if bookmark == nil {
		return fmt.Errorf("%w: bookmark is nil", ErrInvalidBookmark)
	}

	if bookmark.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBookmark, ErrEmptyURL)
	}

	if bookmark.UserId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidBookmark, ErrEmptyUser)
	}

	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name and NormalizedName must not be empty
//   - Type must be a known entity type
//   - UserId must not be zero
//
// NOT validated (populated by enrichment):
//   - ExternalID, Metadata, SearchCandidates
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Name == "" || entity.NormalizedName == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityName)
	}

	if !entity.Type.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidEntity, ErrInvalidEntityType, entity.Type)
	}

	if entity.UserId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyUser)
	}

	return nil
}

// ValidateLink validates an EntityBookmarkLink according to domain rules.
func ValidateLink(link *EntityBookmarkLink) error {
	if link == nil {
		return fmt.Errorf("%w: link is nil", ErrInvalidLink)
	}

	if link.EntityId == 0 || link.BookmarkId == 0 {
		return fmt.Errorf("%w: entity and bookmark ids are required", ErrInvalidLink)
	}

	if link.Confidence < 0 || link.Confidence > 1 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidLink, ErrInvalidConfidence, link.Confidence)
	}

	return nil
}
