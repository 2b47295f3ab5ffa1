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


package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/shelfmark/core"
)

// Records are stored as JSON. The DTOs below pin the wire field names so the
// core types can evolve without silently changing stored data.

type bookmarkRecord struct {
	Id                core.ID             `json:"id"`
	UserId            core.ID             `json:"user_id"`
	URL               string              `json:"url"`
	Title             string              `json:"title,omitempty"`
	Markdown          string              `json:"markdown,omitempty"`
	Summary           string              `json:"summary,omitempty"`
	Status            core.BookmarkStatus `json:"status"`
	ErrorMessage      string              `json:"error_message,omitempty"`
	EntitiesExtracted bool                `json:"entities_extracted,omitempty"`
	Metadata          map[string]string   `json:"metadata,omitempty"`
	InsertedAt        time.Time           `json:"inserted_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type chunkRecord struct {
	Id             core.ID   `json:"id"`
	BookmarkId     core.ID   `json:"bookmark_id"`
	Content        string    `json:"content"`
	Position       int       `json:"position"`
	TokenCount     int       `json:"token_count"`
	BreadcrumbPath string    `json:"breadcrumb_path,omitempty"`
	Vector         []float32 `json:"vector,omitempty"`
	InsertedAt     time.Time `json:"inserted_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type entityRecord struct {
	Id               core.ID                `json:"id"`
	UserId           core.ID                `json:"user_id"`
	Type             core.EntityType        `json:"type"`
	Name             string                 `json:"name"`
	NormalizedName   string                 `json:"normalized_name"`
	ExternalID       string                 `json:"external_id,omitempty"`
	Status           core.EntityStatus      `json:"status"`
	Metadata         json.RawMessage        `json:"metadata,omitempty"`
	SearchCandidates *core.SearchCandidates `json:"search_candidates,omitempty"`
	InsertedAt       time.Time              `json:"inserted_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type linkRecord struct {
	EntityId       core.ID              `json:"entity_id"`
	BookmarkId     core.ID              `json:"bookmark_id"`
	ContextSnippet string               `json:"context_snippet,omitempty"`
	Confidence     float64              `json:"confidence"`
	Hints          core.ExtractionHints `json:"hints,omitempty"`
	InsertedAt     time.Time            `json:"inserted_at"`
}

// MarshalBookmark serializes a bookmark for storage.
func MarshalBookmark(bookmark *core.Bookmark) ([]byte, error) {
	record := bookmarkRecord{
		Id:                bookmark.Id,
		UserId:            bookmark.UserId,
		URL:               bookmark.URL,
		Title:             bookmark.Title,
		Markdown:          bookmark.Markdown,
		Summary:           bookmark.Summary,
		Status:            bookmark.Status,
		ErrorMessage:      bookmark.ErrorMessage,
		EntitiesExtracted: bookmark.EntitiesExtracted,
		Metadata:          bookmark.Metadata,
		InsertedAt:        bookmark.InsertedAt,
		UpdatedAt:         bookmark.UpdatedAt,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalBookmark deserializes a bookmark from storage.
func UnmarshalBookmark(data []byte) (*core.Bookmark, error) {
	var record bookmarkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &core.Bookmark{
		Id:                record.Id,
		UserId:            record.UserId,
		URL:               record.URL,
		Title:             record.Title,
		Markdown:          record.Markdown,
		Summary:           record.Summary,
		Status:            record.Status,
		ErrorMessage:      record.ErrorMessage,
		EntitiesExtracted: record.EntitiesExtracted,
		Metadata:          record.Metadata,
		InsertedAt:        record.InsertedAt,
		UpdatedAt:         record.UpdatedAt,
	}, nil
}

// MarshalChunk serializes a chunk for storage.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) {
	record := chunkRecord{
		Id:             chunk.Id,
		BookmarkId:     chunk.BookmarkId,
		Content:        chunk.Content,
		Position:       chunk.Position,
		TokenCount:     chunk.TokenCount,
		BreadcrumbPath: chunk.BreadcrumbPath,
		Vector:         chunk.Vector,
		InsertedAt:     chunk.InsertedAt,
		UpdatedAt:      chunk.UpdatedAt,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalChunk deserializes a chunk from storage.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	var record chunkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &core.Chunk{
		Id:             record.Id,
		BookmarkId:     record.BookmarkId,
		Content:        record.Content,
		Position:       record.Position,
		TokenCount:     record.TokenCount,
		BreadcrumbPath: record.BreadcrumbPath,
		Vector:         record.Vector,
		InsertedAt:     record.InsertedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}

// MarshalEntity serializes an entity for storage. The metadata union is
// stored in its tagged envelope form.
func MarshalEntity(entity *core.Entity) ([]byte, error) {
	metadata, err := core.MarshalMetadata(entity.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	record := entityRecord{
		Id:               entity.Id,
		UserId:           entity.UserId,
		Type:             entity.Type,
		Name:             entity.Name,
		NormalizedName:   entity.NormalizedName,
		ExternalID:       entity.ExternalID,
		Status:           entity.Status,
		Metadata:         metadata,
		SearchCandidates: entity.SearchCandidates,
		InsertedAt:       entity.InsertedAt,
		UpdatedAt:        entity.UpdatedAt,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalEntity deserializes an entity from storage.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	var record entityRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	metadata, err := core.UnmarshalMetadata(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &core.Entity{
		Id:               record.Id,
		UserId:           record.UserId,
		Type:             record.Type,
		Name:             record.Name,
		NormalizedName:   record.NormalizedName,
		ExternalID:       record.ExternalID,
		Status:           record.Status,
		Metadata:         metadata,
		SearchCandidates: record.SearchCandidates,
		InsertedAt:       record.InsertedAt,
		UpdatedAt:        record.UpdatedAt,
	}, nil
}

// MarshalLink serializes an entity-bookmark link for storage.
func MarshalLink(link *core.EntityBookmarkLink) ([]byte, error) {
	record := linkRecord{
		EntityId:       link.EntityId,
		BookmarkId:     link.BookmarkId,
		ContextSnippet: link.ContextSnippet,
		Confidence:     link.Confidence,
		Hints:          link.Hints,
		InsertedAt:     link.InsertedAt,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalLink deserializes an entity-bookmark link from storage.
func UnmarshalLink(data []byte) (*core.EntityBookmarkLink, error) {
	var record linkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &core.EntityBookmarkLink{
		EntityId:       record.EntityId,
		BookmarkId:     record.BookmarkId,
		ContextSnippet: record.ContextSnippet,
		Confidence:     record.Confidence,
		Hints:          record.Hints,
		InsertedAt:     record.InsertedAt,
	}, nil
}

// MarshalID serializes an ID as 8 big-endian bytes, the form index values use.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from its 8-byte form.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) < 8 {
		return 0, ErrTruncatedData
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}
