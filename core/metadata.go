package core

import (
	"encoding/json"
	"fmt"
)

// MetadataKind tags the concrete shape stored in an entity's Metadata field.
type MetadataKind string

const (
	MetadataKindBook      MetadataKind = "book"
	MetadataKindMovie     MetadataKind = "movie"
	MetadataKindTVShow    MetadataKind = "tv_show"
	MetadataKindFailure   MetadataKind = "failure"
	MetadataKindAmbiguous MetadataKind = "ambiguous"
)

// Metadata is the polymorphic enrichment payload of an entity. Exactly one
// concrete type backs it, keyed by Kind. Consumers must switch exhaustively
// over the concrete types rather than probing for field presence.
type Metadata interface {
	Kind() MetadataKind
}

// BookMetadata is the canonical shape for an enriched book.
type BookMetadata struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Language string   `json:"language,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
}

func (BookMetadata) Kind() MetadataKind { return MetadataKindBook }

// MovieMetadata is the canonical shape for an enriched movie.
type MovieMetadata struct {
	Title      string   `json:"title"`
	Directors  []string `json:"directors,omitempty"`
	Year       int      `json:"year,omitempty"`
	Language   string   `json:"language,omitempty"`
	Popularity float64  `json:"popularity,omitempty"`
	PosterURL  string   `json:"posterUrl,omitempty"`
}

func (MovieMetadata) Kind() MetadataKind { return MetadataKindMovie }

// TVShowMetadata is the canonical shape for an enriched TV show.
type TVShowMetadata struct {
	Title      string   `json:"title"`
	Creators   []string `json:"creators,omitempty"`
	Year       int      `json:"year,omitempty"` // First air year
	Language   string   `json:"language,omitempty"`
	Popularity float64  `json:"popularity,omitempty"`
	PosterURL  string   `json:"posterUrl,omitempty"`
}

func (TVShowMetadata) Kind() MetadataKind { return MetadataKindTVShow }

// FailureMetadata records why enrichment failed for an entity.
type FailureMetadata struct {
	Reason string `json:"reason"`
}

func (FailureMetadata) Kind() MetadataKind { return MetadataKindFailure }

// CandidateSummary is a compact candidate description kept on ambiguous
// entities for later manual resolution.
type CandidateSummary struct {
	ExternalID string  `json:"externalId"`
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Popularity float64 `json:"popularity,omitempty"`
}

// AmbiguousMetadata records an unresolved disambiguation outcome.
type AmbiguousMetadata struct {
	Reason     string             `json:"reason"`
	Reasoning  string             `json:"reasoning,omitempty"` // Model-supplied reasoning, when available
	Confidence float64            `json:"confidence,omitempty"`
	Candidates []CandidateSummary `json:"candidates,omitempty"`
}

func (AmbiguousMetadata) Kind() MetadataKind { return MetadataKindAmbiguous }

// metadataEnvelope is the serialized form of the Metadata union.
type metadataEnvelope struct {
	Kind MetadataKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalMetadata serializes a Metadata value with its kind tag.
// A nil value serializes to JSON null.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metadataEnvelope{Kind: m.Kind(), Data: data})
}

// UnmarshalMetadata deserializes a tagged Metadata value.
// JSON null yields a nil Metadata.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var (
		m   Metadata
		err error
	)
	switch env.Kind {
	case MetadataKindBook:
		var v BookMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataKindMovie:
		var v MovieMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataKindTVShow:
		var v TVShowMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataKindFailure:
		var v FailureMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case MetadataKindAmbiguous:
		var v AmbiguousMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownMetadataKind, env.Kind)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
