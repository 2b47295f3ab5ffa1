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


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client        llms.Model
	minConfidence float64
	logger        *slog.Logger
}

// mention is an internal type used for JSON unmarshaling.
// It matches the structure expected by the LLM.
type mention struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
	Year       int     `json:"year,omitempty"`
	Author     string  `json:"author,omitempty"`
	Director   string  `json:"director,omitempty"`
	Language   string  `json:"language,omitempty"`
}

// extraction is the wrapper structure for the LLM's JSON response.
type extraction struct {
	Entities []mention `json:"entities"`
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't
	// require authentication.
	client, err := openai.New(
		openai.WithBaseURL(config.LLMHost),
		openai.WithToken("none"),
		openai.WithModel(config.LLMModel),
	)
	if err != nil {
		return nil, err
	}

	return &EntityExtractor{
		client:        client,
		minConfidence: config.MinConfidence,
		logger:        slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractEntities finds book, movie and TV show mentions in text using an LLM.
// Mentions below the configured confidence threshold are filtered out.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildExtractionPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	var result extraction
	if err := e.generateJSON(ctx, content, &result); err != nil {
		return nil, err
	}

	// Filter by confidence and drop mentions the model mistyped
	extracted := make([]ai.ExtractedEntity, 0, len(result.Entities))
	for _, m := range result.Entities {
		entityType := core.EntityType(strings.ReplaceAll(strings.ToLower(m.Type), " ", "_"))
		if !entityType.Valid() {
			e.logger.Warn("dropping mention with unknown type", "name", m.Name, "type", m.Type)
			continue
		}
		if m.Name == "" || m.Confidence < e.minConfidence {
			continue
		}
		extracted = append(extracted, ai.ExtractedEntity{
			Type:           entityType,
			Name:           strings.TrimSpace(m.Name),
			Confidence:     clampConfidence(m.Confidence),
			ContextSnippet: truncateString(m.Context, 200),
			Hints: core.ExtractionHints{
				Year:     m.Year,
				Author:   m.Author,
				Director: m.Director,
				Language: m.Language,
			},
		})
	}

	e.logger.Debug("extracted entities",
		"total", len(result.Entities),
		"filtered", len(extracted))

	return extracted, nil
}

// generateJSON runs a JSON-mode chat completion and unmarshals the response
// into out. Malformed output is repaired and retried up to 3 times.
func (e *EntityExtractor) generateJSON(ctx context.Context, content []llms.MessageContent, out any) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return nil
		}

		responseText := stripCodeFences(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		return nil
	}

	e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
	return lastErr
}
