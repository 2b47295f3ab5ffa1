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

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Disambiguator implements ai.Disambiguator using OpenAI-compatible chat APIs.
// All entities in a batch are resolved in a single LLM call.
type Disambiguator struct {
	client llms.Model
	logger *slog.Logger
}

// decision is an internal type used for JSON unmarshaling.
// It matches the structure expected by the LLM.
type decision struct {
	EntityID   string  `json:"entity_id"`
	SelectedID string  `json:"selected_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// verdict is the wrapper structure for the LLM's JSON response.
type verdict struct {
	Decisions []decision `json:"decisions"`
}

// newDisambiguator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newDisambiguator(config *ai.Config) (*Disambiguator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.LLMHost),
		openai.WithToken("none"),
		openai.WithModel(config.LLMModel),
	)
	if err != nil {
		return nil, err
	}

	return &Disambiguator{
		client: client,
		logger: slog.Default().With("component", "openai-disambiguator"),
	}, nil
}

// NewDisambiguator creates a new disambiguator using the provided configuration.
//
// Returns ai.Disambiguator interface to enforce abstraction.
func NewDisambiguator(config *ai.Config) (ai.Disambiguator, error) {
	return newDisambiguator(config)
}

// Disambiguate asks the model to pick the best catalog candidate for each
// entity in the batch. Decisions referencing unknown entities are dropped;
// entities the model skipped get a declined decision so every request is
// answered.
func (d *Disambiguator) Disambiguate(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
	if len(requests) == 0 {
		return []ai.DisambiguationDecision{}, nil
	}

	// The model echoes entity ids as hex strings; map them back to IDs.
	byHex := make(map[string]core.ID, len(requests))
	for _, req := range requests {
		byHex[req.EntityID.Hex()] = req.EntityID
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildDisambiguationPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(formatDisambiguationInput(requests)),
			},
		},
	}

	var result verdict
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := d.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			d.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			d.logger.Debug("no choices returned from model")
			break
		}

		responseText := stripCodeFences(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			d.logger.Warn("error parsing disambiguator response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		d.logger.Error("failed to parse disambiguator response after retries", "err", lastErr)
		return nil, lastErr
	}

	answered := make(map[core.ID]bool, len(requests))
	decisions := make([]ai.DisambiguationDecision, 0, len(requests))
	for _, dec := range result.Decisions {
		id, ok := byHex[dec.EntityID]
		if !ok {
			d.logger.Warn("dropping decision for unknown entity", "entity_id", dec.EntityID)
			continue
		}
		if answered[id] {
			continue
		}
		answered[id] = true
		decisions = append(decisions, ai.DisambiguationDecision{
			EntityID:           id,
			SelectedExternalID: dec.SelectedID,
			Confidence:         clampConfidence(dec.Confidence),
			Reasoning:          dec.Reasoning,
		})
	}

	// Entities the model skipped count as declined.
	for _, req := range requests {
		if !answered[req.EntityID] {
			decisions = append(decisions, ai.DisambiguationDecision{
				EntityID:  req.EntityID,
				Reasoning: "no decision returned by model",
			})
		}
	}

	d.logger.Debug("disambiguated batch", "requested", len(requests), "decided", len(result.Decisions))
	return decisions, nil
}
