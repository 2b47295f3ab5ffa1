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
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/catalog"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

const (
	// defaultSearchConcurrency bounds parallel catalog searches to protect
	// provider rate limits.
	defaultSearchConcurrency = 3

	// defaultMinDecisionConfidence is the inclusive acceptance threshold for
	// disambiguation decisions.
	defaultMinDecisionConfidence = 0.6

	// popularityClearRatio: the top candidate is a clear match when its
	// popularity exceeds the runner-up's by this factor.
	popularityClearRatio = 2.0
)

// Enricher resolves pending entities against external catalogs.
type Enricher struct {
	entities      storage.EntityRepository
	links         storage.LinkRepository
	registry      *catalog.Registry
	disambiguator ai.Disambiguator

	retry             catalog.RetryConfig
	searchConcurrency int
	minConfidence     float64
	logger            *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithEnricherLogger sets a custom logger.
func WithEnricherLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSearchConcurrency bounds the number of catalog searches in flight.
func WithSearchConcurrency(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.searchConcurrency = n
		}
	}
}

// WithRetryConfig overrides the catalog search retry policy.
func WithRetryConfig(cfg catalog.RetryConfig) EnricherOption {
	return func(e *Enricher) {
		e.retry = cfg
	}
}

// WithMinDecisionConfidence overrides the disambiguation acceptance
// threshold. A decision at exactly the threshold is accepted.
func WithMinDecisionConfidence(min float64) EnricherOption {
	return func(e *Enricher) {
		if min > 0 {
			e.minConfidence = min
		}
	}
}

// NewEnricher creates an entity enricher.
func NewEnricher(
	entities storage.EntityRepository,
	links storage.LinkRepository,
	registry *catalog.Registry,
	disambiguator ai.Disambiguator,
	opts ...EnricherOption,
) (*Enricher, error) {
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if links == nil {
		return nil, ErrLinkRepositoryRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if disambiguator == nil {
		return nil, ErrDisambiguatorRequired
	}

	e := &Enricher{
		entities:          entities,
		links:             links,
		registry:          registry,
		disambiguator:     disambiguator,
		retry:             catalog.DefaultRetryConfig(),
		searchConcurrency: defaultSearchConcurrency,
		minConfidence:     defaultMinDecisionConfidence,
		logger:            slog.Default().With("component", "enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EnrichUser drives every enrichable entity of a user as far as it can go:
// pending entities are searched, searched entities are resolved, and
// unresolvable ones are batched through disambiguation. Safe to re-run; an
// entity already enriched, ambiguous or failed is left alone. The returned
// error reports storage problems only; catalog and model failures are
// persisted on the affected entities.
func (e *Enricher) EnrichUser(ctx context.Context, userID core.ID) error {
	if err := e.searchPending(ctx, userID); err != nil {
		return err
	}
	return e.resolveCandidates(ctx, userID)
}

// searchPending runs the catalog search phase with bounded concurrency.
// Each entity fails independently; a search error never aborts siblings.
func (e *Enricher) searchPending(ctx context.Context, userID core.ID) error {
	pending, err := e.entities.ListByUserAndStatus(ctx, userID, core.EntityStatusPending)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.searchConcurrency)

	for _, entity := range pending {
		g.Go(func() error {
			return e.searchEntity(ctx, entity)
		})
	}
	return g.Wait()
}

func (e *Enricher) searchEntity(ctx context.Context, entity *core.Entity) error {
	provider, err := e.registry.ProviderFor(entity.Type)
	if err != nil {
		return e.failEntity(ctx, entity, err.Error())
	}

	var candidates []core.Candidate
	err = catalog.WithRetry(ctx, e.retry, func() error {
		var searchErr error
		candidates, searchErr = provider.Search(ctx, entity.Type, entity.Name)
		return searchErr
	})
	if err != nil {
		e.logger.Warn("catalog search failed",
			"entity", entity.Id, "name", entity.Name, "err", err)
		return e.failEntity(ctx, entity, err.Error())
	}

	entity.SearchCandidates = &core.SearchCandidates{
		Provider:   provider.Name(),
		SearchedAt: time.Now().UTC(),
		Candidates: candidates,
	}
	entity.Status = core.EntityStatusCandidatesFound
	_, err = e.entities.UpdateEntities(ctx, entity)
	return err
}

// resolveCandidates categorizes every searched entity, enriches the clear
// matches and routes the rest through one batched disambiguation call.
func (e *Enricher) resolveCandidates(ctx context.Context, userID core.ID) error {
	searched, err := e.entities.ListByUserAndStatus(ctx, userID, core.EntityStatusCandidatesFound)
	if err != nil {
		return err
	}

	var ambiguous []*core.Entity
	for _, entity := range searched {
		var candidates []core.Candidate
		if entity.SearchCandidates != nil {
			candidates = entity.SearchCandidates.Candidates
		}

		if len(candidates) == 0 {
			if err := e.failEntity(ctx, entity, "No candidates found"); err != nil {
				return err
			}
			continue
		}

		if candidate, ok := clearMatch(entity.Type, candidates); ok {
			if err := e.enrichEntity(ctx, entity, candidate); err != nil {
				return err
			}
			continue
		}
		ambiguous = append(ambiguous, entity)
	}

	return e.disambiguate(ctx, ambiguous)
}

// clearMatch picks the obviously correct candidate, if there is one. A single
// candidate is always clear. With several, movies and TV shows are clear when
// the most popular candidate dwarfs the runner-up; books with several
// candidates always need disambiguation.
func clearMatch(entityType core.EntityType, candidates []core.Candidate) (core.Candidate, bool) {
	if len(candidates) == 1 {
		return candidates[0], true
	}
	if entityType == core.EntityTypeBook {
		return core.Candidate{}, false
	}

	sorted := make([]core.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Popularity > sorted[j].Popularity
	})

	top, second := sorted[0], sorted[1]
	if second.Popularity == 0 || top.Popularity > second.Popularity*popularityClearRatio {
		return top, true
	}
	return core.Candidate{}, false
}

// disambiguate resolves ambiguous entities in one batched model call. A
// failure of the call itself marks every entity in the batch failed so none
// is left dangling.
func (e *Enricher) disambiguate(ctx context.Context, ambiguous []*core.Entity) error {
	if len(ambiguous) == 0 {
		return nil
	}

	byID := make(map[core.ID]*core.Entity, len(ambiguous))
	requests := make([]ai.DisambiguationRequest, 0, len(ambiguous))
	for _, entity := range ambiguous {
		hints, err := e.hintsForEntity(ctx, entity.Id)
		if err != nil {
			return err
		}
		byID[entity.Id] = entity
		requests = append(requests, ai.DisambiguationRequest{
			EntityID:   entity.Id,
			Name:       entity.Name,
			Type:       entity.Type,
			Hints:      hints,
			Candidates: entity.SearchCandidates.Candidates,
		})
	}

	decisions, err := e.disambiguator.Disambiguate(ctx, requests)
	if err != nil {
		e.logger.Error("disambiguation batch failed", "entities", len(ambiguous), "err", err)
		for _, entity := range ambiguous {
			if failErr := e.failEntity(ctx, entity, "disambiguation failed: "+err.Error()); failErr != nil {
				return failErr
			}
		}
		return nil
	}

	for _, decision := range decisions {
		entity, ok := byID[decision.EntityID]
		if !ok {
			continue
		}
		if err := e.applyDecision(ctx, entity, decision); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enricher) applyDecision(ctx context.Context, entity *core.Entity, decision ai.DisambiguationDecision) error {
	candidates := entity.SearchCandidates.Candidates

	if decision.SelectedExternalID == "" || decision.Confidence < e.minConfidence {
		return e.markAmbiguous(ctx, entity, "low confidence or no selection", decision)
	}

	for _, candidate := range candidates {
		if candidate.ExternalID == decision.SelectedExternalID {
			return e.enrichEntity(ctx, entity, candidate)
		}
	}

	// The model named an id it was never offered.
	e.logger.Warn("disambiguation selected unknown candidate",
		"entity", entity.Id, "selected", decision.SelectedExternalID)
	return e.markAmbiguous(ctx, entity, "selected candidate was not among those offered", decision)
}

// hintsForEntity merges the extraction hints of every bookmark mentioning the
// entity. Links are scanned in creation order; the first non-empty value of
// each field wins.
func (e *Enricher) hintsForEntity(ctx context.Context, entityID core.ID) (core.ExtractionHints, error) {
	links, err := e.links.ListByEntity(ctx, entityID)
	if err != nil {
		return core.ExtractionHints{}, err
	}

	var hints core.ExtractionHints
	for _, link := range links {
		hints = hints.Merge(link.Hints)
	}
	return hints, nil
}

func (e *Enricher) enrichEntity(ctx context.Context, entity *core.Entity, candidate core.Candidate) error {
	entity.ExternalID = candidate.ExternalID
	entity.Metadata = metadataFromCandidate(entity.Type, candidate)
	entity.Status = core.EntityStatusEnriched
	if _, err := e.entities.UpdateEntities(ctx, entity); err != nil {
		return err
	}
	e.logger.Info("entity enriched",
		"entity", entity.Id, "name", entity.Name, "external_id", candidate.ExternalID)
	return nil
}

func (e *Enricher) failEntity(ctx context.Context, entity *core.Entity, reason string) error {
	entity.Status = core.EntityStatusFailed
	entity.Metadata = core.FailureMetadata{Reason: reason}
	_, err := e.entities.UpdateEntities(ctx, entity)
	return err
}

func (e *Enricher) markAmbiguous(ctx context.Context, entity *core.Entity, reason string, decision ai.DisambiguationDecision) error {
	entity.Status = core.EntityStatusAmbiguous
	entity.Metadata = core.AmbiguousMetadata{
		Reason:     reason,
		Reasoning:  decision.Reasoning,
		Confidence: decision.Confidence,
		Candidates: candidateSummaries(entity.SearchCandidates.Candidates),
	}
	_, err := e.entities.UpdateEntities(ctx, entity)
	return err
}

// metadataFromCandidate maps a catalog candidate onto the canonical metadata
// shape for the entity type.
func metadataFromCandidate(entityType core.EntityType, c core.Candidate) core.Metadata {
	switch entityType {
	case core.EntityTypeBook:
		return core.BookMetadata{
			Title:    c.Title,
			Authors:  c.Authors,
			Year:     c.Year,
			Language: c.Language,
			CoverURL: c.ImageURL,
		}
	case core.EntityTypeMovie:
		return core.MovieMetadata{
			Title:      c.Title,
			Directors:  c.Directors,
			Year:       c.Year,
			Language:   c.Language,
			Popularity: c.Popularity,
			PosterURL:  c.ImageURL,
		}
	case core.EntityTypeTVShow:
		return core.TVShowMetadata{
			Title:      c.Title,
			Creators:   c.Creators,
			Year:       c.Year,
			Language:   c.Language,
			Popularity: c.Popularity,
			PosterURL:  c.ImageURL,
		}
	}
	return nil
}

func candidateSummaries(candidates []core.Candidate) []core.CandidateSummary {
	summaries := make([]core.CandidateSummary, len(candidates))
	for i, c := range candidates {
		summaries[i] = core.CandidateSummary{
			ExternalID: c.ExternalID,
			Title:      c.Title,
			Year:       c.Year,
			Popularity: c.Popularity,
		}
	}
	return summaries
}
