package entities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shelfmark/ai"
	aimock "github.com/poiesic/shelfmark/ai/mock"
	"github.com/poiesic/shelfmark/catalog"
	catmock "github.com/poiesic/shelfmark/catalog/mock"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage/badger"
)

type enrichmentFixture struct {
	repos         *badger.Repositories
	books         *catmock.MockProvider
	screen        *catmock.MockProvider
	disambiguator *aimock.MockDisambiguator
	enricher      *Enricher
}

func newEnrichmentFixture(t *testing.T, opts ...EnricherOption) *enrichmentFixture {
	t.Helper()

	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repos.Close()
		backend.Close()
	})

	books := catmock.NewMockProvider()
	books.ProviderName = "openlibrary"
	screen := catmock.NewMockProvider()
	screen.ProviderName = "tmdb"

	registry := catalog.NewRegistry()
	registry.Register(core.EntityTypeBook, books)
	registry.Register(core.EntityTypeMovie, screen)
	registry.Register(core.EntityTypeTVShow, screen)

	disambiguator := aimock.NewMockDisambiguator()

	// Single attempt keeps failure tests fast.
	opts = append([]EnricherOption{
		WithRetryConfig(catalog.RetryConfig{MaxAttempts: 1}),
	}, opts...)

	enricher, err := NewEnricher(repos.Entities, repos.Links, registry, disambiguator, opts...)
	require.NoError(t, err)

	return &enrichmentFixture{
		repos:         repos,
		books:         books,
		screen:        screen,
		disambiguator: disambiguator,
		enricher:      enricher,
	}
}

func (f *enrichmentFixture) addPending(t *testing.T, userID core.ID, entityType core.EntityType, name string) *core.Entity {
	t.Helper()
	entity, _, err := f.repos.Entities.GetOrCreateEntity(context.Background(), &core.Entity{
		UserId:         userID,
		Type:           entityType,
		Name:           name,
		NormalizedName: core.NormalizeName(name),
		Status:         core.EntityStatusPending,
	})
	require.NoError(t, err)
	return entity
}

func (f *enrichmentFixture) getEntity(t *testing.T, id core.ID) *core.Entity {
	t.Helper()
	entity, err := f.repos.Entities.GetEntity(context.Background(), id)
	require.NoError(t, err)
	return entity
}

func TestNewEnricher_RequiredDependencies(t *testing.T) {
	f := newEnrichmentFixture(t)
	registry := catalog.NewRegistry()
	disambiguator := aimock.NewMockDisambiguator()

	_, err := NewEnricher(nil, f.repos.Links, registry, disambiguator)
	assert.ErrorIs(t, err, ErrEntityRepositoryRequired)

	_, err = NewEnricher(f.repos.Entities, nil, registry, disambiguator)
	assert.ErrorIs(t, err, ErrLinkRepositoryRequired)

	_, err = NewEnricher(f.repos.Entities, f.repos.Links, nil, disambiguator)
	assert.ErrorIs(t, err, ErrRegistryRequired)

	_, err = NewEnricher(f.repos.Entities, f.repos.Links, registry, nil)
	assert.ErrorIs(t, err, ErrDisambiguatorRequired)
}

func TestEnrichUser_SingleCandidateIsClearMatch(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{{
		Type:       core.EntityTypeBook,
		ExternalID: "OL893415W",
		Title:      "Dune",
		Year:       1965,
		Authors:    []string{"Frank Herbert"},
		Language:   "eng",
		ImageURL:   "https://covers.openlibrary.org/b/id/1-M.jpg",
	}}

	entity := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusEnriched, got.Status)
	assert.Equal(t, "OL893415W", got.ExternalID)
	assert.Equal(t, core.BookMetadata{
		Title:    "Dune",
		Authors:  []string{"Frank Herbert"},
		Year:     1965,
		Language: "eng",
		CoverURL: "https://covers.openlibrary.org/b/id/1-M.jpg",
	}, got.Metadata)

	require.NotNil(t, got.SearchCandidates)
	assert.Equal(t, "openlibrary", got.SearchCandidates.Provider)
	assert.False(t, got.SearchCandidates.SearchedAt.IsZero())
	assert.Equal(t, 0, f.disambiguator.CallCount())
}

func TestEnrichUser_NoCandidatesFails(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	entity := f.addPending(t, 7, core.EntityTypeBook, "An Unfindable Book")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusFailed, got.Status)
	assert.Equal(t, core.FailureMetadata{Reason: "No candidates found"}, got.Metadata)
}

func TestEnrichUser_SearchFailureIsIsolated(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.SearchFunc = func(ctx context.Context, entityType core.EntityType, name string) ([]core.Candidate, error) {
		return nil, errors.New("catalog down")
	}
	f.screen.Candidates = []core.Candidate{{
		Type: core.EntityTypeMovie, ExternalID: "603", Title: "The Matrix", Year: 1999,
	}}

	book := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	movie := f.addPending(t, 7, core.EntityTypeMovie, "The Matrix")

	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	gotBook := f.getEntity(t, book.Id)
	assert.Equal(t, core.EntityStatusFailed, gotBook.Status)
	failure, ok := gotBook.Metadata.(core.FailureMetadata)
	require.True(t, ok)
	assert.Contains(t, failure.Reason, "catalog down")

	gotMovie := f.getEntity(t, movie.Id)
	assert.Equal(t, core.EntityStatusEnriched, gotMovie.Status)
}

func TestEnrichUser_MissingProviderFails(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	// Registry with no book provider.
	registry := catalog.NewRegistry()
	enricher, err := NewEnricher(repos.Entities, repos.Links, registry, aimock.NewMockDisambiguator())
	require.NoError(t, err)

	ctx := context.Background()
	entity, _, err := repos.Entities.GetOrCreateEntity(ctx, &core.Entity{
		UserId: 7, Type: core.EntityTypeBook, Name: "Dune",
		NormalizedName: "dune", Status: core.EntityStatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, enricher.EnrichUser(ctx, 7))

	got, err := repos.Entities.GetEntity(ctx, entity.Id)
	require.NoError(t, err)
	assert.Equal(t, core.EntityStatusFailed, got.Status)
}

func TestEnrichUser_PopularityDominanceIsClearMatch(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.screen.Candidates = []core.Candidate{
		{Type: core.EntityTypeMovie, ExternalID: "less", Title: "Alien Raiders", Popularity: 40},
		{Type: core.EntityTypeMovie, ExternalID: "most", Title: "Alien", Year: 1979, Popularity: 100},
	}

	entity := f.addPending(t, 7, core.EntityTypeMovie, "Alien")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusEnriched, got.Status)
	assert.Equal(t, "most", got.ExternalID)
	assert.Equal(t, 0, f.disambiguator.CallCount())
}

func TestEnrichUser_ZeroRunnerUpPopularityIsClearMatch(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.screen.Candidates = []core.Candidate{
		{Type: core.EntityTypeMovie, ExternalID: "obscure", Title: "Solaris", Popularity: 0},
		{Type: core.EntityTypeMovie, ExternalID: "known", Title: "Solaris", Year: 1972, Popularity: 3},
	}

	entity := f.addPending(t, 7, core.EntityTypeMovie, "Solaris")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusEnriched, got.Status)
	assert.Equal(t, "known", got.ExternalID)
}

func TestEnrichUser_ClosePopularityGoesToDisambiguation(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.screen.Candidates = []core.Candidate{
		{Type: core.EntityTypeMovie, ExternalID: "a", Title: "Dune", Year: 2021, Popularity: 100},
		{Type: core.EntityTypeMovie, ExternalID: "b", Title: "Dune", Year: 1984, Popularity: 60},
	}

	entity := f.addPending(t, 7, core.EntityTypeMovie, "Dune")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	// 100 vs 60 is within the dominance ratio, so the model decides.
	assert.Equal(t, 1, f.disambiguator.CallCount())
	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusEnriched, got.Status)
	assert.Equal(t, "a", got.ExternalID)
}

func TestEnrichUser_MultipleBookCandidatesAlwaysDisambiguate(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{
		{Type: core.EntityTypeBook, ExternalID: "w1", Title: "Dune"},
		{Type: core.EntityTypeBook, ExternalID: "w2", Title: "Dune Messiah"},
	}

	entity := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	assert.Equal(t, 1, f.disambiguator.CallCount())
	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusEnriched, got.Status)
	assert.Equal(t, "w1", got.ExternalID)
}

func TestEnrichUser_ConfidenceThresholdIsInclusive(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		wantStatus core.EntityStatus
	}{
		{"at threshold", 0.6, core.EntityStatusEnriched},
		{"below threshold", 0.59, core.EntityStatusAmbiguous},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEnrichmentFixture(t)
			ctx := context.Background()

			f.books.Candidates = []core.Candidate{
				{Type: core.EntityTypeBook, ExternalID: "w1", Title: "Dune", Year: 1965},
				{Type: core.EntityTypeBook, ExternalID: "w2", Title: "Dune Messiah", Year: 1969},
			}
			f.disambiguator.DisambiguateFunc = func(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
				return []ai.DisambiguationDecision{{
					EntityID:           requests[0].EntityID,
					SelectedExternalID: "w1",
					Confidence:         tc.confidence,
					Reasoning:          "earliest matching title",
				}}, nil
			}

			entity := f.addPending(t, 7, core.EntityTypeBook, "Dune")
			require.NoError(t, f.enricher.EnrichUser(ctx, 7))

			got := f.getEntity(t, entity.Id)
			assert.Equal(t, tc.wantStatus, got.Status)

			if tc.wantStatus == core.EntityStatusAmbiguous {
				meta, ok := got.Metadata.(core.AmbiguousMetadata)
				require.True(t, ok)
				assert.Equal(t, "earliest matching title", meta.Reasoning)
				assert.Equal(t, tc.confidence, meta.Confidence)
				require.Len(t, meta.Candidates, 2)
				assert.Equal(t, "w1", meta.Candidates[0].ExternalID)
			}
		})
	}
}

func TestEnrichUser_DeclinedDecisionIsAmbiguous(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{
		{Type: core.EntityTypeBook, ExternalID: "w1", Title: "It"},
		{Type: core.EntityTypeBook, ExternalID: "w2", Title: "It"},
	}
	f.disambiguator.DisambiguateFunc = func(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
		return []ai.DisambiguationDecision{{
			EntityID:  requests[0].EntityID,
			Reasoning: "indistinguishable candidates",
		}}, nil
	}

	entity := f.addPending(t, 7, core.EntityTypeBook, "It")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusAmbiguous, got.Status)
	assert.Empty(t, got.ExternalID)
}

func TestEnrichUser_UnknownSelectionIsAmbiguous(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{
		{Type: core.EntityTypeBook, ExternalID: "w1", Title: "Dune"},
		{Type: core.EntityTypeBook, ExternalID: "w2", Title: "Dune Messiah"},
	}
	f.disambiguator.DisambiguateFunc = func(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
		return []ai.DisambiguationDecision{{
			EntityID:           requests[0].EntityID,
			SelectedExternalID: "hallucinated",
			Confidence:         0.99,
		}}, nil
	}

	entity := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusAmbiguous, got.Status)
	meta, ok := got.Metadata.(core.AmbiguousMetadata)
	require.True(t, ok)
	assert.Contains(t, meta.Reason, "not among those offered")
}

func TestEnrichUser_BatchFailureFailsEveryAmbiguousEntity(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{
		{Type: core.EntityTypeBook, ExternalID: "w1", Title: "Dune"},
		{Type: core.EntityTypeBook, ExternalID: "w2", Title: "Dune Messiah"},
	}
	f.disambiguator.DisambiguateFunc = func(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
		return nil, errors.New("model unavailable")
	}

	first := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	second := f.addPending(t, 7, core.EntityTypeBook, "Foundation")

	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	for _, id := range []core.ID{first.Id, second.Id} {
		got := f.getEntity(t, id)
		assert.Equal(t, core.EntityStatusFailed, got.Status, "entity %d must not dangle", id)
		failure, ok := got.Metadata.(core.FailureMetadata)
		require.True(t, ok)
		assert.Contains(t, failure.Reason, "disambiguation failed")
	}
}

func TestEnrichUser_ResumesWithoutReSearching(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{
		{Type: core.EntityTypeBook, ExternalID: "w1", Title: "Dune"},
		{Type: core.EntityTypeBook, ExternalID: "w2", Title: "Dune Messiah"},
	}
	f.disambiguator.DisambiguateFunc = func(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
		return nil, errors.New("model unavailable")
	}

	entity := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))
	require.Equal(t, 1, f.books.CallCount())

	// Park the entity back at the checkpoint, as if the first run died
	// between search and resolution.
	parked := f.getEntity(t, entity.Id)
	parked.Status = core.EntityStatusCandidatesFound
	parked.Metadata = nil
	_, err := f.repos.Entities.UpdateEntities(ctx, parked)
	require.NoError(t, err)

	f.disambiguator.Reset()
	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	assert.Equal(t, 1, f.books.CallCount(), "cached candidates must not be re-searched")
	got := f.getEntity(t, entity.Id)
	assert.Equal(t, core.EntityStatusEnriched, got.Status)
	assert.Equal(t, "w1", got.ExternalID)
}

func TestEnrichUser_HintsMergedAcrossBookmarks(t *testing.T) {
	f := newEnrichmentFixture(t)
	ctx := context.Background()

	f.books.Candidates = []core.Candidate{
		{Type: core.EntityTypeBook, ExternalID: "w1", Title: "Dune"},
		{Type: core.EntityTypeBook, ExternalID: "w2", Title: "Dune Messiah"},
	}

	entity := f.addPending(t, 7, core.EntityTypeBook, "Dune")
	_, err := f.repos.Links.CreateLink(ctx, &core.EntityBookmarkLink{
		EntityId: entity.Id, BookmarkId: 100,
		Hints: core.ExtractionHints{Year: 1965},
	})
	require.NoError(t, err)
	_, err = f.repos.Links.CreateLink(ctx, &core.EntityBookmarkLink{
		EntityId: entity.Id, BookmarkId: 101,
		Hints: core.ExtractionHints{Year: 1984, Author: "Frank Herbert"},
	})
	require.NoError(t, err)

	require.NoError(t, f.enricher.EnrichUser(ctx, 7))

	require.Len(t, f.disambiguator.LastRequests, 1)
	hints := f.disambiguator.LastRequests[0].Hints
	assert.Equal(t, 1965, hints.Year, "first non-empty hint wins")
	assert.Equal(t, "Frank Herbert", hints.Author)
}
