package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shelfmark/catalog"
	"github.com/poiesic/shelfmark/core"
)

const movieFixture = `{
  "results": [
    {
      "id": 438631,
      "title": "Dune",
      "release_date": "2021-09-15",
      "original_language": "en",
      "popularity": 120.5,
      "poster_path": "/d5NXSklXo0qyIYkgV94XAgMIckC.jpg"
    },
    {
      "id": 841,
      "title": "Dune",
      "release_date": "1984-12-14",
      "original_language": "en",
      "popularity": 40.2
    }
  ]
}`

const tvFixture = `{
  "results": [
    {
      "id": 90228,
      "name": "Dune: Prophecy",
      "first_air_date": "2024-11-17",
      "original_language": "en",
      "popularity": 85.0
    }
  ]
}`

func TestSearch_Movies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "Dune", r.URL.Query().Get("query"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(movieFixture))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	candidates, err := client.Search(context.Background(), core.EntityTypeMovie, "Dune")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, core.EntityTypeMovie, first.Type)
	assert.Equal(t, "438631", first.ExternalID)
	assert.Equal(t, "Dune", first.Title)
	assert.Equal(t, 2021, first.Year)
	assert.Equal(t, "en", first.Language)
	assert.InDelta(t, 120.5, first.Popularity, 0.001)
	assert.Equal(t, posterBaseURL+"/d5NXSklXo0qyIYkgV94XAgMIckC.jpg", first.ImageURL)

	assert.Equal(t, 1984, candidates[1].Year)
	assert.Empty(t, candidates[1].ImageURL)
}

func TestSearch_TVShows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		w.Write([]byte(tvFixture))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	candidates, err := client.Search(context.Background(), core.EntityTypeTVShow, "Dune Prophecy")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, core.EntityTypeTVShow, candidates[0].Type)
	assert.Equal(t, "Dune: Prophecy", candidates[0].Title)
	assert.Equal(t, 2024, candidates[0].Year)
}

func TestSearch_RejectsBooks(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Search(context.Background(), core.EntityTypeBook, "Dune")

	var permanent *catalog.PermanentError
	require.Error(t, err)
	assert.True(t, errors.As(err, &permanent))
}

func TestSearch_UnauthorizedIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad-key", WithBaseURL(server.URL))
	_, err := client.Search(context.Background(), core.EntityTypeMovie, "Dune")

	var permanent *catalog.PermanentError
	require.Error(t, err)
	assert.True(t, errors.As(err, &permanent))
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 2021, parseYear("2021-09-15"))
	assert.Equal(t, 0, parseYear(""))
	assert.Equal(t, 0, parseYear("bad"))
}
