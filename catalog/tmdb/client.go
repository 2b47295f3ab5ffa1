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


// Package tmdb implements the catalog.Provider interface against The Movie
// Database API. It resolves movie and TV show entities.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/shelfmark/catalog"
	"github.com/poiesic/shelfmark/core"
)

const (
	// ProviderName identifies this catalog in cached search results.
	ProviderName = "tmdb"

	defaultBaseURL = "https://api.themoviedb.org/3"
	posterBaseURL  = "https://image.tmdb.org/t/p/w342"

	maxResponseBytes = 4 << 20
)

// Client searches TMDB for movie and TV show candidates.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ catalog.Provider = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point at a local
// server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a TMDB client. The API key is required by every endpoint.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default().With("component", "tmdb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// searchResult is one movie or TV entry in a TMDB search response. Movies
// carry title/release_date, TV shows name/first_air_date.
type searchResult struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	PosterPath       string  `json:"poster_path"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search queries TMDB for movies or TV shows matching the name.
func (c *Client) Search(ctx context.Context, entityType core.EntityType, name string) ([]core.Candidate, error) {
	var path string
	switch entityType {
	case core.EntityTypeMovie:
		path = "/search/movie"
	case core.EntityTypeTVShow:
		path = "/search/tv"
	default:
		return nil, catalog.Permanent(fmt.Errorf("tmdb: unsupported entity type %q", entityType))
	}

	query := url.Values{}
	query.Set("api_key", c.apiKey)
	query.Set("query", name)
	query.Set("include_adult", "false")
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, catalog.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("tmdb: decoding search response: %w", err)
	}

	candidates := make([]core.Candidate, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		candidate := core.Candidate{
			Type:       entityType,
			ExternalID: strconv.FormatInt(result.ID, 10),
			Language:   result.OriginalLanguage,
			Popularity: result.Popularity,
			ImageURL:   posterURL(result.PosterPath),
		}
		switch entityType {
		case core.EntityTypeMovie:
			candidate.Title = result.Title
			candidate.Year = parseYear(result.ReleaseDate)
		case core.EntityTypeTVShow:
			candidate.Title = result.Name
			candidate.Year = parseYear(result.FirstAirDate)
		}
		if candidate.Title == "" {
			continue
		}
		candidates = append(candidates, candidate)
	}

	c.logger.Debug("tmdb search", "type", entityType, "query", name, "results", len(candidates))
	return candidates, nil
}

// checkStatus maps HTTP failures to retryable or permanent catalog errors.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &catalog.RetryAfterError{
			After: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:   fmt.Errorf("tmdb: status %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return catalog.Permanent(fmt.Errorf("tmdb: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("tmdb: status %d", resp.StatusCode)
	}
}

func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// parseYear extracts the year from a TMDB "YYYY-MM-DD" date string.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func posterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return posterBaseURL + posterPath
}
