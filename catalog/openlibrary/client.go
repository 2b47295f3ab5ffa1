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


// Package openlibrary implements the catalog.Provider interface against the
// Open Library search API. It resolves book entities only.
package openlibrary

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
	ProviderName = "openlibrary"

	defaultBaseURL = "https://openlibrary.org"
	defaultLimit   = 10

	// searchFields keeps the response small; Open Library returns every doc
	// field otherwise.
	searchFields = "key,title,first_publish_year,author_name,language,cover_i"

	maxResponseBytes = 4 << 20
)

// Client searches Open Library for book candidates.
type Client struct {
	baseURL    string
	limit      int
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

// WithLimit sets the maximum number of candidates per search.
func WithLimit(limit int) Option {
	return func(c *Client) {
		c.limit = limit
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates an Open Library client with the provided options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		limit:      defaultLimit,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default().With("component", "openlibrary"),
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

// searchDoc is one work in an Open Library search response.
type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	FirstPublishYear int      `json:"first_publish_year"`
	AuthorName       []string `json:"author_name"`
	Language         []string `json:"language"`
	CoverID          int64    `json:"cover_i"`
}

type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

// Search queries the Open Library search API for works matching the name.
// Only book entities are supported.
func (c *Client) Search(ctx context.Context, entityType core.EntityType, name string) ([]core.Candidate, error) {
	if entityType != core.EntityTypeBook {
		return nil, catalog.Permanent(fmt.Errorf("openlibrary: unsupported entity type %q", entityType))
	}

	query := url.Values{}
	query.Set("q", name)
	query.Set("limit", strconv.Itoa(c.limit))
	query.Set("fields", searchFields)
	endpoint := c.baseURL + "/search.json?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, catalog.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("openlibrary: decoding search response: %w", err)
	}

	candidates := make([]core.Candidate, 0, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		if doc.Title == "" {
			continue
		}
		candidates = append(candidates, core.Candidate{
			Type:       core.EntityTypeBook,
			ExternalID: strings.TrimPrefix(doc.Key, "/works/"),
			Title:      doc.Title,
			Year:       doc.FirstPublishYear,
			Authors:    doc.AuthorName,
			Language:   firstLanguage(doc.Language),
			ImageURL:   coverURL(doc.CoverID),
		})
	}

	c.logger.Debug("openlibrary search", "query", name, "results", len(candidates))
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
			Err:   fmt.Errorf("openlibrary: status %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return catalog.Permanent(fmt.Errorf("openlibrary: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("openlibrary: status %d", resp.StatusCode)
	}
}

func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func firstLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	return languages[0]
}

func coverURL(coverID int64) string {
	if coverID == 0 {
		return ""
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", coverID)
}
