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


// Package fetch retrieves web pages and converts them to markdown for the
// ingestion pipeline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrUnsupportedContentType indicates the URL did not serve HTML.
	ErrUnsupportedContentType = errors.New("fetch: unsupported content type")

	// ErrResponseTooLarge indicates the page body exceeded the size guard.
	ErrResponseTooLarge = errors.New("fetch: response too large")
)

// Result is the extracted content of one fetched page.
type Result struct {
	// Title is the page title, preferring Open Graph over the title element.
	Title string

	// Markdown is the page body converted to markdown.
	Markdown string

	// Metadata holds page metadata captured at fetch time (description,
	// site name). Keys are stable lowercase names.
	Metadata map[string]string
}

// Fetcher retrieves a URL and extracts its content.
// Implementations must be thread-safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}

const (
	defaultMaxBodyBytes = 8 << 20
	defaultUserAgent    = "shelfmark/1.0"
)

// HTTPFetcher implements Fetcher over plain HTTP GET.
type HTTPFetcher struct {
	httpClient   *http.Client
	maxBodyBytes int64
	userAgent    string
	logger       *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option is a functional option for configuring an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.httpClient = httpClient
	}
}

// WithMaxBodyBytes sets the response size guard.
func WithMaxBodyBytes(max int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBodyBytes = max
	}
}

// WithUserAgent sets the User-Agent header sent with requests.
func WithUserAgent(userAgent string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = userAgent
	}
}

// NewHTTPFetcher creates a fetcher with the provided options.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxBodyBytes: defaultMaxBodyBytes,
		userAgent:    defaultUserAgent,
		logger:       slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the URL, extracts the title and metadata, and converts the
// body to markdown.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: status %d for %s", resp.StatusCode, url)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	// Read one byte past the guard to distinguish at-limit from over-limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: reading body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, ErrResponseTooLarge
	}

	result, err := extract(string(body))
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched page",
		"url", url,
		"title", result.Title,
		"markdown_bytes", len(result.Markdown))
	return result, nil
}

// extract pulls the title and metadata out of the HTML and converts the
// cleaned body to markdown.
func extract(html string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("fetch: parsing html: %w", err)
	}

	result := &Result{
		Title:    extractTitle(doc),
		Metadata: extractMetadata(doc),
	}

	// Boilerplate elements only add noise to chunks
	doc.Find("script, style, noscript, nav, header, footer, iframe, form").Remove()

	content := doc.Find("body")
	if content.Length() == 0 {
		content = doc.Selection
	}
	contentHTML, err := content.Html()
	if err != nil {
		return nil, fmt.Errorf("fetch: serializing body: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(contentHTML)
	if err != nil {
		return nil, fmt.Errorf("fetch: converting to markdown: %w", err)
	}
	result.Markdown = strings.TrimSpace(markdown)

	return result, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractMetadata(doc *goquery.Document) map[string]string {
	metadata := make(map[string]string)

	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && v != "" {
		metadata["description"] = strings.TrimSpace(v)
	} else if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && v != "" {
		metadata["description"] = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok && v != "" {
		metadata["site_name"] = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok && v != "" {
		metadata["author"] = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`html`).Attr("lang"); ok && v != "" {
		metadata["language"] = strings.TrimSpace(v)
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}
