package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Fallback Title</title>
  <meta property="og:title" content="My Article">
  <meta name="description" content="An article about things.">
  <meta property="og:site_name" content="Example Blog">
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <h1>My Article</h1>
  <p>First paragraph of <strong>content</strong>.</p>
  <script>alert("noise")</script>
  <footer>Copyright</footer>
</body>
</html>`

func TestFetch_ExtractsTitleAndMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher()
	result, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "My Article", result.Title)
	assert.Equal(t, "An article about things.", result.Metadata["description"])
	assert.Equal(t, "Example Blog", result.Metadata["site_name"])
	assert.Equal(t, "en", result.Metadata["language"])
}

func TestFetch_ConvertsBodyToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher()
	result, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "# My Article")
	assert.Contains(t, result.Markdown, "**content**")
	// Boilerplate is stripped before conversion
	assert.NotContains(t, result.Markdown, "alert")
	assert.NotContains(t, result.Markdown, "Copyright")
	assert.NotContains(t, result.Markdown, "Home")
}

func TestFetch_RejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher()
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestFetch_EnforcesSizeGuard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>" + strings.Repeat("x", 4096) + "</body></html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(WithMaxBodyBytes(1024))
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestFetch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher()
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}
