package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter counts whitespace-separated words. It keeps test inputs easy
// to size precisely.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func testConfig() Config {
	return Config{
		MaxTokens:           20,
		OverlapTokens:       5,
		HardMaxTokens:       40,
		MinTokensForOverlap: 5,
	}
}

func newTestChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := NewChunker(wordCounter{}, cfg)
	require.NoError(t, err)
	return c
}

// words produces n distinct words as a sentence ending with a period.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ") + "."
}

func TestNewChunker_InvalidConfig(t *testing.T) {
	_, err := NewChunker(wordCounter{}, Config{MaxTokens: 0})
	require.Error(t, err)

	_, err = NewChunker(wordCounter{}, Config{MaxTokens: 100, HardMaxTokens: 50})
	require.Error(t, err)
}

func TestChunk_EmptyInput(t *testing.T) {
	c := newTestChunker(t, testConfig())

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))
}

func TestChunk_Deterministic(t *testing.T) {
	c := newTestChunker(t, testConfig())

	markdown := "# Guide\n\n" + words(30) + "\n\n" + words(12) + "\n\n" +
		"## Setup\n\n" + words(8) + "\n\n```go\nfunc main() {}\n```\n\n" +
		"| a | b |\n|---|---|\n| 1 | 2 |\n"

	first := c.Chunk(markdown)
	second := c.Chunk(markdown)

	require.Equal(t, first, second)
}

func TestChunk_BreadcrumbNesting(t *testing.T) {
	c := newTestChunker(t, testConfig())

	markdown := strings.Join([]string{
		"# A", "under a.",
		"## B", "under b.",
		"### C", "under c.",
		"## D", "under d.",
	}, "\n\n")

	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 4)

	assert.Equal(t, "A", chunks[0].BreadcrumbPath)
	assert.Equal(t, "A > B", chunks[1].BreadcrumbPath)
	assert.Equal(t, "A > B > C", chunks[2].BreadcrumbPath)
	assert.Equal(t, "A > D", chunks[3].BreadcrumbPath)

	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk.Content, "Section: "+chunk.BreadcrumbPath+"\n\n"),
			"chunk %d should carry its breadcrumb header", chunk.Position)
	}
}

func TestChunk_RootSectionHasNoHeader(t *testing.T) {
	c := newTestChunker(t, testConfig())

	chunks := c.Chunk("intro before any heading.\n\n# First\n\nbody text.")
	require.Len(t, chunks, 2)

	assert.Empty(t, chunks[0].BreadcrumbPath)
	assert.False(t, strings.HasPrefix(chunks[0].Content, "Section:"))
	assert.Equal(t, "First", chunks[1].BreadcrumbPath)
}

func TestChunk_TokenBound(t *testing.T) {
	cfg := testConfig()
	c := newTestChunker(t, cfg)

	var b strings.Builder
	b.WriteString("# Long\n\n")
	for i := 0; i < 12; i++ {
		b.WriteString(words(15))
		b.WriteString("\n\n")
	}

	chunks := c.Chunk(b.String())
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, cfg.HardMaxTokens,
			"chunk %d exceeds hard max", chunk.Position)
	}
}

func TestChunk_TokenBoundIncludesSectionHeader(t *testing.T) {
	// HardMax barely above MaxTokens: the header's tokens must come out of
	// the packing and overlap budgets or chunks land over the cap.
	cfg := Config{
		MaxTokens:           20,
		OverlapTokens:       5,
		HardMaxTokens:       21,
		MinTokensForOverlap: 5,
	}
	c := newTestChunker(t, cfg)

	// Paragraphs of ten words pack in pairs right up to MaxTokens.
	var b strings.Builder
	b.WriteString("# H\n\n")
	for i := 0; i < 10; i++ {
		b.WriteString(words(10))
		b.WriteString("\n\n")
	}

	chunks := c.Chunk(b.String())
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, cfg.HardMaxTokens,
			"chunk %d exceeds hard max: %q", chunk.Position, chunk.Content)
	}
}

func TestChunk_PositionContiguity(t *testing.T) {
	c := newTestChunker(t, testConfig())

	markdown := "# One\n\n" + words(30) + "\n\n# Two\n\n" + words(30) + "\n\n```\ncode\n```\n"
	chunks := c.Chunk(markdown)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
	}
}

func TestChunk_AtomicCodeBlockNeverSplit(t *testing.T) {
	cfg := testConfig()
	c := newTestChunker(t, cfg)

	var code strings.Builder
	for i := 0; i < cfg.MaxTokens*3; i++ {
		fmt.Fprintf(&code, "line%d := %d\n", i, i)
	}
	markdown := "# Code\n\n```go\n" + code.String() + "```\n"

	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 1, "oversized code block must stay one chunk")

	assert.Contains(t, chunks[0].Content, "```go")
	assert.Contains(t, chunks[0].Content, fmt.Sprintf("line%d", cfg.MaxTokens*3-1))
	assert.Greater(t, chunks[0].TokenCount, cfg.HardMaxTokens,
		"the atomic chunk is expected to blow the bound in this test")
}

func TestChunk_TableSerialization(t *testing.T) {
	c := newTestChunker(t, testConfig())

	markdown := "# Data\n\n| name | count |\n|---|---|\n| alpha | 1 |\n| beta | 2 |\n"
	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 1)

	assert.Contains(t, chunks[0].Content, "Table: name | count")
	assert.Contains(t, chunks[0].Content, "Row: alpha | 1")
	assert.Contains(t, chunks[0].Content, "Row: beta | 2")
	assert.NotContains(t, chunks[0].Content, "|---|")
}

func TestChunk_TableNeverMergedWithProse(t *testing.T) {
	c := newTestChunker(t, testConfig())

	markdown := "# Data\n\nshort intro.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\nshort outro.\n"
	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 3)

	assert.NotContains(t, chunks[0].Content, "Table:")
	assert.Contains(t, chunks[1].Content, "Table: a | b")
	assert.NotContains(t, chunks[1].Content, "intro")
	assert.NotContains(t, chunks[1].Content, "outro")
}

func TestChunk_OverlapWithinSection(t *testing.T) {
	cfg := Config{MaxTokens: 10, OverlapTokens: 4, HardMaxTokens: 40, MinTokensForOverlap: 5}
	c := newTestChunker(t, cfg)

	// Two paragraphs that cannot share a chunk; the second is long enough
	// to earn an overlap.
	markdown := "# S\n\nalpha beta gamma delta. epsilon zeta eta theta.\n\niota kappa lambda mu nu xi omicron pi.\n"
	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 2)

	// The overlap is the trailing sentence of the first chunk.
	body := strings.TrimPrefix(chunks[1].Content, "Section: S\n\n")
	assert.True(t, strings.HasPrefix(body, "epsilon zeta eta theta."),
		"second chunk should start with the previous chunk's trailing sentence, got: %q", body)
	assert.Contains(t, body, "iota kappa lambda mu")
}

func TestChunk_NoOverlapAcrossSections(t *testing.T) {
	cfg := Config{MaxTokens: 10, OverlapTokens: 4, HardMaxTokens: 40, MinTokensForOverlap: 3}
	c := newTestChunker(t, cfg)

	markdown := "# One\n\nalpha beta gamma delta epsilon zeta.\n\n# Two\n\niota kappa lambda mu nu xi.\n"
	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 2)

	body := strings.TrimPrefix(chunks[1].Content, "Section: Two\n\n")
	assert.True(t, strings.HasPrefix(body, "iota"),
		"chunk after a section boundary must not receive overlap, got: %q", body)
}

func TestChunk_NoOverlapWhenTooShort(t *testing.T) {
	cfg := Config{MaxTokens: 10, OverlapTokens: 4, HardMaxTokens: 40, MinTokensForOverlap: 6}
	c := newTestChunker(t, cfg)

	// Second paragraph has 3 words, below MinTokensForOverlap.
	markdown := "# S\n\nalpha beta gamma delta epsilon zeta eta theta.\n\niota kappa lambda.\n"
	chunks := c.Chunk(markdown)
	require.Len(t, chunks, 2)

	body := strings.TrimPrefix(chunks[1].Content, "Section: S\n\n")
	assert.Equal(t, "iota kappa lambda.", body)
}

func TestChunk_FirstChunkNeverOverlapped(t *testing.T) {
	cfg := Config{MaxTokens: 10, OverlapTokens: 4, HardMaxTokens: 40, MinTokensForOverlap: 3}
	c := newTestChunker(t, cfg)

	chunks := c.Chunk("# S\n\nalpha beta gamma delta epsilon zeta eta.\n")
	require.Len(t, chunks, 1)

	body := strings.TrimPrefix(chunks[0].Content, "Section: S\n\n")
	assert.True(t, strings.HasPrefix(body, "alpha"))
}

func TestChunk_TokenCountMatchesFinalContent(t *testing.T) {
	c := newTestChunker(t, testConfig())

	chunks := c.Chunk("# S\n\n" + words(12) + "\n\n" + words(30))
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.Equal(t, (wordCounter{}).Count(chunk.Content), chunk.TokenCount,
			"chunk %d token count must be recomputed on the final string", chunk.Position)
	}
}
