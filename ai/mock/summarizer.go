package mock

import (
	"context"
	"strings"
)

// MockSummarizer is a test double for ai.Summarizer.
// It allows custom behavior injection via function fields.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, uses default deterministic behavior.
	SummarizeFunc func(ctx context.Context, title, markdown string) (string, error)

	callCount int
}

// NewMockSummarizer creates a mock summarizer with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize produces a deterministic summary built from the title and the
// first sentence of the markdown.
func (m *MockSummarizer) Summarize(ctx context.Context, title, markdown string) (string, error) {
	m.callCount++

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, title, markdown)
	}

	first := markdown
	if idx := strings.IndexAny(first, ".!?\n"); idx >= 0 {
		first = first[:idx]
	}
	first = strings.TrimSpace(first)

	if title == "" {
		return first, nil
	}
	if first == "" {
		return "Summary of " + title, nil
	}
	return title + ": " + first, nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockSummarizer) Reset() {
	m.callCount = 0
	m.SummarizeFunc = nil
}
