package mock

import (
	"context"

	"github.com/poiesic/shelfmark/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, the fixed Entities slice is returned.
	ExtractEntitiesFunc func(ctx context.Context, text string) ([]ai.ExtractedEntity, error)

	// Entities is the default result when ExtractEntitiesFunc is nil.
	Entities []ai.ExtractedEntity

	callCount int
}

// NewMockEntityExtractor creates a mock entity extractor with no default mentions.
// Note: Returns concrete type to allow test assertions.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractEntities returns the injected behavior or the fixed mention list.
func (m *MockEntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	m.callCount++

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	if m.Entities == nil {
		return []ai.ExtractedEntity{}, nil
	}
	return m.Entities, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count, custom functions and fixed results.
func (m *MockEntityExtractor) Reset() {
	m.callCount = 0
	m.ExtractEntitiesFunc = nil
	m.Entities = nil
}
