// Package mock provides a test double for catalog.Provider.
package mock

import (
	"context"

	"github.com/poiesic/shelfmark/core"
)

// MockProvider is a test double for catalog.Provider.
// It allows custom behavior injection via function fields.
type MockProvider struct {
	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// SearchFunc is called by Search if set.
	// If nil, the fixed Candidates slice is returned.
	SearchFunc func(ctx context.Context, entityType core.EntityType, name string) ([]core.Candidate, error)

	// Candidates is the default result when SearchFunc is nil.
	Candidates []core.Candidate

	callCount int

	// LastQuery holds the most recent search name for assertions.
	LastQuery string
}

// NewMockProvider creates a mock provider with no default candidates.
// Note: Returns concrete type to allow test assertions.
func NewMockProvider() *MockProvider {
	return &MockProvider{ProviderName: "mock"}
}

// Name returns the configured provider identifier.
func (m *MockProvider) Name() string {
	return m.ProviderName
}

// Search returns the injected behavior or the fixed candidate list.
func (m *MockProvider) Search(ctx context.Context, entityType core.EntityType, name string) ([]core.Candidate, error) {
	m.callCount++
	m.LastQuery = name

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, entityType, name)
	}

	if m.Candidates == nil {
		return []core.Candidate{}, nil
	}
	return m.Candidates, nil
}

// CallCount returns the number of times Search was called.
func (m *MockProvider) CallCount() int {
	return m.callCount
}

// Reset clears the call count, custom functions and fixed results.
func (m *MockProvider) Reset() {
	m.callCount = 0
	m.SearchFunc = nil
	m.Candidates = nil
	m.LastQuery = ""
}
