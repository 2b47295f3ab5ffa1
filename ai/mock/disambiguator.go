package mock

import (
	"context"

	"github.com/poiesic/shelfmark/ai"
)

// MockDisambiguator is a test double for ai.Disambiguator.
// It allows custom behavior injection via function fields.
type MockDisambiguator struct {
	// DisambiguateFunc is called by Disambiguate if set.
	// If nil, uses default first-candidate behavior.
	DisambiguateFunc func(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error)

	callCount int

	// LastRequests holds the most recent batch for assertions.
	LastRequests []ai.DisambiguationRequest
}

// NewMockDisambiguator creates a mock disambiguator with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockDisambiguator() *MockDisambiguator {
	return &MockDisambiguator{}
}

// Disambiguate picks the first candidate for every request with full
// confidence. Requests without candidates are declined.
func (m *MockDisambiguator) Disambiguate(ctx context.Context, requests []ai.DisambiguationRequest) ([]ai.DisambiguationDecision, error) {
	m.callCount++
	m.LastRequests = requests

	if m.DisambiguateFunc != nil {
		return m.DisambiguateFunc(ctx, requests)
	}

	decisions := make([]ai.DisambiguationDecision, 0, len(requests))
	for _, req := range requests {
		dec := ai.DisambiguationDecision{
			EntityID:  req.EntityID,
			Reasoning: "mock decision",
		}
		if len(req.Candidates) > 0 {
			dec.SelectedExternalID = req.Candidates[0].ExternalID
			dec.Confidence = 1.0
		}
		decisions = append(decisions, dec)
	}
	return decisions, nil
}

// CallCount returns the number of times Disambiguate was called.
func (m *MockDisambiguator) CallCount() int {
	return m.callCount
}

// Reset clears the call count, custom functions and recorded requests.
func (m *MockDisambiguator) Reset() {
	m.callCount = 0
	m.DisambiguateFunc = nil
	m.LastRequests = nil
}
