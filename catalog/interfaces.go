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


package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/shelfmark/core"
)

// ErrNoProvider is returned when no provider is registered for an entity type.
var ErrNoProvider = errors.New("catalog: no provider registered for entity type")

// Provider searches one external media catalog.
// Implementations must be thread-safe for concurrent use.
type Provider interface {
	// Name identifies the catalog in cached search results and logs.
	Name() string

	// Search queries the catalog for works matching the entity name.
	// It returns the raw candidates in the provider's relevance order,
	// or an empty slice when nothing matches.
	Search(ctx context.Context, entityType core.EntityType, name string) ([]core.Candidate, error)
}

// Registry routes entity types to catalog providers.
type Registry struct {
	providers map[core.EntityType]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[core.EntityType]Provider)}
}

// Register binds a provider to an entity type, replacing any previous binding.
func (r *Registry) Register(entityType core.EntityType, provider Provider) {
	r.providers[entityType] = provider
}

// ProviderFor returns the provider bound to the entity type.
func (r *Registry) ProviderFor(entityType core.EntityType) (Provider, error) {
	p, ok := r.providers[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, entityType)
	}
	return p, nil
}
