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


// Package ai provides abstractions for the AI services used in Shelfmark.
//
// This package defines interfaces for text embeddings, page summarization,
// media entity extraction and candidate disambiguation. The core pipeline
// and enrichment logic depend only on these abstractions, never on concrete
// transports.
//
// # Interfaces
//
//   - Embedder: generates vector embeddings from text
//   - Summarizer: produces a short summary of a page
//   - EntityExtractor: finds book/movie/TV-show mentions in text
//   - Disambiguator: resolves ambiguous catalog candidates in one batch call
//   - AIProvider: aggregates the services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider and friends) return interface
// types to enforce abstraction. Mock constructors return concrete types so
// tests can inject behavior and assert call counts.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	summary, err := provider.Summarizer().Summarize(ctx, title, markdown)
//	mentions, err := provider.EntityExtractor().ExtractEntities(ctx, markdown)
package ai
