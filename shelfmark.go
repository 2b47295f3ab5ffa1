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

package shelfmark

import (
	"log/slog"

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/ai/openai"
	"github.com/poiesic/shelfmark/catalog"
	"github.com/poiesic/shelfmark/catalog/openlibrary"
	"github.com/poiesic/shelfmark/catalog/tmdb"
	"github.com/poiesic/shelfmark/chunking"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/entities"
	"github.com/poiesic/shelfmark/fetch"
	"github.com/poiesic/shelfmark/ingestion"
	"github.com/poiesic/shelfmark/queue"
	"github.com/poiesic/shelfmark/storage"
	"github.com/poiesic/shelfmark/storage/badger"
	"github.com/poiesic/shelfmark/token"
)

// Library opens the storage backend and wires the repositories, AI provider
// and catalog registry behind one handle. The pipeline, extractor, enricher
// and dispatcher are built from it.
type Library struct {
	backend      *badger.Backend
	bookmarkRepo storage.BookmarkRepository
	chunkRepo    storage.ChunkRepository
	entityRepo   storage.EntityRepository
	linkRepo     storage.LinkRepository
	provider     ai.AIProvider
	registry     *catalog.Registry
	fetcher      fetch.Fetcher
	chunker      *chunking.Chunker
	logger       *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	aiConfig    *ai.Config
	chunkConfig chunking.Config
	tmdbAPIKey  string
	inMemory    bool
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(config *ai.Config) LibraryOption {
	return func(o *libraryOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithChunkingConfig overrides the chunk sizing configuration.
func WithChunkingConfig(config chunking.Config) LibraryOption {
	return func(o *libraryOptions) {
		o.chunkConfig = config
	}
}

// WithTMDBAPIKey sets the API key for the movie/TV catalog. Without it the
// registry carries only the book catalog, and movie/TV entities fail
// enrichment with a missing-provider reason.
func WithTMDBAPIKey(key string) LibraryOption {
	return func(o *libraryOptions) {
		o.tmdbAPIKey = key
	}
}

// WithInMemoryStorage keeps all data in memory. For tests and scratch runs.
func WithInMemoryStorage() LibraryOption {
	return func(o *libraryOptions) {
		o.inMemory = true
	}
}

// NewLibrary opens a library at the given path.
func NewLibrary(filePath string, opts ...LibraryOption) (*Library, error) {
	options := &libraryOptions{
		aiConfig:    ai.DefaultConfig(),
		chunkConfig: chunking.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	bookmarkRepo, err := badger.NewBookmarkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		bookmarkRepo.Close()
		backend.Close()
		return nil, err
	}

	entityRepo, err := badger.NewEntityRepository(backend)
	if err != nil {
		chunkRepo.Close()
		bookmarkRepo.Close()
		backend.Close()
		return nil, err
	}

	linkRepo, err := badger.NewLinkRepository(backend)
	if err != nil {
		entityRepo.Close()
		chunkRepo.Close()
		bookmarkRepo.Close()
		backend.Close()
		return nil, err
	}

	closeRepos := func() {
		linkRepo.Close()
		entityRepo.Close()
		chunkRepo.Close()
		bookmarkRepo.Close()
		backend.Close()
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		closeRepos()
		return nil, err
	}

	var counter token.Counter
	counter, err = token.NewTiktokenCounter(token.DefaultEncoding)
	if err != nil {
		// Encoding data unavailable; sizing falls back to the byte estimate.
		slog.Default().Warn("tiktoken encoding unavailable, using approximate counter", "err", err)
		counter = token.ApproxCounter{}
	}

	chunker, err := chunking.NewChunker(counter, options.chunkConfig)
	if err != nil {
		provider.Close()
		closeRepos()
		return nil, err
	}

	registry := catalog.NewRegistry()
	registry.Register(core.EntityTypeBook, openlibrary.NewClient())
	if options.tmdbAPIKey != "" {
		screen := tmdb.NewClient(options.tmdbAPIKey)
		registry.Register(core.EntityTypeMovie, screen)
		registry.Register(core.EntityTypeTVShow, screen)
	}

	return &Library{
		backend:      backend,
		bookmarkRepo: bookmarkRepo,
		chunkRepo:    chunkRepo,
		entityRepo:   entityRepo,
		linkRepo:     linkRepo,
		provider:     provider,
		registry:     registry,
		fetcher:      fetch.NewHTTPFetcher(),
		chunker:      chunker,
		logger:       slog.Default(),
	}, nil
}

func (l *Library) Close() error {
	if err := l.provider.Close(); err != nil {
		l.logger.Error("error closing AI provider", "err", err)
	}

	if err := l.linkRepo.Close(); err != nil {
		l.logger.Error("error closing link repository", "err", err)
		return err
	}
	if err := l.entityRepo.Close(); err != nil {
		l.logger.Error("error closing entity repository", "err", err)
		return err
	}
	if err := l.chunkRepo.Close(); err != nil {
		l.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := l.bookmarkRepo.Close(); err != nil {
		l.logger.Error("error closing bookmark repository", "err", err)
		return err
	}

	if err := l.backend.Close(); err != nil {
		l.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (l *Library) BookmarkRepository() storage.BookmarkRepository {
	return l.bookmarkRepo
}

func (l *Library) ChunkRepository() storage.ChunkRepository {
	return l.chunkRepo
}

func (l *Library) EntityRepository() storage.EntityRepository {
	return l.entityRepo
}

func (l *Library) LinkRepository() storage.LinkRepository {
	return l.linkRepo
}

// NewExtractor builds an entity mention extractor on the library's services.
func (l *Library) NewExtractor(opts ...entities.ExtractorOption) (*entities.Extractor, error) {
	return entities.NewExtractor(l.entityRepo, l.linkRepo, l.provider.EntityExtractor(), opts...)
}

// NewEnricher builds an entity enricher on the library's services.
func (l *Library) NewEnricher(opts ...entities.EnricherOption) (*entities.Enricher, error) {
	return entities.NewEnricher(l.entityRepo, l.linkRepo, l.registry, l.provider.Disambiguator(), opts...)
}

// NewPipeline builds the bookmark processing pipeline, with entity mention
// extraction wired in.
func (l *Library) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	extractor, err := l.NewExtractor()
	if err != nil {
		return nil, err
	}

	opts = append([]ingestion.Option{ingestion.WithMentionExtractor(extractor)}, opts...)
	return ingestion.NewPipeline(l.bookmarkRepo, l.chunkRepo, l.fetcher, l.provider, l.chunker, opts...)
}

// NewDispatcher builds a dispatcher consuming from source and publishing
// follow-up messages through enqueuer. For the in-memory queue both are the
// same *queue.Memory.
func (l *Library) NewDispatcher(source queue.Source, enqueuer queue.Enqueuer, opts ...queue.DispatcherOption) (*queue.Dispatcher, error) {
	extractor, err := l.NewExtractor()
	if err != nil {
		return nil, err
	}
	enricher, err := l.NewEnricher()
	if err != nil {
		return nil, err
	}
	pipeline, err := l.NewPipeline()
	if err != nil {
		return nil, err
	}
	return queue.NewDispatcher(source, enqueuer, l.bookmarkRepo, pipeline, extractor, enricher, opts...)
}
