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


package badger

import "github.com/poiesic/shelfmark/storage"

// Repositories bundles the four repositories sharing one backend.
type Repositories struct {
	Bookmarks storage.BookmarkRepository
	Chunks    storage.ChunkRepository
	Entities  storage.EntityRepository
	Links     storage.LinkRepository
}

// NewRepositories opens all repositories on the given backend.
func NewRepositories(backend *Backend) (*Repositories, error) {
	bookmarks, err := NewBookmarkRepository(backend)
	if err != nil {
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		bookmarks.Close()
		return nil, err
	}

	entities, err := NewEntityRepository(backend)
	if err != nil {
		chunks.Close()
		bookmarks.Close()
		return nil, err
	}

	links, err := NewLinkRepository(backend)
	if err != nil {
		entities.Close()
		chunks.Close()
		bookmarks.Close()
		return nil, err
	}

	return &Repositories{
		Bookmarks: bookmarks,
		Chunks:    chunks,
		Entities:  entities,
		Links:     links,
	}, nil
}

// Close releases all repository resources. The backend is closed separately.
func (r *Repositories) Close() error {
	r.Links.Close()
	r.Entities.Close()
	r.Chunks.Close()
	return r.Bookmarks.Close()
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close both the repositories and the backend when done.
func NewMemoryRepositories() (*Repositories, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}

	repos, err := NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	return repos, backend, nil
}
