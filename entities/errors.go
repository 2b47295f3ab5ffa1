package entities

import "errors"

var (
	// ErrEntityRepositoryRequired is returned when no entity repository is provided.
	ErrEntityRepositoryRequired = errors.New("entity repository is required")

	// ErrLinkRepositoryRequired is returned when no link repository is provided.
	ErrLinkRepositoryRequired = errors.New("link repository is required")

	// ErrExtractorRequired is returned when no entity extractor is provided.
	ErrExtractorRequired = errors.New("entity extractor is required")

	// ErrRegistryRequired is returned when no catalog registry is provided.
	ErrRegistryRequired = errors.New("catalog registry is required")

	// ErrDisambiguatorRequired is returned when no disambiguator is provided.
	ErrDisambiguatorRequired = errors.New("disambiguator is required")
)
