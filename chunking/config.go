package chunking

import "errors"

// Chunk size defaults, tuned for embedding-model context windows.
const (
	DefaultMaxTokens           = 512
	DefaultOverlapTokens       = 64
	DefaultHardMaxTokens       = 600
	DefaultMinTokensForOverlap = 100
)

// Config bounds the chunks the engine produces.
type Config struct {
	// MaxTokens is the soft packing limit for accumulated paragraphs.
	MaxTokens int

	// OverlapTokens is the target size of the sentence overlap pulled from
	// the previous chunk of the same section.
	OverlapTokens int

	// HardMaxTokens caps overlap + separator + content for non-atomic
	// chunks. Atomic blocks (tables, code, raw HTML) may exceed it.
	HardMaxTokens int

	// MinTokensForOverlap is the minimum size a chunk must have on its own
	// to receive an overlap prefix.
	MinTokensForOverlap int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxTokens:           DefaultMaxTokens,
		OverlapTokens:       DefaultOverlapTokens,
		HardMaxTokens:       DefaultHardMaxTokens,
		MinTokensForOverlap: DefaultMinTokensForOverlap,
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return errors.New("chunking config: MaxTokens must be positive")
	}
	if c.HardMaxTokens < c.MaxTokens {
		return errors.New("chunking config: HardMaxTokens must be >= MaxTokens")
	}
	if c.OverlapTokens < 0 {
		return errors.New("chunking config: OverlapTokens cannot be negative")
	}
	if c.MinTokensForOverlap < 0 {
		return errors.New("chunking config: MinTokensForOverlap cannot be negative")
	}
	return nil
}
