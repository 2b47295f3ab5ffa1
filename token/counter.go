// Package token provides token counting for chunk sizing decisions.
//
// The chunking engine only needs a deterministic text → count function, so
// the counter is a narrow interface. The production implementation wraps a
// tiktoken BPE encoding; an approximate counter exists for environments
// where the encoding data is unavailable.
package token

import (
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for sizing decisions.
const DefaultEncoding = "cl100k_base"

// Counter reports how many tokens a piece of text occupies.
// Implementations must be deterministic and safe for concurrent use.
type Counter interface {
	// Count returns the token count for text. Empty text counts as 0.
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var _ Counter = (*TiktokenCounter)(nil)

// NewTiktokenCounter creates a counter for the named encoding.
// Use DefaultEncoding unless the embedding model dictates otherwise.
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// Count returns the BPE token count for text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// ApproxCounter estimates token counts from byte length.
// Roughly 4 bytes per token holds for English prose; the estimate is
// deterministic, which is all the chunking engine requires.
type ApproxCounter struct {
	// BytesPerToken defaults to 4 when zero.
	BytesPerToken int
}

var _ Counter = ApproxCounter{}

// Count returns len(text) / BytesPerToken, with a minimum of 1 for
// non-empty text.
func (c ApproxCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	per := c.BytesPerToken
	if per <= 0 {
		per = 4
	}
	n := len(text) / per
	if n < 1 {
		n = 1
	}
	return n
}
