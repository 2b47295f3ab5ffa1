package chunking

import (
	"strings"

	"github.com/poiesic/shelfmark/token"
)

// sentenceSeparator joins overlap sentences to each other and the overlap
// to the main content.
const sentenceSeparator = " "

// applyOverlap prefixes eligible chunks with trailing sentences of their
// predecessor. Eligible: not first overall, same section as the predecessor,
// own token count >= MinTokensForOverlap, and neither side atomic.
// The pass mutates the chunk contents in place.
func applyOverlap(chunks []rawChunk, counter token.Counter, cfg Config) {
	if cfg.OverlapTokens <= 0 {
		return
	}

	// Overlap reads the predecessor's original content, so walk backward to
	// keep each predecessor pristine when its successor is processed.
	for i := len(chunks) - 1; i >= 1; i-- {
		current := &chunks[i]
		previous := &chunks[i-1]

		if current.sectionID != previous.sectionID {
			continue
		}
		if current.atomic || previous.atomic {
			continue
		}
		if current.tokens < cfg.MinTokensForOverlap {
			continue
		}

		// The finalized chunk carries its section header, so the header's
		// tokens come out of the hard cap before the overlap is sized.
		budget := cfg.HardMaxTokens - headerTokens(current.breadcrumb, counter)

		sentences := collectOverlap(previous.content, counter, cfg)
		sentences = trimOverlap(sentences, current.tokens, counter, budget)
		if len(sentences) == 0 {
			continue
		}

		overlap := strings.Join(sentences, sentenceSeparator)
		current.content = overlap + paragraphSeparator + current.content
		current.tokens = counter.Count(current.content)
	}
}

// collectOverlap gathers trailing sentences of the previous chunk, working
// backward until roughly OverlapTokens is accumulated. A candidate sentence
// is accepted while accumulated + sentence <= OverlapTokens * 1.5; if the
// very first candidate alone exceeds that, it is taken anyway.
func collectOverlap(previousContent string, counter token.Counter, cfg Config) []string {
	sentences := splitSentences(previousContent)
	budget := float64(cfg.OverlapTokens) * 1.5

	var (
		collected   []string
		accumulated int
	)
	for i := len(sentences) - 1; i >= 0; i-- {
		sentenceTokens := counter.Count(sentences[i])

		if float64(accumulated+sentenceTokens) > budget {
			if len(collected) == 0 {
				collected = append([]string{sentences[i]}, collected...)
			}
			break
		}

		collected = append([]string{sentences[i]}, collected...)
		accumulated += sentenceTokens
		if accumulated >= cfg.OverlapTokens {
			break
		}
	}
	return collected
}

// trimOverlap drops sentences from the front of the overlap until
// overlap + separator + main content fits the hard budget. If no sentence
// fits, the overlap is dropped entirely.
func trimOverlap(sentences []string, mainTokens int, counter token.Counter, hardMax int) []string {
	separatorTokens := counter.Count(paragraphSeparator)

	for len(sentences) > 0 {
		overlapTokens := counter.Count(strings.Join(sentences, sentenceSeparator))
		if overlapTokens+separatorTokens+mainTokens <= hardMax {
			return sentences
		}
		sentences = sentences[1:]
	}
	return nil
}
