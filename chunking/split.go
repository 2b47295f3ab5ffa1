package chunking

import (
	"strings"

	"github.com/poiesic/shelfmark/token"
)

// paragraphSeparator joins accumulated paragraphs inside a chunk; its token
// cost is charged during packing.
const paragraphSeparator = "\n\n"

// sectionHeaderPrefix labels finalized chunks with their breadcrumb.
const sectionHeaderPrefix = "Section: "

// sectionHeader returns the header prepended to finalized chunks of the
// given breadcrumb. Breadcrumb-less content has no header.
func sectionHeader(breadcrumb string) string {
	if breadcrumb == "" {
		return ""
	}
	return sectionHeaderPrefix + breadcrumb + paragraphSeparator
}

// headerTokens measures the section header's token cost. It is charged
// against the packing and overlap budgets so the finalized chunk, header
// included, stays within bounds.
func headerTokens(breadcrumb string, counter token.Counter) int {
	if breadcrumb == "" {
		return 0
	}
	return counter.Count(sectionHeader(breadcrumb))
}

// rawChunk is a packed chunk before the overlap and finalization passes.
type rawChunk struct {
	sectionID  int
	breadcrumb string
	content    string
	tokens     int
	atomic     bool
}

// packSection bin-packs one section's blocks into raw chunks.
// Splittable blocks are split on blank-line paragraph boundaries and greedily
// accumulated up to MaxTokens; atomic blocks become chunks of their own.
func packSection(sec *section, counter token.Counter, cfg Config) []rawChunk {
	var (
		chunks  []rawChunk
		pieces  []string
		running int
	)
	sepTokens := counter.Count(paragraphSeparator)

	// The header of the finalized chunk spends part of the budget.
	budget := cfg.MaxTokens - headerTokens(sec.breadcrumb, counter)
	if budget < 1 {
		budget = 1
	}

	flush := func() {
		if len(pieces) == 0 {
			return
		}
		content := strings.Join(pieces, paragraphSeparator)
		chunks = append(chunks, rawChunk{
			sectionID:  sec.id,
			breadcrumb: sec.breadcrumb,
			content:    content,
			tokens:     counter.Count(content),
		})
		pieces = nil
		running = 0
	}

	for _, blk := range sec.blocks {
		if blk.atomic {
			// Atomic blocks are never split and never merged, whatever
			// their size.
			flush()
			chunks = append(chunks, rawChunk{
				sectionID:  sec.id,
				breadcrumb: sec.breadcrumb,
				content:    blk.text,
				tokens:     counter.Count(blk.text),
				atomic:     true,
			})
			continue
		}

		for _, paragraph := range splitParagraphs(blk.text) {
			paragraphTokens := counter.Count(paragraph)

			if paragraphTokens > budget {
				// Oversized paragraph: close the running chunk, then pack
				// its sentences with the same greedy accumulation.
				flush()
				for _, sentenceChunk := range packSentences(paragraph, counter, budget) {
					chunks = append(chunks, rawChunk{
						sectionID:  sec.id,
						breadcrumb: sec.breadcrumb,
						content:    sentenceChunk,
						tokens:     counter.Count(sentenceChunk),
					})
				}
				continue
			}

			if len(pieces) == 0 {
				pieces = append(pieces, paragraph)
				running = paragraphTokens
				continue
			}

			if running+sepTokens+paragraphTokens <= budget {
				pieces = append(pieces, paragraph)
				running += sepTokens + paragraphTokens
				continue
			}

			flush()
			pieces = append(pieces, paragraph)
			running = paragraphTokens
		}
	}

	flush()
	return chunks
}

// packSentences greedily accumulates sentences up to the given budget.
// A sentence that alone exceeds the budget is emitted as its own piece;
// sentences are the splitting floor.
func packSentences(paragraph string, counter token.Counter, budget int) []string {
	const separator = " "
	sepTokens := counter.Count(separator)

	var (
		out     []string
		pieces  []string
		running int
	)

	flush := func() {
		if len(pieces) == 0 {
			return
		}
		out = append(out, strings.Join(pieces, separator))
		pieces = nil
		running = 0
	}

	for _, sentence := range splitSentences(paragraph) {
		sentenceTokens := counter.Count(sentence)

		if len(pieces) == 0 {
			pieces = append(pieces, sentence)
			running = sentenceTokens
			if sentenceTokens > budget {
				flush()
			}
			continue
		}

		if running+sepTokens+sentenceTokens <= budget {
			pieces = append(pieces, sentence)
			running += sepTokens + sentenceTokens
			continue
		}

		flush()
		pieces = append(pieces, sentence)
		running = sentenceTokens
		if sentenceTokens > budget {
			flush()
		}
	}

	flush()
	return out
}

// splitParagraphs splits text on blank-line boundaries, trimming each piece.
func splitParagraphs(text string) []string {
	var out []string
	for _, piece := range strings.Split(text, "\n\n") {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// splitSentences splits text after runs of terminal punctuation followed by
// whitespace. A trailing fragment without terminal punctuation counts as a
// sentence. Deliberately locale-naive and deterministic.
func splitSentences(text string) []string {
	var out []string
	start := 0
	i := 0

	for i < len(text) {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}

		end := i + 1
		for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
			end++
		}

		if end < len(text) && !isSpaceByte(text[end]) {
			// Punctuation mid-word ("1.5", "e.g.x"): not a boundary.
			i = end
			continue
		}

		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			out = append(out, sentence)
		}
		for end < len(text) && isSpaceByte(text[end]) {
			end++
		}
		start = end
		i = end
	}

	if start < len(text) {
		if sentence := strings.TrimSpace(text[start:]); sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
