// Package chunking splits markdown into token-bounded, context-preserving
// chunks for embedding.
//
// The engine is a pure function over (markdown, Config): it performs no I/O
// and, given identical input and config, produces byte-identical output.
// Processing happens in three passes:
//
//   - Section extraction: the markdown AST is walked top-level with a heading
//     stack; every content block lands in the section of its active
//     breadcrumb ("Heading > Subheading"). Tables, code blocks and raw HTML
//     are atomic; everything else is splittable.
//   - Packing: splittable content is split on paragraph boundaries and
//     greedily accumulated up to MaxTokens, recursing to sentence boundaries
//     for oversized paragraphs. Atomic blocks become chunks of their own,
//     whatever their size.
//   - Overlap: a chunk that follows another chunk of the same section is
//     prefixed with trailing sentences of its predecessor, budgeted by
//     OverlapTokens and trimmed to fit HardMaxTokens.
//
// Each final chunk carries a "Section: {breadcrumb}" header, a recomputed
// token count and a dense 0-based position.
package chunking
