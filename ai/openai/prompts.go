package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/core"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {
            "type": "string"
          },
          "type": {
            "type": "string",
            "enum": ["book", "movie", "tv_show"]
          },
          "confidence": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          },
          "context": {
            "type": "string"
          },
          "year": {
            "type": "integer"
          },
          "author": {
            "type": "string"
          },
          "director": {
            "type": "string"
          },
          "language": {
            "type": "string"
          }
        },
        "required": ["name", "type", "confidence", "context"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract mentions of books, movies and TV shows from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Use the title exactly as it appears in the text; do not translate or normalize it.
- Type must be exactly one of: book, movie, tv_show.
- Confidence is a number from 0 to 1. Use high confidence only when the text clearly refers to a specific work, not a generic phrase.
- Context must be the sentence or phrase where the mention appears, at most 200 characters.
- Include year, author, director or language ONLY when the text explicitly states them near the mention. Never guess.
- Do not include works that are merely implied by topic. The title itself must appear in the text.
- If no works are mentioned, return "entities": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "I finally finished Dune by Frank Herbert last night, right before rewatching the 2021 movie."
Output:
{
  "entities": [
    {"name":"Dune","type":"book","confidence":0.95,"context":"I finally finished Dune by Frank Herbert last night","author":"Frank Herbert"},
    {"name":"Dune","type":"movie","confidence":0.9,"context":"right before rewatching the 2021 movie","year":2021}
  ]
}

Example (no mentions):
Input: "Here are ten tips for faster database queries."
Output:
{
  "entities": []
}`

const disambiguationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "decisions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entity_id": {
            "type": "string"
          },
          "selected_id": {
            "type": "string"
          },
          "confidence": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          },
          "reasoning": {
            "type": "string"
          }
        },
        "required": ["entity_id", "selected_id", "confidence", "reasoning"],
        "additionalProperties": false
      }
    }
  },
  "required": ["decisions"],
  "additionalProperties": false
}`

const disambiguationPromptTemplate = `You match media titles against catalog search results. For each entity below,
pick the catalog candidate that best matches the mention, or decline.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Return exactly one decision per entity, with entity_id copied verbatim from the input.
- selected_id must be the id of one of that entity's listed candidates, or "" to decline.
- Confidence is a number from 0 to 1 expressing how certain you are in the selection.
- A year, author, director or language hint that agrees with a candidate is a strong signal in its favor.
- When several candidates fit equally, prefer the more recent and more popular one.
- Decline with selected_id "" when no candidate plausibly matches the mention.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const summaryPrompt = `Summarize the given web page content in 2-4 sentences of plain prose.
State what the page is about and its key points. Do not use bullet points, headings or markdown.
Do not mention that you are summarizing. Output only the summary text.`

// buildExtractionPrompt creates the system prompt for entity extraction.
func buildExtractionPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate, extractionResponseSchema)
}

// buildDisambiguationPrompt creates the system prompt for batch disambiguation.
func buildDisambiguationPrompt() string {
	return fmt.Sprintf(disambiguationPromptTemplate, disambiguationResponseSchema)
}

// formatDisambiguationInput renders the batch of entities and their candidates
// as the human message body for the disambiguation call.
func formatDisambiguationInput(requests []ai.DisambiguationRequest) string {
	var b strings.Builder
	for i, req := range requests {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Entity %s: %q (%s)\n", req.EntityID.Hex(), req.Name, req.Type)
		if hints := formatHints(req.Hints); hints != "" {
			fmt.Fprintf(&b, "Hints: %s\n", hints)
		}
		b.WriteString("Candidates:\n")
		for _, c := range req.Candidates {
			fmt.Fprintf(&b, "- id=%s %s", c.ExternalID, formatCandidate(c))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatHints(h core.ExtractionHints) string {
	parts := make([]string, 0, 4)
	if h.Year != 0 {
		parts = append(parts, fmt.Sprintf("year=%d", h.Year))
	}
	if h.Author != "" {
		parts = append(parts, "author="+h.Author)
	}
	if h.Director != "" {
		parts = append(parts, "director="+h.Director)
	}
	if h.Language != "" {
		parts = append(parts, "language="+h.Language)
	}
	return strings.Join(parts, ", ")
}

func formatCandidate(c core.Candidate) string {
	parts := []string{fmt.Sprintf("%q", c.Title)}
	if c.Year != 0 {
		parts = append(parts, fmt.Sprintf("(%d)", c.Year))
	}
	if len(c.Authors) > 0 {
		parts = append(parts, "by "+strings.Join(c.Authors, ", "))
	}
	if len(c.Directors) > 0 {
		parts = append(parts, "dir. "+strings.Join(c.Directors, ", "))
	}
	if len(c.Creators) > 0 {
		parts = append(parts, "created by "+strings.Join(c.Creators, ", "))
	}
	if c.Language != "" {
		parts = append(parts, "lang "+c.Language)
	}
	if c.Popularity > 0 {
		parts = append(parts, fmt.Sprintf("popularity %.1f", c.Popularity))
	}
	return strings.Join(parts, " ")
}
