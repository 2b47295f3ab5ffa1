package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/shelfmark/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Summarizer implements ai.Summarizer using OpenAI-compatible chat APIs.
type Summarizer struct {
	client        llms.Model
	maxInputChars int
	logger        *slog.Logger
}

// newSummarizer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newSummarizer(config *ai.Config) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.LLMHost),
		openai.WithToken("none"),
		openai.WithModel(config.LLMModel),
	)
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		client:        client,
		maxInputChars: config.MaxSummaryInputChars,
		logger:        slog.Default().With("component", "openai-summarizer"),
	}, nil
}

// NewSummarizer creates a new summarizer using the provided configuration.
//
// Returns ai.Summarizer interface to enforce abstraction.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config)
}

// Summarize generates a short prose summary of page content. The markdown is
// truncated to the configured input bound before prompting.
func (s *Summarizer) Summarize(ctx context.Context, title, markdown string) (string, error) {
	markdown = truncateString(markdown, s.maxInputChars)

	var input strings.Builder
	if title != "" {
		input.WriteString("Title: ")
		input.WriteString(title)
		input.WriteString("\n\n")
	}
	input.WriteString(markdown)

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(summaryPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(input.String()),
			},
		},
	}

	response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		s.logger.Error("failed to generate summary", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		s.logger.Warn("no choices returned from model")
		return "", errors.New("summarizer: model returned no choices")
	}

	summary := strings.TrimSpace(response.Choices[0].Content)
	s.logger.Debug("generated summary", "input_chars", input.Len(), "summary_chars", len(summary))
	return summary, nil
}
