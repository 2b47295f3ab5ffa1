package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, cfg.EmbeddingHost, cfg.LLMHost)
	assert.NotEmpty(t, cfg.EmbeddingModel)
	assert.NotEmpty(t, cfg.LLMModel)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://ai.internal:9100"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithLLMModel("gpt-4o-mini"),
		WithMinConfidence(0.5),
	)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://ai.internal:9100/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://ai.internal:9100/v1", cfg.LLMHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, 0.5, cfg.MinConfidence)
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "adds v1 suffix", host: "http://localhost:11434", want: "http://localhost:11434/v1"},
		{name: "strips trailing slash first", host: "http://localhost:11434/", want: "http://localhost:11434/v1"},
		{name: "keeps existing v1", host: "http://localhost:11434/v1", want: "http://localhost:11434/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.host))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, tt.want, cfg.LLMHost)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing embedding host", mutate: func(c *Config) { c.EmbeddingHost = "" }, wantErr: true},
		{name: "missing llm host", mutate: func(c *Config) { c.LLMHost = "" }, wantErr: true},
		{name: "missing embedding model", mutate: func(c *Config) { c.EmbeddingModel = "" }, wantErr: true},
		{name: "missing llm model", mutate: func(c *Config) { c.LLMModel = "" }, wantErr: true},
		{name: "confidence above 1", mutate: func(c *Config) { c.MinConfidence = 1.5 }, wantErr: true},
		{name: "negative confidence", mutate: func(c *Config) { c.MinConfidence = -0.1 }, wantErr: true},
		{name: "negative summary limit", mutate: func(c *Config) { c.MaxSummaryInputChars = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
