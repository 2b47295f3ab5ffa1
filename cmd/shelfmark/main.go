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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/shelfmark"
	"github.com/poiesic/shelfmark/ai"
	"github.com/poiesic/shelfmark/ai/openai"
	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/queue"
	"github.com/poiesic/shelfmark/reembed"
)

func main() {
	// Optional .env in the working directory
	godotenv.Load()

	app := &cli.App{
		Name:   "shelfmark",
		Usage:  "Bookmark ingestion and media entity enrichment",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Save a bookmark and process it to completion",
				Action: addCommand,
				Flags: append(libraryFlags(),
					&cli.Uint64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID owning the bookmark",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "url",
						Usage:    "URL to save",
						Required: true,
					},
				),
			},
			{
				Name:   "process",
				Usage:  "Process a user's unfinished bookmarks and pending entities",
				Action: processCommand,
				Flags: append(libraryFlags(),
					&cli.Uint64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID to process",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Messages processed in parallel",
						Value: 4,
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show a user's bookmarks and entities",
				Action: statusCommand,
				Flags: append(libraryFlags(),
					&cli.Uint64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID to inspect",
						Required: true,
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate embeddings for a user's chunks",
				Action: reembedCommand,
				Flags: append(libraryFlags(),
					&cli.Uint64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID whose chunks to reembed",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Chunks embedded per batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for retry backoff",
						Value: time.Second,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// libraryFlags are shared by every command that opens the library.
func libraryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the storage directory",
			EnvVars:  []string{"SHELFMARK_DB"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "llm-host",
			Usage:   "Chat/generation service host URL",
			EnvVars: []string{"SHELFMARK_LLM_HOST"},
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "llm-model",
			Usage:   "Chat/generation model name",
			EnvVars: []string{"SHELFMARK_LLM_MODEL"},
			Value:   "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL (defaults to llm-host)",
			EnvVars: []string{"SHELFMARK_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"SHELFMARK_EMBEDDING_MODEL"},
			Value:   "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "tmdb-api-key",
			Usage:   "API key for the movie/TV catalog",
			EnvVars: []string{"TMDB_API_KEY"},
		},
	}
}

func buildAIConfig(c *cli.Context) (*ai.Config, error) {
	embeddingHost := c.String("embedding-host")
	if embeddingHost == "" {
		embeddingHost = c.String("llm-host")
	}

	aiConfig := ai.NewConfig(
		ai.WithLLMHost(c.String("llm-host")),
		ai.WithLLMModel(c.String("llm-model")),
		ai.WithEmbeddingHost(embeddingHost),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return aiConfig, nil
}

func openLibrary(c *cli.Context) (*shelfmark.Library, error) {
	aiConfig, err := buildAIConfig(c)
	if err != nil {
		return nil, err
	}

	opts := []shelfmark.LibraryOption{shelfmark.WithAIConfig(aiConfig)}
	if key := c.String("tmdb-api-key"); key != "" {
		opts = append(opts, shelfmark.WithTMDBAPIKey(key))
	}

	library, err := shelfmark.NewLibrary(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return library, nil
}

// drain processes queued messages until none remain.
func drain(ctx context.Context, source *queue.Memory, dispatcher *queue.Dispatcher) error {
	for source.Len() > 0 {
		batch, err := source.Receive(ctx, 16)
		if err != nil {
			return err
		}
		dispatcher.ProcessBatch(ctx, batch)
	}
	return nil
}

func addCommand(c *cli.Context) error {
	ctx := context.Background()

	library, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer library.Close()

	userID := core.ID(c.Uint64("user"))
	url := c.String("url")

	added, err := library.BookmarkRepository().AddBookmarks(ctx, &core.Bookmark{
		UserId: userID,
		URL:    url,
	})
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	bookmark := added[0]

	source := queue.NewMemory()
	defer source.Close()

	dispatcher, err := library.NewDispatcher(source, source)
	if err != nil {
		return err
	}
	defer dispatcher.Release()

	if err := source.Enqueue(ctx, queue.Message{
		Type:       queue.MessageTypeIngest,
		BookmarkID: bookmark.Id,
		UserID:     userID,
		URL:        url,
	}); err != nil {
		return err
	}
	if err := drain(ctx, source, dispatcher); err != nil {
		return err
	}

	processed, err := library.BookmarkRepository().GetBookmark(ctx, bookmark.Id)
	if err != nil {
		return err
	}

	fmt.Printf("Bookmark %d: %s\n", processed.Id, processed.Status)
	if processed.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", processed.ErrorMessage)
	}
	return nil
}

func processCommand(c *cli.Context) error {
	ctx := context.Background()

	library, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer library.Close()

	userID := core.ID(c.Uint64("user"))

	source := queue.NewMemory()
	defer source.Close()

	dispatcher, err := library.NewDispatcher(source, source,
		queue.WithConcurrency(c.Int("concurrency")))
	if err != nil {
		return err
	}
	defer dispatcher.Release()

	bookmarks, err := library.BookmarkRepository().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	queued := 0
	for _, bookmark := range bookmarks {
		switch bookmark.Status {
		case core.BookmarkStatusDone, core.BookmarkStatusFailed:
			continue
		}
		if err := source.Enqueue(ctx, queue.Message{
			Type:       queue.MessageTypeIngest,
			BookmarkID: bookmark.Id,
			UserID:     userID,
			URL:        bookmark.URL,
		}); err != nil {
			return err
		}
		queued++
	}

	// Pick up entities stranded by earlier runs as well.
	if err := source.Enqueue(ctx, queue.Message{
		Type:   queue.MessageTypeEntityEnrichment,
		UserID: userID,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Processing %d bookmarks for user %d\n", queued, userID)
	if err := drain(ctx, source, dispatcher); err != nil {
		return err
	}

	if dead := source.DeadLetters(); len(dead) > 0 {
		fmt.Fprintf(os.Stderr, "%d messages exhausted their delivery attempts\n", len(dead))
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	library, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer library.Close()

	userID := core.ID(c.Uint64("user"))

	bookmarks, err := library.BookmarkRepository().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Bookmarks (%d):\n", len(bookmarks))
	for _, bookmark := range bookmarks {
		fmt.Printf("  %6d  %-14s  %s\n", bookmark.Id, bookmark.Status, bookmark.URL)
		if bookmark.ErrorMessage != "" {
			fmt.Printf("          error: %s\n", bookmark.ErrorMessage)
		}
	}

	entityList, err := library.EntityRepository().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Entities (%d):\n", len(entityList))
	for _, entity := range entityList {
		line := fmt.Sprintf("  %6d  %-16s  %s (%s)", entity.Id, entity.Status, entity.Name, entity.Type)
		if entity.ExternalID != "" {
			line += "  -> " + entity.ExternalID
		}
		fmt.Println(line)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	aiConfig, err := buildAIConfig(c)
	if err != nil {
		return err
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	library, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer library.Close()

	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	reembedder := reembed.NewReembedder(
		library.BookmarkRepository(),
		library.ChunkRepository(),
		embedder,
		config,
		os.Stderr,
	)

	return reembedder.Run(ctx, core.ID(c.Uint64("user")))
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
