package badger

import (
	"context"
	"testing"

	"github.com/poiesic/shelfmark/core"
)

func TestChunkReplaceAndGet(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	chunks := []*core.Chunk{
		{Position: 0, Content: "first", TokenCount: 1},
		{Position: 1, Content: "second", TokenCount: 1},
		{Position: 2, Content: "third", TokenCount: 1},
	}

	stored, err := repos.Chunks.ReplaceChunks(ctx, 42, chunks...)
	if err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}
	for _, chunk := range stored {
		if chunk.Id == 0 {
			t.Fatal("Expected non-zero chunk ID")
		}
		if chunk.BookmarkId != 42 {
			t.Fatalf("Expected bookmark ID 42, got %d", chunk.BookmarkId)
		}
	}

	retrieved, err := repos.Chunks.GetChunksByBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(retrieved) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(retrieved))
	}
	for i, chunk := range retrieved {
		if chunk.Position != i {
			t.Fatalf("Expected position %d at index %d, got %d", i, i, chunk.Position)
		}
	}
}

func TestChunkReplaceDropsOldChunks(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	old := []*core.Chunk{
		{Position: 0, Content: "old a", Vector: []float32{0.1}},
		{Position: 1, Content: "old b", Vector: []float32{0.2}},
		{Position: 2, Content: "old c", Vector: []float32{0.3}},
	}
	if _, err := repos.Chunks.ReplaceChunks(ctx, 42, old...); err != nil {
		t.Fatalf("Failed to store old chunks: %v", err)
	}

	// The replacement is shorter; stale positions must not survive
	fresh := []*core.Chunk{
		{Position: 0, Content: "new a"},
	}
	if _, err := repos.Chunks.ReplaceChunks(ctx, 42, fresh...); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}

	retrieved, err := repos.Chunks.GetChunksByBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(retrieved) != 1 {
		t.Fatalf("Expected 1 chunk after replace, got %d", len(retrieved))
	}
	if retrieved[0].Content != "new a" {
		t.Fatalf("Expected fresh content, got %q", retrieved[0].Content)
	}
	if retrieved[0].Vector != nil {
		t.Fatal("Expected replacement chunk to have no embedding")
	}
}

func TestChunkUpdateAttachesVector(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	stored, err := repos.Chunks.ReplaceChunks(ctx, 42, &core.Chunk{Position: 0, Content: "text"})
	if err != nil {
		t.Fatalf("Failed to store chunk: %v", err)
	}

	stored[0].Vector = []float32{0.5, 0.6}
	if _, err := repos.Chunks.UpdateChunks(ctx, stored[0]); err != nil {
		t.Fatalf("Failed to update chunk: %v", err)
	}

	retrieved, err := repos.Chunks.GetChunksByBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(retrieved[0].Vector) != 2 {
		t.Fatalf("Expected vector of length 2, got %d", len(retrieved[0].Vector))
	}
}

func TestChunkDeleteByBookmark(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	if _, err := repos.Chunks.ReplaceChunks(ctx, 42, &core.Chunk{Position: 0, Content: "a"}); err != nil {
		t.Fatalf("Failed to store chunk: %v", err)
	}
	if _, err := repos.Chunks.ReplaceChunks(ctx, 43, &core.Chunk{Position: 0, Content: "b"}); err != nil {
		t.Fatalf("Failed to store chunk: %v", err)
	}

	if err := repos.Chunks.DeleteByBookmark(ctx, 42); err != nil {
		t.Fatalf("Failed to delete chunks: %v", err)
	}

	gone, err := repos.Chunks.GetChunksByBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("Expected no chunks, got %d", len(gone))
	}

	// Other bookmarks are untouched
	kept, err := repos.Chunks.GetChunksByBookmark(ctx, 43)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("Expected 1 chunk for other bookmark, got %d", len(kept))
	}
}
