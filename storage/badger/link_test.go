package badger

import (
	"context"
	"testing"

	"github.com/poiesic/shelfmark/core"
)

func TestLinkCreateIsIdempotent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	link := &core.EntityBookmarkLink{
		EntityId:       99,
		BookmarkId:     42,
		ContextSnippet: "reading Dune",
		Confidence:     0.9,
	}

	created, err := repos.Links.CreateLink(ctx, link)
	if err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}
	if !created {
		t.Fatal("Expected first link to be created")
	}

	// Re-linking the same pair keeps the original
	again, err := repos.Links.CreateLink(ctx, &core.EntityBookmarkLink{
		EntityId:       99,
		BookmarkId:     42,
		ContextSnippet: "different snippet",
		Confidence:     0.5,
	})
	if err != nil {
		t.Fatalf("Failed to re-link: %v", err)
	}
	if again {
		t.Fatal("Expected re-link to be a no-op")
	}

	links, err := repos.Links.ListByEntity(ctx, 99)
	if err != nil {
		t.Fatalf("Failed to list links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}
	if links[0].ContextSnippet != "reading Dune" {
		t.Fatalf("Expected original snippet kept, got %q", links[0].ContextSnippet)
	}
}

func TestLinkListByBookmark(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	pairs := []core.EntityBookmarkLink{
		{EntityId: 1, BookmarkId: 42},
		{EntityId: 2, BookmarkId: 42},
		{EntityId: 1, BookmarkId: 43},
	}
	for i := range pairs {
		if _, err := repos.Links.CreateLink(ctx, &pairs[i]); err != nil {
			t.Fatalf("Failed to create link: %v", err)
		}
	}

	links, err := repos.Links.ListByBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to list links: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("Expected 2 links, got %d", len(links))
	}
}

func TestLinkDeleteByEntity(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	for _, link := range []*core.EntityBookmarkLink{
		{EntityId: 1, BookmarkId: 42},
		{EntityId: 1, BookmarkId: 43},
		{EntityId: 2, BookmarkId: 42},
	} {
		if _, err := repos.Links.CreateLink(ctx, link); err != nil {
			t.Fatalf("Failed to create link: %v", err)
		}
	}

	if err := repos.Links.DeleteByEntity(ctx, 1); err != nil {
		t.Fatalf("Failed to delete links: %v", err)
	}

	gone, err := repos.Links.ListByEntity(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list links: %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("Expected no links, got %d", len(gone))
	}

	// Reverse index is cleaned too
	byBookmark, err := repos.Links.ListByBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to list links: %v", err)
	}
	if len(byBookmark) != 1 || byBookmark[0].EntityId != 2 {
		t.Fatalf("Expected only entity 2 linked to bookmark 42, got %d links", len(byBookmark))
	}
}
