package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/shelfmark/core"
	"github.com/poiesic/shelfmark/storage"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close(); backend.Close() })
	return repos
}

func TestBookmarkBasics(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	bookmark := &core.Bookmark{
		UserId: 1,
		URL:    "https://example.com/a",
		Title:  "A",
	}

	added, err := repos.Bookmarks.AddBookmarks(ctx, bookmark)
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if added[0].Status != core.BookmarkStatusPending {
		t.Fatalf("Expected pending status, got %s", added[0].Status)
	}
	if added[0].InsertedAt.IsZero() {
		t.Fatal("Expected InsertedAt to be set")
	}

	retrieved, err := repos.Bookmarks.GetBookmark(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get bookmark: %v", err)
	}
	if retrieved.URL != "https://example.com/a" {
		t.Fatalf("Expected URL to round-trip, got %q", retrieved.URL)
	}
}

func TestBookmarkDuplicateURL(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	_, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	_, err = repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// A different user may save the same URL
	_, err = repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 2, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Expected different user to save same URL, got %v", err)
	}
}

func TestBookmarkFindByUserAndURL(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	found, err := repos.Bookmarks.FindByUserAndURL(ctx, 1, "https://example.com/a")
	if err != nil {
		t.Fatalf("Failed to find bookmark: %v", err)
	}
	if found.Id != added[0].Id {
		t.Fatalf("Expected ID %d, got %d", added[0].Id, found.Id)
	}

	_, err = repos.Bookmarks.FindByUserAndURL(ctx, 2, "https://example.com/a")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for other user, got %v", err)
	}
}

func TestBookmarkUpdateStatusCAS(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}
	id := added[0].Id

	err = repos.Bookmarks.UpdateStatus(ctx, id, core.BookmarkStatusPending, core.BookmarkStatusMarkdownReady)
	if err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	// Same transition again must observe the conflict
	err = repos.Bookmarks.UpdateStatus(ctx, id, core.BookmarkStatusPending, core.BookmarkStatusMarkdownReady)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("Expected ErrStatusConflict, got %v", err)
	}

	retrieved, err := repos.Bookmarks.GetBookmark(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get bookmark: %v", err)
	}
	if retrieved.Status != core.BookmarkStatusMarkdownReady {
		t.Fatalf("Expected markdown_ready, got %s", retrieved.Status)
	}
}

func TestBookmarkAdvanceCAS(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}
	bookmark := added[0]

	bookmark.Markdown = "fetched content"
	err = repos.Bookmarks.AdvanceBookmark(ctx, bookmark, core.BookmarkStatusPending, core.BookmarkStatusMarkdownReady)
	if err != nil {
		t.Fatalf("Failed to advance bookmark: %v", err)
	}
	if bookmark.Status != core.BookmarkStatusMarkdownReady {
		t.Fatalf("Expected markdown_ready on the passed bookmark, got %s", bookmark.Status)
	}

	retrieved, err := repos.Bookmarks.GetBookmark(ctx, bookmark.Id)
	if err != nil {
		t.Fatalf("Failed to get bookmark: %v", err)
	}
	if retrieved.Status != core.BookmarkStatusMarkdownReady {
		t.Fatalf("Expected markdown_ready, got %s", retrieved.Status)
	}
	if retrieved.Markdown != "fetched content" {
		t.Fatalf("Expected stage output to persist, got %q", retrieved.Markdown)
	}

	// A stale copy compares against the stored status and writes nothing
	stale := &core.Bookmark{Id: bookmark.Id, UserId: 1, URL: "https://example.com/a", Markdown: "stale content"}
	err = repos.Bookmarks.AdvanceBookmark(ctx, stale, core.BookmarkStatusPending, core.BookmarkStatusMarkdownReady)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("Expected ErrStatusConflict, got %v", err)
	}

	retrieved, err = repos.Bookmarks.GetBookmark(ctx, bookmark.Id)
	if err != nil {
		t.Fatalf("Failed to get bookmark: %v", err)
	}
	if retrieved.Markdown != "fetched content" {
		t.Fatalf("Expected stored record untouched after conflict, got %q", retrieved.Markdown)
	}

	err = repos.Bookmarks.AdvanceBookmark(ctx, &core.Bookmark{Id: 9999}, core.BookmarkStatusPending, core.BookmarkStatusMarkdownReady)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestBookmarkSetFailed(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	if err := repos.Bookmarks.SetFailed(ctx, added[0].Id, "fetch timed out"); err != nil {
		t.Fatalf("Failed to set failed: %v", err)
	}

	retrieved, err := repos.Bookmarks.GetBookmark(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get bookmark: %v", err)
	}
	if retrieved.Status != core.BookmarkStatusFailed {
		t.Fatalf("Expected failed, got %s", retrieved.Status)
	}
	if retrieved.ErrorMessage != "fetch timed out" {
		t.Fatalf("Expected error message, got %q", retrieved.ErrorMessage)
	}
}

func TestBookmarkMarkEntitiesExtracted(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	if err := repos.Bookmarks.MarkEntitiesExtracted(ctx, added[0].Id); err != nil {
		t.Fatalf("Failed to mark extracted: %v", err)
	}
	// Marking again is a no-op
	if err := repos.Bookmarks.MarkEntitiesExtracted(ctx, added[0].Id); err != nil {
		t.Fatalf("Expected idempotent mark, got %v", err)
	}

	retrieved, err := repos.Bookmarks.GetBookmark(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get bookmark: %v", err)
	}
	if !retrieved.EntitiesExtracted {
		t.Fatal("Expected EntitiesExtracted to be set")
	}
}

func TestBookmarkListByUser(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	for _, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		if _, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: url}); err != nil {
			t.Fatalf("Failed to add bookmark: %v", err)
		}
	}
	if _, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 2, URL: "https://d.example"}); err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	list, err := repos.Bookmarks.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list bookmarks: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 bookmarks, got %d", len(list))
	}
}

func TestBookmarkDelete(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("Failed to add bookmark: %v", err)
	}

	if err := repos.Bookmarks.DeleteBookmarks(ctx, added[0].Id); err != nil {
		t.Fatalf("Failed to delete bookmark: %v", err)
	}

	_, err = repos.Bookmarks.GetBookmark(ctx, added[0].Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// URL index is cleaned up, so re-adding works
	if _, err := repos.Bookmarks.AddBookmarks(ctx, &core.Bookmark{UserId: 1, URL: "https://example.com/a"}); err != nil {
		t.Fatalf("Expected re-add after delete, got %v", err)
	}
}
