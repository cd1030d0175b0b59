package catalog_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
	"github.com/kiroku-app/kiroku/internal/kiroku/catalog"
)

// TestInsertAndGet_RoundTrip verifies a fully-populated entry survives a
// write/read cycle, including the JSON-encoded list columns.
func TestInsertAndGet_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rating := 9.0
	eps := 24
	e := &catalog.Entry{
		Workspace:       action.WorkspaceMedia,
		Title:           "Inception",
		Medium:          "movie",
		Type:            "feature",
		Status:          "Finished",
		Genre:           []string{"sci-fi", "thriller"},
		Platform:        "Netflix",
		MyRating:        &rating,
		StartDate:       "2026-01-10",
		FinishDate:      "2026-01-10",
		EpisodesWatched: &eps,
		Language:        []string{"English"},
		ExternalID:      "tt1375666",
	}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.ID == "" {
		t.Fatal("Insert did not assign an ID")
	}

	got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != e.Title || got.Status != e.Status || got.Platform != e.Platform {
		t.Errorf("Get returned %+v, want fields of %+v", got, e)
	}
	if !reflect.DeepEqual(got.Genre, e.Genre) {
		t.Errorf("Genre = %v, want %v", got.Genre, e.Genre)
	}
	if got.MyRating == nil || *got.MyRating != rating {
		t.Errorf("MyRating = %v, want %v", got.MyRating, rating)
	}
	if got.EpisodesWatched == nil || *got.EpisodesWatched != eps {
		t.Errorf("EpisodesWatched = %v, want %v", got.EpisodesWatched, eps)
	}
}

// TestInsert_Validation verifies the two structural guards on Insert.
func TestInsert_Validation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, &catalog.Entry{Workspace: action.WorkspaceMedia, Title: "  "}); err == nil {
		t.Error("Insert accepted an empty title")
	}
	if err := s.Insert(ctx, &catalog.Entry{Workspace: "books", Title: "x"}); err == nil {
		t.Error("Insert accepted an unknown workspace")
	}
}

// TestPatch_PartialUpdate verifies only the supplied whitelisted fields
// change and everything else is preserved.
func TestPatch_PartialUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &catalog.Entry{Workspace: action.WorkspaceMedia, Title: "Inception", Status: "Watching"}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.Patch(ctx, e.ID, map[string]any{
		"status":    "Finished",
		"my_rating": 9.0,
		"id":        "evil-overwrite", // not whitelisted, must be ignored
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "Finished" {
		t.Errorf("Status = %q, want %q", got.Status, "Finished")
	}
	if got.MyRating == nil || *got.MyRating != 9.0 {
		t.Errorf("MyRating = %v, want 9", got.MyRating)
	}
	if got.Title != "Inception" {
		t.Errorf("Title changed to %q on a patch that did not include it", got.Title)
	}
}

// TestPatch_Missing verifies ErrNotFound on a patch against a missing row.
func TestPatch_Missing(t *testing.T) {
	s := newStore(t)
	err := s.Patch(context.Background(), "no-such-id", map[string]any{"status": "Finished"})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Patch on missing row: err = %v, want ErrNotFound", err)
	}
}

// TestDelete verifies removal and the not-found case.
func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &catalog.Entry{Workspace: action.WorkspaceFood, Title: "Noma"}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, e.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, e.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

// TestRecent_OrderAndWorkspaceIsolation verifies newest-first ordering and
// that workspaces never bleed into each other's snapshots.
func TestRecent_OrderAndWorkspaceIsolation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, title := range []string{"Old Movie", "New Movie"} {
		if err := s.Insert(ctx, &catalog.Entry{Workspace: action.WorkspaceMedia, Title: title}); err != nil {
			t.Fatalf("Insert %q: %v", title, err)
		}
		time.Sleep(5 * time.Millisecond) // distinct created_at
	}
	if err := s.Insert(ctx, &catalog.Entry{Workspace: action.WorkspaceFood, Title: "Noma"}); err != nil {
		t.Fatalf("Insert food entry: %v", err)
	}

	entries, err := s.Recent(ctx, action.WorkspaceMedia, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d media entries, want 2", len(entries))
	}
	if entries[0].Title != "New Movie" || entries[1].Title != "Old Movie" {
		t.Errorf("Recent order = [%q %q], want newest first", entries[0].Title, entries[1].Title)
	}

	matches, err := s.Matches(ctx, action.WorkspaceFood, 10)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(matches) != 1 || matches[0].Title != "Noma" {
		t.Errorf("food Matches = %+v, want just Noma", matches)
	}
}

// TestCreateFromPayload verifies the payload-to-entry mapping used by the
// batch executor, including type coercion and unknown-key dropping.
func TestCreateFromPayload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.CreateFromPayload(ctx, action.WorkspaceMedia, action.Payload{
		"title":          "Dune Part 3",
		"status":         "Planned",
		"my_rating":      8.0,
		"total_episodes": float64(1), // JSON numbers arrive as float64
		"genre":          []any{"sci-fi"},
		"language":       "English", // bare string tolerated for list fields
		"hallucinated":   "dropped",
	})
	if err != nil {
		t.Fatalf("CreateFromPayload: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "Planned" || got.Title != "Dune Part 3" {
		t.Errorf("created entry = %+v, want payload fields applied", got)
	}
	if got.TotalEpisodes == nil || *got.TotalEpisodes != 1 {
		t.Errorf("TotalEpisodes = %v, want 1", got.TotalEpisodes)
	}
	if !reflect.DeepEqual(got.Language, []string{"English"}) {
		t.Errorf("Language = %v, want [English]", got.Language)
	}

	// Type mismatch on a known key must fail loudly.
	if _, err := s.CreateFromPayload(ctx, action.WorkspaceMedia, action.Payload{
		"title":     "Bad",
		"my_rating": "nine",
	}); err == nil {
		t.Error("CreateFromPayload accepted a string rating")
	}
}
