package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/wordgate/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenSeedsSingletons(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	counters, err := db.ReadCounters(ctx)
	if err != nil {
		t.Fatalf("ReadCounters on fresh db: %v", err)
	}
	if counters.Day != 0 || counters.NewShown != 0 {
		t.Errorf("fresh counters = %+v, want zeroes", counters)
	}

	prefs, err := db.ReadPrefs(ctx)
	if err != nil {
		t.Fatalf("ReadPrefs on fresh db: %v", err)
	}
	if prefs != domain.DefaultPrefs() {
		t.Errorf("fresh prefs = %+v, want defaults %+v", prefs, domain.DefaultPrefs())
	}
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.InsertItem(ctx, "der Hund", "the dog")
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	item, err := db.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item == nil {
		t.Fatal("GetItem returned nil for an existing item")
	}
	if item.Word != "der Hund" || item.Translation != "the dog" {
		t.Errorf("item = %q/%q, want der Hund/the dog", item.Word, item.Translation)
	}
	if !item.State.IsNew() || item.State.DueAt != 0 || item.State.CardJSON != "" {
		t.Errorf("fresh item state = %+v, want new with no card", item.State)
	}

	if err := db.UpdateItemText(ctx, id, "der Hund", "the hound"); err != nil {
		t.Fatalf("UpdateItemText: %v", err)
	}
	item, err = db.GetItem(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Translation != "the hound" {
		t.Errorf("translation after update = %q, want the hound", item.Translation)
	}

	if err := db.DeleteItem(ctx, id); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	item, err = db.GetItem(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Error("GetItem after delete returned an item")
	}
}

func TestUpdateMissingItem(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	err := db.UpdateItemText(ctx, 99, "a", "b")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("UpdateItemText on missing item: got %v, want ErrItemNotFound", err)
	}
}

func TestFindItemByHash(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.InsertImportedItem(ctx, "katze", "cat", "hash-1", mustSource(t, db))
	if err != nil {
		t.Fatalf("InsertImportedItem: %v", err)
	}

	item, err := db.FindItemByHash(ctx, "hash-1")
	if err != nil {
		t.Fatal(err)
	}
	if item == nil || item.ID != id {
		t.Fatalf("FindItemByHash = %v, want item %d", item, id)
	}

	item, err = db.FindItemByHash(ctx, "no-such-hash")
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Error("FindItemByHash for unknown hash returned an item")
	}
}

func TestCountAndPickNew(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	var ids []int64
	for _, w := range []string{"eins", "zwei", "drei"} {
		id, err := db.InsertItem(ctx, w, w)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	n, err := db.CountNew(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("CountNew = %d, want 3", n)
	}

	id, ok, err := db.PickNewIDByOffset(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != ids[1] {
		t.Errorf("PickNewIDByOffset(1) = %d/%v, want %d/true", id, ok, ids[1])
	}

	// Offset past the end: ok is false, not an error.
	_, ok, err = db.PickNewIDByOffset(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("PickNewIDByOffset past the end reported ok")
	}

	// A graded item leaves the new pool.
	if err := db.ApplyReview(ctx, ApplyReviewParams{
		ID: ids[0], CardJSON: "{}", DueAt: 1, ReviewedAt: 1, Correct: true, WasNew: true,
	}); err != nil {
		t.Fatal(err)
	}
	n, err = db.CountNew(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountNew after grading = %d, want 2", n)
	}
}

func TestDueQueries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC).UnixMilli()

	makeDue := func(word string, dueAt int64) int64 {
		t.Helper()
		id, err := db.InsertItem(ctx, word, word)
		if err != nil {
			t.Fatal(err)
		}
		if err := db.ApplyReview(ctx, ApplyReviewParams{
			ID: id, CardJSON: "{}", DueAt: dueAt, ReviewedAt: now - 1000, Correct: true, WasNew: true,
		}); err != nil {
			t.Fatal(err)
		}
		return id
	}

	later := makeDue("later", now-100)
	earliest := makeDue("earliest", now-500)
	makeDue("future", now+100)

	// A never-reviewed item must not count as due.
	if _, err := db.InsertItem(ctx, "brandnew", "brandnew"); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountDue(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("CountDue = %d, want 2", n)
	}

	id, ok, err := db.PickDueID(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != earliest {
		t.Errorf("PickDueID = %d/%v, want earliest-due %d", id, ok, earliest)
	}

	altID, ok, err := db.PickOtherID(ctx, earliest)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || altID == earliest {
		t.Errorf("PickOtherID = %d/%v, want some id other than %d", altID, ok, earliest)
	}
	_ = later
}

func TestApplyReviewTransaction(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.InsertItem(ctx, "apfel", "apple")
	if err != nil {
		t.Fatal(err)
	}

	err = db.ApplyReview(ctx, ApplyReviewParams{
		ID:         id,
		CardJSON:   `{"state":1}`,
		DueAt:      5000,
		ReviewedAt: 4000,
		Correct:    false,
		WasNew:     true,
	})
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}

	item, err := db.GetItem(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if item.State.CardJSON != `{"state":1}` || item.State.DueAt != 5000 || item.State.LastShownAt != 4000 {
		t.Errorf("state after review = %+v", item.State)
	}
	if item.State.CorrectCount != 0 || item.State.IncorrectCount != 1 {
		t.Errorf("counts = %d/%d, want 0/1", item.State.CorrectCount, item.State.IncorrectCount)
	}

	// The same transaction bumps the day counters.
	counters, err := db.ReadCounters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counters.NewShown != 1 || counters.ReviewShown != 0 || counters.ReviewsSinceLastNew != 0 {
		t.Errorf("counters = %+v, want new_shown=1 only", counters)
	}

	// A review of a graded item bumps the review side instead.
	if err := db.ApplyReview(ctx, ApplyReviewParams{
		ID: id, CardJSON: "{}", DueAt: 6000, ReviewedAt: 5500, Correct: true, WasNew: false,
	}); err != nil {
		t.Fatal(err)
	}
	counters, err = db.ReadCounters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counters.ReviewShown != 1 || counters.ReviewsSinceLastNew != 1 {
		t.Errorf("counters after review = %+v, want review_shown=1, reviews_since_new=1", counters)
	}
}

func TestApplyReviewMissingItem(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	err := db.ApplyReview(ctx, ApplyReviewParams{ID: 123, CardJSON: "{}"})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("ApplyReview on missing item: got %v, want ErrItemNotFound", err)
	}

	// The aborted transaction must not have bumped the counters.
	counters, err := db.ReadCounters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counters.NewShown != 0 || counters.ReviewShown != 0 {
		t.Errorf("counters bumped by failed review: %+v", counters)
	}
}

func TestCountersResetAndMark(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if err := db.MarkReviewShown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkReviewShown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkNewShown(ctx); err != nil {
		t.Fatal(err)
	}

	counters, err := db.ReadCounters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counters.NewShown != 1 || counters.ReviewShown != 2 {
		t.Errorf("counters = %+v, want new=1 review=2", counters)
	}
	// Showing a new item restarts the reviews-since-new run.
	if counters.ReviewsSinceLastNew != 0 {
		t.Errorf("reviews_since_new = %d, want 0 after a new item", counters.ReviewsSinceLastNew)
	}

	if err := db.ResetCountersFor(ctx, 20260102); err != nil {
		t.Fatal(err)
	}
	counters, err = db.ReadCounters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counters.Day != 20260102 || counters.NewShown != 0 || counters.ReviewShown != 0 {
		t.Errorf("counters after reset = %+v, want day stamped and zeroed", counters)
	}
}

func TestPrefSettersClamp(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	tests := []struct {
		name string
		set  func() error
		get  func(domain.LearningPrefs) int
		want int
	}{
		{"new per day above max", func() error { return db.SetNewPerDay(ctx, 5000) },
			func(p domain.LearningPrefs) int { return p.NewPerDay }, domain.MaxNewPerDay},
		{"new per day negative", func() error { return db.SetNewPerDay(ctx, -3) },
			func(p domain.LearningPrefs) int { return p.NewPerDay }, 0},
		{"review per day above max", func() error { return db.SetReviewPerDay(ctx, 99999) },
			func(p domain.LearningPrefs) int { return p.ReviewPerDay }, domain.MaxReviewPerDay},
		{"overlay interval in range", func() error { return db.SetOverlayInterval(ctx, 30) },
			func(p domain.LearningPrefs) int { return p.OverlayInterval }, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); err != nil {
				t.Fatalf("setter: %v", err)
			}
			prefs, err := db.ReadPrefs(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got := tt.get(prefs); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetMixModeFallsBackToMix(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if err := db.SetMixMode(ctx, domain.MixModeNewFirst); err != nil {
		t.Fatal(err)
	}
	prefs, err := db.ReadPrefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Mix != domain.MixModeNewFirst {
		t.Errorf("mix = %q, want new_first", prefs.Mix)
	}

	if err := db.SetMixMode(ctx, domain.MixMode("bogus")); err != nil {
		t.Fatal(err)
	}
	prefs, err = db.ReadPrefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Mix != domain.MixModeMix {
		t.Errorf("mix after bogus value = %q, want mix", prefs.Mix)
	}
}

func mustSource(t *testing.T, db *DB) int64 {
	t.Helper()
	id, err := db.InsertSource(context.Background(), "/tmp/lists", "local")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}
	return id
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.InsertSource(ctx, "https://example.com/lists.git", "git")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}

	src, err := db.FindSourceByPath(ctx, "https://example.com/lists.git")
	if err != nil {
		t.Fatal(err)
	}
	if src == nil || src.ID != id || src.Type != "git" {
		t.Fatalf("FindSourceByPath = %+v, want source %d", src, id)
	}
	if src.LastScanned.Valid {
		t.Error("fresh source already has a last-scanned time")
	}

	if err := db.UpdateSourceLastScanned(ctx, id); err != nil {
		t.Fatal(err)
	}
	src, err = db.FindSourceByPath(ctx, "https://example.com/lists.git")
	if err != nil {
		t.Fatal(err)
	}
	if !src.LastScanned.Valid {
		t.Error("last-scanned not recorded")
	}

	all, err := db.GetAllSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("GetAllSources = %d sources, want 1", len(all))
	}
}

func TestDeleteSourceRemovesItems(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	srcID, err := db.InsertSource(ctx, "/tmp/lists", "local")
	if err != nil {
		t.Fatal(err)
	}
	itemID, err := db.InsertImportedItem(ctx, "baum", "tree", "hash-baum", srcID)
	if err != nil {
		t.Fatal(err)
	}
	manualID, err := db.InsertItem(ctx, "manuell", "manual")
	if err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteSource(ctx, srcID); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}

	item, err := db.GetItem(ctx, itemID)
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Error("imported item survived its source's deletion")
	}
	item, err = db.GetItem(ctx, manualID)
	if err != nil {
		t.Fatal(err)
	}
	if item == nil {
		t.Error("manually added item deleted along with an unrelated source")
	}
}
