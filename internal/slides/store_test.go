package slides

import (
	"errors"
	"fmt"
	"testing"
)

func contentSlide(id, title string) SlideRecord {
	return SlideRecord{
		ID:          id,
		Kind:        KindContent,
		Layout:      LayoutFullImage,
		Title:       title,
		BodyPoints:  []string{"point one", "point two"},
		AssetPrompt: "abstract gradient",
	}
}

func mustStore(t *testing.T, records ...SlideRecord) *Store {
	t.Helper()
	store, err := NewStore(records)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func TestNewStoreRejectsEmptyDeck(t *testing.T) {
	if _, err := NewStore(nil); !errors.Is(err, ErrEmptyDeck) {
		t.Fatalf("expected ErrEmptyDeck, got %v", err)
	}
}

func TestNewStoreRejectsDuplicateIDs(t *testing.T) {
	_, err := NewStore([]SlideRecord{contentSlide("s-1", "a"), contentSlide("s-1", "b")})
	if !errors.Is(err, ErrDuplicateSlideID) {
		t.Fatalf("expected ErrDuplicateSlideID, got %v", err)
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "original"))
	first, ok := store.Get("s-1")
	if !ok {
		t.Fatalf("expected slide present")
	}
	first.BodyPoints[0] = "mutated"
	first.Title = "mutated"

	second, _ := store.Get("s-1")
	if second.Title != "original" {
		t.Fatalf("stored title leaked a caller mutation: %q", second.Title)
	}
	if second.BodyPoints[0] != "point one" {
		t.Fatalf("stored body points share memory with caller copy")
	}
}

func TestUpdateOnMissingIDIsNoOp(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "keep"))
	_, ok := store.Update("s-gone", func(record SlideRecord) SlideRecord {
		record.Title = "should not apply"
		return record
	})
	if ok {
		t.Fatalf("expected update on missing id to report false")
	}
	if store.Len() != 1 {
		t.Fatalf("missing-id update must not change the deck, len=%d", store.Len())
	}
	record, _ := store.Get("s-1")
	if record.Title != "keep" {
		t.Fatalf("unrelated slide was modified: %q", record.Title)
	}
}

func TestUpdatePreservesRecordID(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "title"))
	updated, ok := store.Update("s-1", func(record SlideRecord) SlideRecord {
		record.ID = "hijacked"
		record.Title = "new title"
		return record
	})
	if !ok {
		t.Fatalf("expected update to succeed")
	}
	if updated.ID != "s-1" {
		t.Fatalf("record id must survive the transform, got %q", updated.ID)
	}
	if _, found := store.Get("hijacked"); found {
		t.Fatalf("transform must not introduce a new id")
	}
}

func TestInsertAfterPlacesRecordBehindTarget(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "first"), contentSlide("s-3", "third"))
	if err := store.InsertAfter("s-1", contentSlide("s-2", "second")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot := store.Snapshot()
	ids := []string{snapshot[0].ID, snapshot[1].ID, snapshot[2].ID}
	if ids[0] != "s-1" || ids[1] != "s-2" || ids[2] != "s-3" {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestInsertAfterEmptyIDAppends(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "first"))
	if err := store.InsertAfter("", contentSlide("s-2", "last")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot := store.Snapshot()
	if snapshot[len(snapshot)-1].ID != "s-2" {
		t.Fatalf("expected append at the end, got order %v", snapshot)
	}
}

func TestInsertAfterUnknownAnchorFails(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "first"))
	err := store.InsertAfter("s-missing", contentSlide("s-2", "second"))
	if !errors.Is(err, ErrSlideNotFound) {
		t.Fatalf("expected ErrSlideNotFound, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("failed insert must not grow the deck")
	}
}

func TestDeleteStopsAtSingleSlideFloor(t *testing.T) {
	records := make([]SlideRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, contentSlide(fmt.Sprintf("s-%d", i), fmt.Sprintf("slide %d", i)))
	}
	store := mustStore(t, records...)

	for i := 0; i < 9; i++ {
		if err := store.Delete(fmt.Sprintf("s-%d", i)); err != nil {
			t.Fatalf("delete %d failed: %v", i, err)
		}
	}
	if store.Len() != 1 {
		t.Fatalf("expected one remaining slide, got %d", store.Len())
	}
	if err := store.Delete("s-9"); !errors.Is(err, ErrLastSlide) {
		t.Fatalf("expected ErrLastSlide on the final record, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("rejected delete must leave the deck intact")
	}
}

func TestDeleteMissingIDFails(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "a"), contentSlide("s-2", "b"))
	if err := store.Delete("s-gone"); !errors.Is(err, ErrSlideNotFound) {
		t.Fatalf("expected ErrSlideNotFound, got %v", err)
	}
}

func TestMissingAssetsSkipsResolvedAndPending(t *testing.T) {
	withAsset := contentSlide("s-2", "has asset")
	withAsset.AssetURL = "data:image/png;base64,AAAA"
	store := mustStore(t, contentSlide("s-1", "needs asset"), withAsset, contentSlide("s-3", "also needs"))
	store.MarkPending("s-3")

	missing := store.MissingAssets()
	if len(missing) != 1 {
		t.Fatalf("expected exactly one missing asset, got %d", len(missing))
	}
	if missing[0].ID != "s-1" {
		t.Fatalf("unexpected work set: %v", missing)
	}
}

func TestMissingAssetsPreservesDeckOrder(t *testing.T) {
	store := mustStore(t, contentSlide("s-b", "b"), contentSlide("s-a", "a"), contentSlide("s-c", "c"))
	missing := store.MissingAssets()
	if missing[0].ID != "s-b" || missing[1].ID != "s-a" || missing[2].ID != "s-c" {
		t.Fatalf("work set must follow deck order, got %v", missing)
	}
}

func TestResolveAssetSetsURLAndForcesLayout(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "title"))
	store.MarkPending("s-1")
	if !store.ResolveAsset("s-1", "data:image/png;base64,BBBB", LayoutFullImage) {
		t.Fatalf("expected resolution to apply")
	}
	record, _ := store.Get("s-1")
	if record.AssetURL != "data:image/png;base64,BBBB" {
		t.Fatalf("unexpected asset url: %q", record.AssetURL)
	}
	if record.AssetPending {
		t.Fatalf("pending flag must clear on resolution")
	}
	if record.Layout != LayoutFullImage {
		t.Fatalf("unexpected layout: %q", record.Layout)
	}
}

func TestFailAssetClearsPendingAndKeepsPriorURL(t *testing.T) {
	record := contentSlide("s-1", "title")
	record.AssetURL = "data:image/png;base64,OLD"
	store := mustStore(t, record)
	store.MarkPending("s-1")
	if !store.FailAsset("s-1") {
		t.Fatalf("expected failure to apply")
	}
	got, _ := store.Get("s-1")
	if got.AssetPending {
		t.Fatalf("pending flag must clear on failure")
	}
	if got.AssetURL != "data:image/png;base64,OLD" {
		t.Fatalf("prior asset must survive a failed regeneration, got %q", got.AssetURL)
	}
}

func TestResolveAssetOnDeletedSlideIsNoOp(t *testing.T) {
	store := mustStore(t, contentSlide("s-1", "a"), contentSlide("s-2", "b"))
	store.MarkPending("s-1")
	if err := store.Delete("s-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if store.ResolveAsset("s-1", "data:image/png;base64,CCCC", LayoutFullImage) {
		t.Fatalf("resolution against a vanished id must be a no-op")
	}
	if store.Len() != 1 {
		t.Fatalf("no-op resolution must not resurrect the slide")
	}
}
