package testsupport

import (
	"context"
	"testing"

	"zapzap/internal/config"
	"zapzap/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedVideo inserts a source video and returns the stored record.
func SeedVideo(t testing.TB, store *records.Store, src records.SourceVideo) *records.Video {
	t.Helper()

	ctx := context.Background()
	if err := store.UpsertSource(ctx, src); err != nil {
		t.Fatalf("store.UpsertSource: %v", err)
	}
	video, err := store.Get(ctx, src.ID)
	if err != nil || video == nil {
		t.Fatalf("store.Get(%s): %v", src.ID, err)
	}
	return video
}

// MustApply applies a patch or fails the test.
func MustApply(t testing.TB, store *records.Store, id string, patch records.Patch) {
	t.Helper()

	if err := store.Apply(context.Background(), id, patch); err != nil {
		t.Fatalf("store.Apply(%s): %v", id, err)
	}
}

// MustGet fetches a record that must exist.
func MustGet(t testing.TB, store *records.Store, id string) *records.Video {
	t.Helper()

	video, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get(%s): %v", id, err)
	}
	if video == nil {
		t.Fatalf("store.Get(%s): not found", id)
	}
	return video
}
