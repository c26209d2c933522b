package testsupport

import (
	"context"
	"testing"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/timeline"
	"github.com/wenyongqd/anniversary/internal/timelinestore"
)

// MustOpenStore opens a timelinestore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *timelinestore.Store {
	t.Helper()

	store, err := timelinestore.Open(cfg)
	if err != nil {
		t.Fatalf("timelinestore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedEntries saves entries into store.
func SeedEntries(t testing.TB, store *timelinestore.Store, entries ...timeline.PhotoEntry) {
	t.Helper()

	if err := store.Save(context.Background(), entries); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
}
