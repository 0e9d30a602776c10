package records

import (
	"context"
	"testing"
	"time"
)

func newCacheStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(nil, 4)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	return store
}

func TestBindingCacheReturnsCopies(t *testing.T) {
	store := newCacheStore(t)

	store.cacheBinding("c1", &ChannelBinding{ChannelID: "c1", MainPlaylistID: "M"}, store.bindingGeneration())
	store.cacheBinding("c2", nil, store.bindingGeneration())

	binding, err := store.Binding(context.Background(), "c1")
	if err != nil || binding == nil {
		t.Fatalf("Binding() = %v, %v", binding, err)
	}
	binding.MainPlaylistID = "changed"

	binding, _ = store.Binding(context.Background(), "c1")
	if binding.MainPlaylistID != "M" {
		t.Errorf("cached binding was mutated: %+v", binding)
	}

	binding, err = store.Binding(context.Background(), "c2")
	if err != nil || binding != nil {
		t.Errorf("Binding() for unwatched channel = %v, %v", binding, err)
	}
}

func TestBindingCacheSkipsReadsOlderThanWrites(t *testing.T) {
	store := newCacheStore(t)

	// a read starts, a replacement is written, then the read finishes
	generation := store.bindingGeneration()
	store.invalidateBinding("c1")
	store.cacheBinding("c1", &ChannelBinding{ChannelID: "c1", MainPlaylistID: "old"}, generation)

	if binding, ok := store.cachedBinding("c1"); ok {
		t.Errorf("stale binding was cached: %+v", binding)
	}

	store.cacheBinding("c1", &ChannelBinding{ChannelID: "c1", MainPlaylistID: "new"}, store.bindingGeneration())
	if binding, ok := store.cachedBinding("c1"); !ok || binding.MainPlaylistID != "new" {
		t.Errorf("cachedBinding() = %+v, %v", binding, ok)
	}
}

func TestBindingCacheExpires(t *testing.T) {
	store := newCacheStore(t)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.cacheBinding("c1", &ChannelBinding{ChannelID: "c1", MainPlaylistID: "M"}, store.bindingGeneration())

	now = now.Add(bindingTTL - time.Second)
	if _, ok := store.cachedBinding("c1"); !ok {
		t.Fatal("binding expired early")
	}

	now = now.Add(time.Second)
	if _, ok := store.cachedBinding("c1"); ok {
		t.Error("binding outlived its ttl")
	}
}
