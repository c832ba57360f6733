package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	storeRaw, err := openBolt(path)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	ctx := context.Background()
	state, err := store.Load(ctx)
	if err != nil || !state.Empty() {
		t.Fatalf("expected empty state on first load, got %v err=%v", state.Keys, err)
	}

	if err := store.Save(ctx, domain.NewSeenState("Notice C", "Notice B")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	state, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(state.Keys, []string{"Notice C", "Notice B"}) {
		t.Fatalf("unexpected keys %v", state.Keys)
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	first, err := openBolt(path)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	if err := first.Save(ctx, domain.NewSeenState("A")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := openBolt(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	state, err := second.Load(ctx)
	if err != nil || !reflect.DeepEqual(state.Keys, []string{"A"}) {
		t.Fatalf("expected [A], got %v err=%v", state.Keys, err)
	}
}

func TestNewStoreSupportsMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "memory", Options{})
	if err != nil {
		t.Fatalf("NewStore memory: %v", err)
	}
	if err := store.Save(context.Background(), domain.NewSeenState("x", "x")); err != nil {
		t.Fatalf("memory store Save: %v", err)
	}
	state, _ := store.Load(context.Background())
	if !reflect.DeepEqual(state.Keys, []string{"x"}) {
		t.Fatalf("unexpected memory state %v", state.Keys)
	}
}

func TestNewStoreValidatesOptions(t *testing.T) {
	ctx := context.Background()
	if _, err := NewStore(ctx, "file", Options{}); err == nil {
		t.Fatalf("expected error for file store without path")
	}
	if _, err := NewStore(ctx, "bbolt", Options{}); err == nil {
		t.Fatalf("expected error for bbolt store without path")
	}
	if _, err := NewStore(ctx, "sqlite", Options{}); err == nil {
		t.Fatalf("expected error for sqlite store without dsn")
	}
	if _, err := NewStore(ctx, "redis", Options{Path: "x"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
