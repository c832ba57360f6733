package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := newFileStore(filepath.Join(t.TempDir(), "absent.json"))
	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !state.Empty() {
		t.Fatalf("expected empty state, got %v", state.Keys)
	}
}

func TestFileStoreRoundTripLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "latest_notice.json")
	store := newFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, domain.NewSeenState("Notice C", "Notice B", "Notice C")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, domain.NewSeenState("Notice D")); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(state.Keys, []string{"Notice D"}) {
		t.Fatalf("unexpected keys %v", state.Keys)
	}

	files, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected only the state file, found %d entries", len(files))
	}
}

func TestFileStoreTruncatedDocumentIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"keys":["Notice`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	state, err := newFileStore(path).Load(context.Background())
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
	if !state.Empty() {
		t.Fatalf("corrupt state must load as empty, got %v", state.Keys)
	}
}

func TestFileStoreReadsLegacyText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest_notice.txt")
	if err := os.WriteFile(path, []byte("Notice A\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	state, err := newFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(state.Keys, []string{"Notice A"}) {
		t.Fatalf("unexpected keys %v", state.Keys)
	}
}

func TestDecodeStateRejectsUnknownVersion(t *testing.T) {
	_, err := decodeState([]byte(`{"version":9,"keys":["a"]}`))
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestFileStoreKeepsKeyWhitespace(t *testing.T) {
	store := newFileStore(filepath.Join(t.TempDir(), "state.json"))
	want := domain.NewSeenState("Notice A ", " Notice B")
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Keys, want.Keys) {
		t.Fatalf("keys = %q, want %q", got.Keys, want.Keys)
	}
}
