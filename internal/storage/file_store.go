package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// fileStore keeps the state in a single JSON file replaced by rename.
type fileStore struct {
	path string
	now  func() time.Time
}

func newFileStore(path string) *fileStore {
	return &fileStore{path: path, now: time.Now}
}

func (f *fileStore) Close() error { return nil }

// Load reads the state file. A missing file is an empty state.
func (f *fileStore) Load(ctx context.Context) (domain.SeenState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SeenState{}, err
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.SeenState{}, nil
	}
	if err != nil {
		return domain.SeenState{}, fmt.Errorf("read state file: %w", err)
	}
	return decodeState(raw)
}

// Save writes to a sibling temp file, syncs it and renames it over the
// target, so readers see either the old or the new document.
func (f *fileStore) Save(ctx context.Context, state domain.SeenState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeState(state, f.now())
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	committed = true
	return nil
}
