package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// Package storage persists the seen-state between runs. Keys are opaque.

// ErrCorruptState is returned alongside an empty state when stored bytes
// cannot be decoded. Callers recover by continuing with the empty state.
var ErrCorruptState = errors.New("seen state is corrupt")

// Store loads and saves the seen-state.
type Store interface {
	// Load returns an empty state and a nil error when nothing was saved yet.
	Load(ctx context.Context) (domain.SeenState, error)
	// Save replaces the stored state atomically.
	Save(ctx context.Context, state domain.SeenState) error
	Close() error
}

// Options carries backend-specific locations.
type Options struct {
	// Path is the state file for the file backend and the database file for bbolt.
	Path string
	// DSN is the sqlite data source name.
	DSN string
}

const (
	TypeFile   = "file"
	TypeBBolt  = "bbolt"
	TypeSQLite = "sqlite"
	TypeMemory = "memory"
)

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", TypeFile:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		return newFileStore(opts.Path), nil
	case TypeBBolt:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(opts.Path)
	case TypeSQLite:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("sqlite storage requires a dsn")
		}
		return openSQLite(ctx, opts.DSN)
	case TypeMemory:
		return &memoryStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// memoryStore keeps state for the lifetime of the process only.
type memoryStore struct {
	mu    sync.Mutex
	state domain.SeenState
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) Load(context.Context) (domain.SeenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

func (m *memoryStore) Save(_ context.Context, state domain.SeenState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.NewSeenState(state.Keys...)
	return nil
}
