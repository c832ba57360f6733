package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

const (
	stateBucket = "seen_state"
	stateKey    = "current"
)

// boltStore implements a Store backed by BoltDB. bbolt holds an exclusive
// file lock while open, so overlapping runs wait up to lockTimeout.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

const lockTimeout = 5 * time.Second

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, now: time.Now}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load reads the stored state document.
func (b *boltStore) Load(ctx context.Context) (domain.SeenState, error) {
	if b == nil || b.db == nil {
		return domain.SeenState{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.SeenState{}, err
	}

	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		if bucket == nil {
			return fmt.Errorf("state bucket missing")
		}
		if v := bucket.Get([]byte(stateKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return domain.SeenState{}, err
	}
	return decodeState(raw)
}

// Save replaces the state document in a single transaction.
func (b *boltStore) Save(ctx context.Context, state domain.SeenState) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("bbolt store is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := encodeState(state, b.now())
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		if bucket == nil {
			return fmt.Errorf("state bucket missing")
		}
		return bucket.Put([]byte(stateKey), raw)
	})
}
