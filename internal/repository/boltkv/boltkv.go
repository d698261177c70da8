// Package boltkv is a Store backed by a single BoltDB file.
package boltkv

import (
	"context"
	"time"

	"github.com/boltdb/bolt"

	"github.com/and161185/slotguard/internal/errs"
)

// BucketSession holds every session key.
const BucketSession = "session"

// Store wraps an open bolt.DB.
type Store struct{ db *bolt.DB }

// Open opens (or creates) the database file and its bucket.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketSession))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketSession)).Get([]byte(key))
		if v == nil {
			return errs.ErrNotFound
		}
		// bolt values are only valid inside the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketSession)).Put([]byte(key), value)
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketSession)).Delete([]byte(key))
	})
}
