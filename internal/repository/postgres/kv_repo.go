package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/slotguard/internal/errs"
)

// KVRepo implements repository.Store on the session_kv table.
// Rows are partitioned by namespace so several client profiles can share one database.
type KVRepo struct {
	db        *DB
	namespace string
}

// NewKVRepo constructs a store bound to namespace.
func NewKVRepo(db *DB, namespace string) *KVRepo { return &KVRepo{db: db, namespace: namespace} }

// Get selects the value for key.
func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `
SELECT value FROM session_kv WHERE namespace=$1 AND key=$2`
	var v []byte
	if err := r.db.Pool.QueryRow(ctx, q, r.namespace, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Set upserts the value for key.
func (r *KVRepo) Set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO session_kv (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, r.namespace, key, value)
	return err
}

// Delete removes key; a missing row is not an error.
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	const q = `
DELETE FROM session_kv WHERE namespace=$1 AND key=$2`
	_, err := r.db.Pool.Exec(ctx, q, r.namespace, key)
	return err
}
