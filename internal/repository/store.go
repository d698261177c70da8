// Package repository defines the key-value store contract implemented by concrete backends.
package repository

import "context"

// Store is an external key-value collaborator holding persisted session state.
// Get returns errs.ErrNotFound for a missing key; Delete of a missing key is not an error.
type Store interface {
	// Get loads the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}
