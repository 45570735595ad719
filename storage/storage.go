// Package storage holds the key-value backends that persist the macro document.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the key has never been saved.
var ErrNotFound = errors.New("key not found")

// KVStore persists opaque documents under string keys.
type KVStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}
