// Package storage provides the durable key/value snapshot store backing cart
// persistence. It is the client-side analog of browser localStorage: small
// JSON blobs addressed by string keys.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the interface all snapshot backends implement.
type Storage interface {
	// Load returns the raw value stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save overwrites the value stored under key.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
