package storage

import "context"

// KVStore is a string key-value store. It is the only persistence the
// subscriber registry needs.
type KVStore interface {
	// Get returns the value stored under key, or def when the key is absent.
	Get(ctx context.Context, key, def string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
