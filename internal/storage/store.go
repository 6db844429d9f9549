// Package storage holds the slot stores backing entitlement state. A slot is a
// string value under a string key, the way a browser profile keeps its
// session and local storage.
package storage

import "context"

type Store interface {
	// Get reports whether key is present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
