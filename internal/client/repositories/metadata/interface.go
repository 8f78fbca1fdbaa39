// Package metadata stores small string settings in the local sqlite file.
// The client keeps its persisted session (token pair and user) here.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys; absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// List returns every pair whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string]string, error)
}
