package store

import (
	"context"
	"encoding/json"
)

// Store is a path-addressed JSON tree with change subscriptions.
//
// Paths are slash separated segments such as "timeLoggers/u1/l1". A node is
// either a leaf holding a JSON scalar or array, or an object whose children
// are nodes. Objects with no children do not exist.
type Store interface {
	// Get returns the JSON value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Update replaces each named child of path with the given value. A nil
	// value removes the child. Children that are not named are left alone.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the node at path and everything under it.
	Delete(ctx context.Context, path string) error

	// Subscribe emits the current value at path and then every distinct value
	// it takes until the subscription is closed or ctx is cancelled.
	Subscribe(ctx context.Context, path string) (*Subscription, error)

	Close() error
}
