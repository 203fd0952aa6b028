// Package store defines the object store contract used by the orchestrator:
// list the names in a container, fetch one object, and store one object.
// Backends live in sub-packages.
package store

import (
	"context"
)

// Store is a flat, name-addressed object store.
//
// Listings are assumed eventually consistent: a name written by Put may not
// appear in ListNames immediately.
type Store interface {
	// ListNames returns every object name in container, in backend order.
	ListNames(ctx context.Context, container string) ([]string, error)

	// Get returns the payload of name. A missing object yields an error
	// matching ErrNotFound.
	Get(ctx context.Context, container, name string) ([]byte, error)

	// Put stores data under name, overwriting any existing object.
	Put(ctx context.Context, container, name string, data []byte) error
}

// Names converts a listing to a set for membership checks.
func Names(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
