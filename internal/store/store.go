// Package store provides a path-addressable, subscribable, last-write-wins
// state tree. Paths are slash-separated segments; the value at a path is
// either a leaf or the map of its children. Writers overwrite whole subtrees
// and there are no cross-path transactions.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrClosed = errors.New("store closed")

// Store is the state-tree contract consumed by the game packages.
type Store interface {
	// Write overwrites the value at path. A nil value deletes the subtree.
	Write(ctx context.Context, path string, value any) error

	// ReadOnce returns the current snapshot at path, or nil when absent.
	ReadOnce(ctx context.Context, path string) (any, error)

	// Subscribe invokes fn with the current value immediately and again
	// after every change affecting path. Fast successive writes may be
	// coalesced into a single observed snapshot. The returned function
	// releases the subscription and must be called on teardown.
	Subscribe(path string, fn func(snapshot any)) (func(), error)

	// Delete removes the subtree at path.
	Delete(ctx context.Context, path string) error

	// PushKey allocates a unique child key under a collection path,
	// ordered by creation time.
	PushKey(path string) string

	// NewHandle returns a connection handle for disconnect-triggered
	// cleanup registration.
	NewHandle() Handle
}

// Handle represents one client connection for presence purposes. Cleanup
// paths registered on it are deleted when the connection drops.
type Handle interface {
	// RegisterCleanup arranges for the subtree at path to be deleted when
	// Disconnect fires. Register immediately after creating the record.
	RegisterCleanup(path string)

	// Disconnect runs all registered cleanups once. Safe to call more
	// than once; later calls are no-ops.
	Disconnect()
}

// Decode unmarshals a snapshot (a JSON-shaped value tree) into out.
func Decode(snapshot, out any) error {
	if snapshot == nil {
		return errors.New("decode: absent snapshot")
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
