// Package blob stores raw page snapshots.
package blob

import "context"

// Store writes one object and returns its URI.
type Store interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Noop discards snapshots and returns an empty URI. Used when no bucket is
// configured.
type Noop struct{}

// Put does nothing.
func (Noop) Put(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
