// Package cache stores derived image data keyed by content hash.
//
// The enhancement stage is the only expensive pure transform in a run, and
// the same base image is enhanced once per scene drawn from it. Results are
// cached under a key derived from the input pixels and the transform name,
// so repeated runs and repeated scenes reuse them.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
