package cache

import (
	"context"
	"time"
)

// Backend is a storage adapter. It moves opaque, already-encoded payloads;
// serialization is the Frontend's job.
type Backend interface {
	// Get retrieves a payload. A missing or expired key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a payload with a TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a payload
	Delete(ctx context.Context, key string) error

	// Exists reports whether a live payload is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// Flush removes every payload owned by this backend
	Flush(ctx context.Context) error

	// Close releases connections and background workers
	Close() error

	// Options returns the options the backend was built from
	Options() Options
}
