package storage

import (
	"context"
	"time"
)

// ContentStore is the durable blob collaborator: bytes in, addressable
// retrieval URL out. The orchestrator only depends on this interface.
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a time-limited retrieval URL for the object.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}
