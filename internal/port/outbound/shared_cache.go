package outbound

import (
	"context"
	"time"
)

// SharedCache is a cross-process cache tier for settled lookup results.
type SharedCache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}
