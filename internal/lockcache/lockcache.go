// Package lockcache provides the expiring-key cache backing the evaluation
// idempotency lock. The production implementation is Redis; an in-memory
// implementation ships for tests.
package lockcache

import (
	"context"
	"time"
)

// Cache is the minimal key-value surface the idempotency lock needs.
type Cache interface {
	// SetIfAbsent atomically writes key only when it does not exist,
	// returning true when the write happened. The key expires after ttl.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
