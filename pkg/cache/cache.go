package cache

import "time"

// Cache is the interface for caching venue metadata (symbol increments,
// min notionals, fee schedules) between cycles.
type Cache interface {
	// Get retrieves a value. Returns (value, true) if found.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL. Writes are applied asynchronously;
	// callers that need read-after-write use Wait.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Wait blocks until all pending writes are applied.
	Wait()

	// Close releases cache resources.
	Close()
}
