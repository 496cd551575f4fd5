package explore

// Cache memoizes per-probe results for a single exploration run, keyed
// by quantized rate factor. A run is strictly sequential, so the cache
// is deliberately not safe for concurrent use; every run owns its own.
type Cache[T any] struct {
	entries map[Key]T
}

// NewCache returns an empty run-scoped cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[Key]T)}
}

// Get returns the cached value for key, if present.
func (c *Cache[T]) Get(k Key) (T, bool) {
	v, ok := c.entries[k]
	return v, ok
}

// Insert stores the value for key, replacing any prior entry.
func (c *Cache[T]) Insert(k Key, v T) {
	c.entries[k] = v
}

// Contains reports whether the key has been probed before.
func (c *Cache[T]) Contains(k Key) bool {
	_, ok := c.entries[k]
	return ok
}

// Len returns the number of distinct probed keys.
func (c *Cache[T]) Len() int {
	return len(c.entries)
}
