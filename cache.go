package fhirsql

import (
	"sync"
	"time"
)

// CacheKey identifies a compilation. The dialect and the compiler's
// resource settings are part of the key so one cache can serve several
// compilers.
type CacheKey struct {
	Dialect      string
	ResourceType string
	BaseTable    string
	Expression   string
}

type cacheEntry struct {
	plan      *Plan
	err       error
	expiresAt time.Time // zero means no expiry
}

// Cache stores compiled plans. Implementations must be safe for concurrent
// use.
//
// Failed compilations are cached with their error: an expression that does
// not compile once will not compile on retry.
type Cache interface {
	// Get returns the cached outcome for key. ok is false when the entry
	// is absent or expired.
	Get(key CacheKey) (plan *Plan, err error, ok bool)

	// Set stores the outcome of compiling key.
	Set(key CacheKey, plan *Plan, err error)
}

// CacheImpl is the default in-memory cache with optional TTL and entry
// limit.
type CacheImpl struct {
	mu         sync.RWMutex
	items      map[CacheKey]cacheEntry
	ttl        time.Duration // 0 means no expiry
	maxEntries int           // 0 means unbounded
}

// CacheOption configures a CacheImpl.
type CacheOption func(*CacheImpl)

// WithTTL sets the time-to-live for cache entries. A registry or dialect
// that never changes at runtime needs no TTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CacheImpl) {
		c.ttl = ttl
	}
}

// WithMaxEntries bounds the cache. When full, Set clears it before adding
// the new entry.
func WithMaxEntries(n int) CacheOption {
	return func(c *CacheImpl) {
		c.maxEntries = n
	}
}

// NewCache creates an in-memory plan cache.
func NewCache(opts ...CacheOption) *CacheImpl {
	c := &CacheImpl{
		items: make(map[CacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached plan or error for key. ok is false when the entry
// is absent or expired.
func (c *CacheImpl) Get(key CacheKey) (*Plan, error, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, nil, false
	}
	return entry.plan, entry.err, true
}

// Set stores the outcome of compiling key.
func (c *CacheImpl) Set(key CacheKey, plan *Plan, err error) {
	entry := cacheEntry{plan: plan, err: err}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.items = make(map[CacheKey]cacheEntry)
	}
	c.items[key] = entry
	c.mu.Unlock()
}

// Size returns the number of entries in the cache.
func (c *CacheImpl) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries, for example after swapping the registry.
func (c *CacheImpl) Clear() {
	c.mu.Lock()
	c.items = make(map[CacheKey]cacheEntry)
	c.mu.Unlock()
}

var _ Cache = (*CacheImpl)(nil)
