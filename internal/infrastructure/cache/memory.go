package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// entry is one cached value with its expiry instant.
type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the in-process ResultCache backend. Values are stored as
// JSON so both backends share serialization semantics. A single mutex is
// sufficient: reads are in-memory and writes are rare relative to the
// 30-minute TTL.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache with the given TTL. A non-positive
// ttl falls back to DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithClock(ttl, time.Now)
}

// NewMemoryCacheWithClock creates a MemoryCache with an injectable clock,
// so tests can advance time past the TTL without sleeping.
func NewMemoryCacheWithClock(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
	}
}

// Get loads the value at key into dest. An expired entry is evicted by the
// read that discovers it and reported as a miss.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return true, nil
}

// Set stores value at key. Last write wins between concurrent writers.
func (c *MemoryCache) Set(_ context.Context, key string, value any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	c.mu.Lock()
	c.entries[key] = entry{data: data, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Has reports whether key holds an unexpired entry, evicting it if expired.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return false, nil
	}
	return true, nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// ClearByPrefix removes every entry whose key starts with prefix.
func (c *MemoryCache) ClearByPrefix(_ context.Context, prefix string) error {
	if prefix == "" {
		return ErrCacheKeyEmpty
	}

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not. Intended for
// tests and diagnostics.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
