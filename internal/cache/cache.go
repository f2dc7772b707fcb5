// Package cache is the hot lookup layer in front of the store for content
// metadata. The default backend is in-memory with TTL expiry and a janitor
// goroutine; a Redis backend can be enabled by configuration so multiple
// instances share one metadata pool.
package cache

import (
	"sync"
	"time"

	"chanplan/internal/models"
)

// Cache is a thread-safe metadata cache with per-entry TTL.
type Cache interface {
	// Get returns the cached metadata for key, or false when absent or
	// expired.
	Get(key string) (*models.ContentMeta, bool)
	// Set stores metadata under key. ttl <= 0 means no expiry.
	Set(key string, meta *models.ContentMeta, ttl time.Duration)
	// Delete removes one entry.
	Delete(key string)
	// Clear removes every entry.
	Clear()
	// Stats returns counters since construction.
	Stats() Stats
	// Close releases backend resources. The cache is unusable afterwards.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
	Size      int
}

type memoryEntry struct {
	meta      *models.ContentMeta
	expiresAt time.Time
}

func (e *memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// Memory is the in-process Cache backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	stats   Stats

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemory creates an in-memory cache. When cleanupInterval is positive a
// janitor goroutine removes expired entries on that cadence until Close.
func NewMemory(cleanupInterval time.Duration) *Memory {
	c := &Memory{
		entries: make(map[string]*memoryEntry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *Memory) Get(key string) (*models.ContentMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.meta, true
}

func (c *Memory) Set(key string, meta *models.ContentMeta, ttl time.Duration) {
	e := &memoryEntry{meta: meta}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.stats.Sets++
	c.mu.Unlock()
}

func (c *Memory) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Memory) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*memoryEntry)
	c.mu.Unlock()
}

func (c *Memory) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = len(c.entries)
	return stats
}

// Close stops the janitor. Idempotent.
func (c *Memory) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Memory) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// noop satisfies Cache without caching anything. Used when caching is
// disabled by configuration.
type noop struct{}

// NewNoop returns a cache that never stores or returns entries.
func NewNoop() Cache { return noop{} }

func (noop) Get(string) (*models.ContentMeta, bool)         { return nil, false }
func (noop) Set(string, *models.ContentMeta, time.Duration) {}
func (noop) Delete(string)                                  {}
func (noop) Clear()                                         {}
func (noop) Stats() Stats                                   { return Stats{} }
func (noop) Close() error                                   { return nil }
