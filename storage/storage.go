package storage

import (
	"slices"
	"sync"
	"time"
)

// Projection names a cached derived view over the listing tables.
type Projection int

const (
	CargoOrigins Projection = iota
	CargoDestinations
	TruckCities
)

// ProjectionCache is a thread-safe in-memory cache of the distinct city
// lists offered by the search dialogs. Writers invalidate it as a whole.
type ProjectionCache struct {
	mu            sync.RWMutex
	entries       map[Projection][]string
	invalidatedAt time.Time
	invalidations int
}

// NewProjectionCache creates an empty cache.
func NewProjectionCache() *ProjectionCache {
	return &ProjectionCache{
		entries: make(map[Projection][]string),
	}
}

// Get returns a copy of the cached projection.
func (c *ProjectionCache) Get(p Projection) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[p]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Put stores a projection.
func (c *ProjectionCache) Put(p Projection, cities []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[p] = slices.Clone(cities)
}

// Invalidate drops every projection.
func (c *ProjectionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Projection][]string)
	c.invalidatedAt = time.Now()
	c.invalidations++
}

// LastInvalidated returns the time of the last invalidation.
func (c *ProjectionCache) LastInvalidated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.invalidatedAt
}

// Invalidations returns how many times the cache has been reset.
func (c *ProjectionCache) Invalidations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.invalidations
}
