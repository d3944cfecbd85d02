package pipeline

import "sync"

// Event cache defaults.
const (
	DefaultEventCacheSize  = 2000
	DefaultEventCacheEvict = 500
)

// EventMetadata is what an outcome needs from its event definition.
type EventMetadata struct {
	Name         string
	RawStartTime string
	League       string
	ProviderID   int
}

// EventCache maps provider event ids to metadata. When it grows past its
// capacity the oldest-inserted entries are evicted in one step; refreshing an
// entry keeps its original position.
type EventCache struct {
	capacity int
	evict    int

	mu      sync.RWMutex
	entries map[string]EventMetadata
	order   []string
	evicted int64
}

// NewEventCache creates a cache. Non-positive values select the defaults.
func NewEventCache(capacity, evict int) *EventCache {
	if capacity <= 0 {
		capacity = DefaultEventCacheSize
	}
	if evict <= 0 {
		evict = DefaultEventCacheEvict
	}
	if evict > capacity {
		evict = capacity
	}
	return &EventCache{
		capacity: capacity,
		evict:    evict,
		entries:  make(map[string]EventMetadata),
	}
}

// Upsert stores meta under id and reports whether the id is new.
func (c *EventCache) Upsert(id string, meta EventMetadata) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; exists {
		c.entries[id] = meta
		return false
	}

	c.entries[id] = meta
	c.order = append(c.order, id)

	if len(c.order) > c.capacity {
		for _, old := range c.order[:c.evict] {
			delete(c.entries, old)
		}
		c.order = append([]string(nil), c.order[c.evict:]...)
		c.evicted += int64(c.evict)
	}
	return true
}

// Get returns the metadata for id.
func (c *EventCache) Get(id string) (EventMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.entries[id]
	return meta, ok
}

// Contains reports whether id is cached.
func (c *EventCache) Contains(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Delete removes id if present.
func (c *EventCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists {
		return
	}
	delete(c.entries, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached events.
func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evicted returns the total number of evicted entries.
func (c *EventCache) Evicted() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evicted
}
