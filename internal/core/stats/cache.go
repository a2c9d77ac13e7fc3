// Package stats caches derived per-topic counts so list screens do not
// re-count messages on every render. The store invalidates entries
// through its topic-change hook; nothing here is implicit global state.
package stats

import "sync"

// TopicStats holds the derived values shown next to a topic.
type TopicStats struct {
	MessageCount int
}

// Cache maps topic keys to their derived stats. Safe for concurrent
// use: the ingestion worker invalidates while the UI reads.
type Cache struct {
	mu      sync.Mutex
	entries map[int64]TopicStats
}

func New() *Cache {
	return &Cache{entries: make(map[int64]TopicStats)}
}

// Get returns the cached stats for a topic, calling load on a miss and
// caching its result.
func (c *Cache) Get(topicKey int64, load func() (TopicStats, error)) (TopicStats, error) {
	c.mu.Lock()
	if cached, ok := c.entries[topicKey]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	// Load without the lock held; loaders query the store and may take
	// the transaction lock.
	loaded, err := load()
	if err != nil {
		return TopicStats{}, err
	}

	c.mu.Lock()
	c.entries[topicKey] = loaded
	c.mu.Unlock()
	return loaded, nil
}

// Invalidate drops the cached entry for a topic. Called by the store's
// topic-change hook on every write affecting that topic.
func (c *Cache) Invalidate(topicKey int64) {
	c.mu.Lock()
	delete(c.entries, topicKey)
	c.mu.Unlock()
}

// Reset drops every cached entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[int64]TopicStats)
	c.mu.Unlock()
}
