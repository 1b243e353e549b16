// Package cache remembers which messages have already been scanned.
package cache

import (
	"context"
	"sort"
	"sync"
)

// DefaultFlushEvery is how many newly processed messages trigger a flush
const DefaultFlushEvery = 10

// Store is the durable copy of a processed message set.
type Store interface {
	// Load returns the stored identifiers. A store that does not exist yet
	// yields an empty set, not an error.
	Load(ctx context.Context) ([]string, error)
	// Save replaces the stored identifiers with ids.
	Save(ctx context.Context, ids []string) error
}

// ProcessedCache is an in-memory set of message identifiers backed by a
// Store. It is safe for concurrent use.
type ProcessedCache struct {
	mu    sync.Mutex
	store Store
	ids   map[string]struct{}
	dirty int

	// flushMu orders saves so an older snapshot never replaces a newer one
	flushMu sync.Mutex
}

// Open loads the processed set from store.
func Open(ctx context.Context, store Store) (*ProcessedCache, error) {
	ids, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c := &ProcessedCache{
		store: store,
		ids:   make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return c, nil
}

func (c *ProcessedCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

// MarkProcessed adds id to the set. It returns the number of additions
// since the last flush.
func (c *ProcessedCache) MarkProcessed(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; !ok {
		c.ids[id] = struct{}{}
		c.dirty++
	}
	return c.dirty
}

// Flush overwrites the durable copy with the full current set.
func (c *ProcessedCache) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	ids := c.sortedLocked()
	flushed := c.dirty
	c.mu.Unlock()

	if err := c.store.Save(ctx, ids); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty -= flushed
	c.mu.Unlock()
	return nil
}

func (c *ProcessedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// IDs returns the identifiers in sorted order
func (c *ProcessedCache) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

func (c *ProcessedCache) sortedLocked() []string {
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
