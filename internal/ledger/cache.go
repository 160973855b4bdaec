// Package ledger holds the reactive engine: the transaction cache fed by
// live store subscriptions, the derived views, the list filter and the
// edit session that writes back to the store.
package ledger

import (
	"sort"
	"sync"

	"ledger/internal/core"
)

// Cache is the latest full snapshot delivered by a subscription. Every
// snapshot replaces the contents wholesale and bumps the version.
type Cache struct {
	mu      sync.RWMutex
	records []core.Transaction
	version uint64
}

func NewCache() *Cache {
	return &Cache{}
}

// ApplySnapshot replaces the cached set and returns the new version.
func (c *Cache) ApplySnapshot(records []core.Transaction) uint64 {
	sorted := make([]core.Transaction, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = sorted
	c.version++
	return c.version
}

// Current returns a copy of the cached records, newest first.
func (c *Cache) Current() []core.Transaction {
	records, _ := c.Snapshot()
	return records
}

// Snapshot returns a copy of the cached records together with the version
// they belong to.
func (c *Cache) Snapshot() ([]core.Transaction, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Transaction, len(c.records))
	copy(out, c.records)
	return out, c.version
}

// Version is zero until the first snapshot arrives.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
