package cache

import (
	"strconv"
	"sync"

	"ledger/internal/core"
)

// ListPages memoizes filtered transaction lists for the current list
// version. A newer version purges everything cached for older ones.
type ListPages struct {
	lru *LRUCache[[]core.Transaction]

	mu      sync.Mutex
	version uint64
	hits    uint64
	misses  uint64
}

func NewListPages(lru *LRUCache[[]core.Transaction]) *ListPages {
	return &ListPages{lru: lru}
}

// Lookup returns the page cached for (version, filterKey) or stores the
// result of compute. A version older than the newest seen is never cached.
func (p *ListPages) Lookup(version uint64, filterKey string, compute func() []core.Transaction) []core.Transaction {
	key := strconv.FormatUint(version, 10) + "|" + filterKey

	p.mu.Lock()
	if version > p.version {
		p.version = version
		p.lru.Purge()
	}
	current := version == p.version
	p.mu.Unlock()

	if current {
		if page, ok := p.lru.Get(key); ok {
			p.count(true)
			return page
		}
	}
	p.count(false)
	page := compute()
	if current {
		p.lru.Set(key, page)
	}
	return page
}

func (p *ListPages) count(hit bool) {
	p.mu.Lock()
	if hit {
		p.hits++
	} else {
		p.misses++
	}
	p.mu.Unlock()
}

// Stats returns hit and miss counters.
func (p *ListPages) Stats() (hits, misses uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// CleanExpired forwards to the underlying LRU.
func (p *ListPages) CleanExpired() int {
	return p.lru.CleanExpired()
}
