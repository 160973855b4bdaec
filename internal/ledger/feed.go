package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

var ErrFeedClosed = errors.New("feed closed")

// Feed keeps a Cache in sync with one live store subscription at a time.
// Reopening with a new scope drops the old subscription; the cache keeps
// its contents until the new subscription delivers. Deliveries carrying a
// superseded generation are discarded.
type Feed struct {
	reader   store.Reader
	cache    *Cache
	onChange func(version uint64)
	logger   *log.Logger

	mu     sync.Mutex
	gen    uint64
	sub    store.Subscription
	scope  core.Scope
	closed bool
}

// NewFeed wires reader into cache. onChange, if set, runs after each applied
// snapshot with the cache version it produced, outside the feed lock.
// Callbacks for consecutive snapshots may run concurrently.
func NewFeed(reader store.Reader, cache *Cache, onChange func(version uint64), logger *log.Logger) *Feed {
	if logger == nil {
		logger = log.Discard()
	}
	return &Feed{
		reader:   reader,
		cache:    cache,
		onChange: onChange,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

// Open subscribes with scope, replacing any previous subscription.
func (f *Feed) Open(ctx context.Context, scope core.Scope) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFeedClosed
	}
	f.gen++
	gen := f.gen
	old := f.sub
	f.sub = nil
	f.scope = scope
	f.mu.Unlock()

	if old != nil {
		old.Close()
	}

	sub, err := f.reader.Subscribe(ctx, scope, func(records []core.Transaction) {
		f.deliver(gen, records)
	})
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}

	f.mu.Lock()
	if f.closed || f.gen != gen {
		f.mu.Unlock()
		sub.Close()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()

	f.logger.Debug("feed opened",
		log.FieldOperation, log.OpSubscribe,
		log.FieldScopeStart, scope.Start,
		log.FieldScopeEnd, scope.End)
	return nil
}

func (f *Feed) deliver(gen uint64, records []core.Transaction) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		f.logger.Debug("dropped stale snapshot", log.FieldRecords, len(records))
		return
	}
	version := f.cache.ApplySnapshot(records)
	f.mu.Unlock()

	f.logger.Debug("snapshot applied", log.FieldRecords, len(records), log.FieldVersion, version)
	if f.onChange != nil {
		f.onChange(version)
	}
}

// Scope returns the scope of the current subscription.
func (f *Feed) Scope() core.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scope
}

// Cache returns the cache this feed writes to.
func (f *Feed) Cache() *Cache {
	return f.cache
}

// Close ends the subscription. The cache keeps its last snapshot.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.gen++
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}
