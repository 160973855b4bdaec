package store

import (
	"context"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
)

// QueryFunc loads the records inside scope.
type QueryFunc func(ctx context.Context, scope core.Scope) ([]core.Transaction, error)

// Hub runs live queries for an adapter. Each subscription owns a goroutine
// that re-runs the query whenever Notify is called. Pending notifications
// coalesce into a single re-query, and Notify never blocks a writer.
type Hub struct {
	query  QueryFunc
	logger *log.Logger

	mu     sync.Mutex
	subs   map[*hubSub]struct{}
	closed bool
}

type hubSub struct {
	hub    *Hub
	scope  core.Scope
	fn     SnapshotFunc
	kick   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

// NewHub creates a hub that serves snapshots from query.
func NewHub(query QueryFunc, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		query:  query,
		logger: logger.WithComponent(log.ComponentStorage),
		subs:   make(map[*hubSub]struct{}),
	}
}

// Subscribe starts a live query. The first snapshot is delivered
// asynchronously, as are all later ones.
func (h *Hub) Subscribe(ctx context.Context, scope core.Scope, fn SnapshotFunc) (Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, core.Unavailable("subscribe", errHubClosed)
	}

	// Detach from the caller's deadline; the subscription lives until Close.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &hubSub{
		hub:    h,
		scope:  scope,
		fn:     fn,
		kick:   make(chan struct{}, 1),
		cancel: cancel,
	}
	s.kick <- struct{}{}
	h.subs[s] = struct{}{}
	go s.run(subCtx)
	return s, nil
}

// Notify schedules a re-query on every open subscription.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription. It does not wait for in-flight
// queries to finish.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*hubSub]struct{})
	h.closed = true
	h.mu.Unlock()
	for s := range subs {
		s.cancel()
	}
}

func (s *hubSub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}
		records, err := s.hub.query(ctx, s.scope)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.hub.logger.Warn("live query failed",
				log.FieldOperation, log.OpSnapshot,
				log.FieldError, err)
			continue
		}
		s.fn(records)
	}
}

func (s *hubSub) Close() {
	s.once.Do(func() {
		s.cancel()
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
	})
}
