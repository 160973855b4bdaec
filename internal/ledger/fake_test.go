package ledger

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
	"ledger/internal/store"
)

// fakeStore hands deliveries to the test instead of running queries.
type fakeStore struct {
	mu      sync.Mutex
	subs    []*fakeSub
	records map[string]core.Transaction

	inserts   []core.TransactionFields
	updates   map[string]core.TransactionFields
	writeErr  error
	subscribe error
	nextID    int
}

type fakeSub struct {
	scope  core.Scope
	fn     store.SnapshotFunc
	mu     sync.Mutex
	closed bool
}

func (s *fakeSub) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// push delivers even when closed, mimicking a delivery already in flight.
func (s *fakeSub) push(records ...core.Transaction) { s.fn(records) }

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]core.Transaction),
		updates: make(map[string]core.TransactionFields),
	}
}

func (f *fakeStore) Subscribe(_ context.Context, scope core.Scope, fn store.SnapshotFunc) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribe != nil {
		return nil, f.subscribe
	}
	s := &fakeSub{scope: scope, fn: fn}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeStore) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeStore) Insert(_ context.Context, fields core.TransactionFields) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, fields)
	if f.writeErr != nil {
		return "", f.writeErr
	}
	f.nextID++
	id := fmt.Sprintf("tx-%d", f.nextID)
	f.records[id] = core.Transaction{ID: id, TransactionFields: fields}
	return id, nil
}

func (f *fakeStore) Update(_ context.Context, id string, fields core.TransactionFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = fields
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.records[id]; !ok {
		return core.ErrNotFound
	}
	f.records[id] = core.Transaction{ID: id, TransactionFields: fields}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.records[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) Profile(context.Context) (core.Profile, error) {
	return core.Profile{UserID: "u1", DisplayName: "Asha"}, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts) + len(f.updates)
}
