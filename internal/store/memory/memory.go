// Package memory is an in-process record store. It backs local runs and
// the engine tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

type Store struct {
	mu      sync.Mutex
	profile core.Profile
	items   map[string]core.Transaction
	hub     *store.Hub
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store owned by profile.
func New(profile core.Profile, logger *log.Logger) *Store {
	s := &Store{
		profile: profile,
		items:   make(map[string]core.Transaction),
	}
	s.hub = store.NewHub(s.query, logger)
	return s
}

// Seed inserts records with their ids as given. Missing ids are generated.
func (s *Store) Seed(records ...core.Transaction) {
	s.mu.Lock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.items[r.ID] = r
	}
	s.mu.Unlock()
	s.hub.Notify()
}

func (s *Store) Subscribe(ctx context.Context, scope core.Scope, fn store.SnapshotFunc) (store.Subscription, error) {
	return s.hub.Subscribe(ctx, scope, fn)
}

func (s *Store) query(_ context.Context, scope core.Scope) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if scope.Contains(t.Date) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) Insert(_ context.Context, fields core.TransactionFields) (string, error) {
	if err := fields.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", core.Unavailable("insert", errClosed)
	}
	s.items[id] = core.Transaction{ID: id, TransactionFields: fields}
	s.mu.Unlock()
	s.hub.Notify()
	return id, nil
}

func (s *Store) Update(_ context.Context, id string, fields core.TransactionFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.Unavailable("update", errClosed)
	}
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	s.items[id] = core.Transaction{ID: id, TransactionFields: fields}
	s.mu.Unlock()
	s.hub.Notify()
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.Unavailable("delete", errClosed)
	}
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	delete(s.items, id)
	s.mu.Unlock()
	s.hub.Notify()
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) Profile(context.Context) (core.Profile, error) {
	return s.profile, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Unavailable("ping", errClosed)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

var errClosed = errors.New("memory store closed")
