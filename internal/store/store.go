// Package store defines the record store port the ledger engine talks to
// and the live-query plumbing shared by its adapters.
package store

import (
	"context"

	"ledger/internal/core"
)

// SnapshotFunc receives the full record set matching a subscription's
// scope each time it changes. Implementations must not block for long.
type SnapshotFunc func([]core.Transaction)

// Subscription is a live query. Close is idempotent. A delivery already in
// flight when Close is called may still arrive; consumers drop it.
type Subscription interface {
	Close()
}

// Reader exposes live queries and point reads.
type Reader interface {
	Subscribe(ctx context.Context, scope core.Scope, onSnapshot SnapshotFunc) (Subscription, error)
	GetByID(ctx context.Context, id string) (core.Transaction, error)
	Profile(ctx context.Context) (core.Profile, error)
}

// Writer mutates the record set. Delete and Update report core.ErrNotFound
// for unknown ids.
type Writer interface {
	Insert(ctx context.Context, fields core.TransactionFields) (string, error)
	Update(ctx context.Context, id string, fields core.TransactionFields) error
	Delete(ctx context.Context, id string) error
}

// Store is a record store adapter scoped to one user.
type Store interface {
	Reader
	Writer
	Close() error
}

// ReadyChecker is implemented by adapters that can probe their backend.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}
