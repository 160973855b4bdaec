package sheets

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/store"
)

// Take subscribes to scope, waits for the first delivery and closes the
// subscription again.
func Take(ctx context.Context, r store.Reader, scope core.Scope, now time.Time) (Snapshot, error) {
	profile, err := r.Profile(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load profile: %w", err)
	}

	first := make(chan []core.Transaction, 1)
	sub, err := r.Subscribe(ctx, scope, func(records []core.Transaction) {
		select {
		case first <- records:
		default:
		}
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	select {
	case records := <-first:
		cache := ledger.NewCache()
		version := cache.ApplySnapshot(records)
		sorted := cache.Current()
		return Snapshot{
			Profile:     profile,
			Scope:       scope,
			Records:     sorted,
			Views:       ledger.ComputeViews(sorted, version),
			GeneratedAt: now,
		}, nil
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("wait for snapshot: %w", ctx.Err())
	}
}
