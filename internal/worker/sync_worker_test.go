package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/store"
)

type countingRefresher struct{ n atomic.Int32 }

func (r *countingRefresher) Refresh() { r.n.Add(1) }

// scriptedConsumer hands a fixed list of events to the handler.
type scriptedConsumer struct {
	events []*amqp.ChangeEvent
}

func (c scriptedConsumer) Consume(ctx context.Context, handler func(*amqp.ChangeEvent) error) error {
	for _, ev := range c.events {
		if err := handler(ev); err != nil {
			return err
		}
	}
	return context.Canceled
}

func TestSyncWorkerRefreshesForOwnUser(t *testing.T) {
	target := &countingRefresher{}
	events := []*amqp.ChangeEvent{
		{UserID: "u1", Op: store.OpInsert, ID: "a"},
		{UserID: "u2", Op: store.OpInsert, ID: "b"},
		{UserID: "u1", Op: store.OpDelete, ID: "a"},
	}
	w := NewSyncWorker(scriptedConsumer{events: events}, target, "u1", nil)

	err := w.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected consumer error to be returned, got %v", err)
	}
	// One startup refresh plus one per own-user event.
	if got := target.n.Load(); got != 3 {
		t.Fatalf("expected 3 refreshes, got %d", got)
	}
	if applied, skipped := w.Stats(); applied != 2 || skipped != 1 {
		t.Fatalf("unexpected stats applied=%d skipped=%d", applied, skipped)
	}
}
