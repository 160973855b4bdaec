// Package worker applies change events from other processes to the local
// record store.
package worker

import (
	"context"
	"sync/atomic"

	"ledger/internal/amqp"
	"ledger/internal/log"
)

// Consumer delivers change events until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler func(*amqp.ChangeEvent) error) error
}

// Refresher re-runs the live queries of a store.
type Refresher interface {
	Refresh()
}

// SyncWorker re-queries the local store whenever another process changed
// records of the same user.
type SyncWorker struct {
	consumer Consumer
	target   Refresher
	userID   string
	logger   *log.Logger

	applied atomic.Int64
	skipped atomic.Int64
}

func NewSyncWorker(consumer Consumer, target Refresher, userID string, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		consumer: consumer,
		target:   target,
		userID:   userID,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}
}

// HandleChange processes a single change event.
func (w *SyncWorker) HandleChange(ctx context.Context, ev *amqp.ChangeEvent) error {
	if ev.UserID != w.userID {
		w.skipped.Add(1)
		return nil
	}
	w.applied.Add(1)
	w.logger.DebugContext(ctx, "remote change received",
		log.FieldTxID, ev.ID,
		log.FieldOperation, ev.Op,
		log.FieldOrigin, ev.Origin)
	w.target.Refresh()
	return nil
}

// Run refreshes once to pick up changes missed while the worker was down,
// then consumes until ctx ends.
func (w *SyncWorker) Run(ctx context.Context) error {
	w.target.Refresh()
	w.logger.InfoContext(ctx, "sync worker started", log.FieldUserID, w.userID)
	err := w.consumer.Consume(ctx, func(ev *amqp.ChangeEvent) error {
		return w.HandleChange(ctx, ev)
	})
	applied, skipped := w.Stats()
	w.logger.InfoContext(ctx, "sync worker stopped", "applied", applied, "skipped", skipped)
	return err
}

// Stats returns how many events triggered a refresh and how many belonged
// to other users.
func (w *SyncWorker) Stats() (applied, skipped int64) {
	return w.applied.Load(), w.skipped.Load()
}
