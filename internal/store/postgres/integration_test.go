//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Integration tests require a reachable PostgreSQL.
// Run with: LEDGER_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/store/postgres

func openTest(t *testing.T, userID string) *Storage {
	t.Helper()
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set, skipping integration test")
	}
	s, err := Open(context.Background(), url, Options{
		Profile:  core.Profile{UserID: userID, DisplayName: "Test"},
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIntegration_WriteNotifiesOtherProcess(t *testing.T) {
	user := "it-" + uuid.NewString()
	writer := openTest(t, user)
	reader := openTest(t, user)
	ctx := context.Background()

	ch := make(chan []core.Transaction, 8)
	sub, err := reader.Subscribe(ctx, core.Scope{}, func(r []core.Transaction) { ch <- r })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	<-ch

	id, err := writer.Insert(ctx, core.TransactionFields{
		Amount:   decimal.RequireFromString("19.99"),
		Category: core.Shopping,
		Type:     core.Expense,
		Date:     time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case recs := <-ch:
		if len(recs) != 1 || recs[0].ID != id {
			t.Fatalf("unexpected snapshot %v", recs)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("reader was not notified")
	}

	if err := writer.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := writer.Delete(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
