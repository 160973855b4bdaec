// Package sheets exports ledger snapshots to spreadsheets.
package sheets

import (
	"context"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type (
	// Snapshot is everything one export writes.
	Snapshot struct {
		Profile     core.Profile
		Scope       core.Scope
		Records     []core.Transaction
		Views       ledger.Views
		GeneratedAt time.Time
	}

	// Result describes what an export wrote.
	Result struct {
		Range string
		Rows  int
	}

	// Exporter replaces the contents of its target with a snapshot.
	Exporter interface {
		Export(ctx context.Context, snap Snapshot) (Result, error)
	}
)
