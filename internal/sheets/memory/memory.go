// Package memory is an in-process exporter used for dry runs and tests.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"ledger/internal/sheets"
)

// Exporter keeps the values of the last export instead of uploading them.
type Exporter struct {
	mu      sync.Mutex
	loc     *time.Location
	values  [][]any
	exports int
}

var _ sheets.Exporter = (*Exporter)(nil)

func New(loc *time.Location) *Exporter {
	return &Exporter{loc: loc}
}

func (e *Exporter) Export(ctx context.Context, snap sheets.Snapshot) (sheets.Result, error) {
	if err := ctx.Err(); err != nil {
		return sheets.Result{}, err
	}
	values := sheets.BuildValues(snap, e.loc)
	e.mu.Lock()
	e.values = values
	e.exports++
	e.mu.Unlock()
	return sheets.Result{Range: fmt.Sprintf("memory!A1:F%d", len(values)), Rows: len(values)}, nil
}

// Values returns the rows written by the last export.
func (e *Exporter) Values() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values
}

// Exports returns how many exports ran.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

// WriteTSV writes the last export as tab-separated values.
func (e *Exporter) WriteTSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	for _, row := range e.Values() {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
