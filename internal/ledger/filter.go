package ledger

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// Filter selects which cached records the transaction list shows. It is a
// closed set: NoFilter, DateRange or CategoryFilter.
type Filter interface {
	Match(core.Transaction) bool
	// Key identifies the filter for memoization.
	Key() string
	isFilter()
}

type (
	NoFilter struct{}

	// DateRange keeps records whose date lies within [Start, End]. A zero
	// bound leaves that side open.
	DateRange struct {
		Start time.Time
		End   time.Time
	}

	// CategoryFilter keeps records of one category. An empty Category
	// keeps everything.
	CategoryFilter struct {
		Category core.Category
	}
)

func (NoFilter) Match(core.Transaction) bool { return true }
func (NoFilter) Key() string                 { return "none" }
func (NoFilter) isFilter()                   {}

func (f DateRange) Match(t core.Transaction) bool {
	if !f.Start.IsZero() && t.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && t.Date.After(f.End) {
		return false
	}
	return true
}

func (f DateRange) Key() string {
	return fmt.Sprintf("date:%d:%d", unixOrZero(f.Start), unixOrZero(f.End))
}

func (DateRange) isFilter() {}

func (f CategoryFilter) Match(t core.Transaction) bool {
	return f.Category == "" || t.Category == f.Category
}

func (f CategoryFilter) Key() string { return "category:" + string(f.Category) }
func (CategoryFilter) isFilter()     {}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// ApplyFilter returns the records matching f, preserving order. A nil or
// NoFilter filter returns records as given.
func ApplyFilter(records []core.Transaction, f Filter) []core.Transaction {
	if f == nil {
		return records
	}
	if _, ok := f.(NoFilter); ok {
		return records
	}
	if cf, ok := f.(CategoryFilter); ok && cf.Category == "" {
		return records
	}
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
