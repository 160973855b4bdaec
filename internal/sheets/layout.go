package sheets

import (
	"strings"
	"time"

	"ledger/internal/core"
)

// Header is the first row of an exported sheet.
var Header = []any{"Date", "Type", "Category", "Amount", "Note", "ID"}

const timestampLayout = "2006-01-02 15:04"

// BuildValues lays out snap as sheet rows: a header, one row per record,
// then a summary block with totals and the category breakdown.
func BuildValues(snap Snapshot, loc *time.Location) [][]any {
	if loc == nil {
		loc = time.Local
	}
	rows := make([][]any, 0, len(snap.Records)+len(snap.Views.Breakdown)+10)
	rows = append(rows, Header)
	for _, t := range snap.Records {
		rows = append(rows, []any{
			t.Date.In(loc).Format(timestampLayout),
			string(t.Type),
			string(t.Category),
			t.Amount.InexactFloat64(),
			escapeFormula(t.Note),
			t.ID,
		})
	}

	totals := snap.Views.Totals
	rows = append(rows,
		[]any{},
		[]any{"Summary"},
		[]any{"Income", totals.Income.InexactFloat64()},
		[]any{"Expense", totals.Expense.InexactFloat64()},
		[]any{"Balance", totals.Balance.InexactFloat64()},
	)
	if len(snap.Views.Breakdown) > 0 {
		rows = append(rows, []any{}, []any{"Category", "Expense"})
		for _, c := range snap.Views.Breakdown {
			rows = append(rows, []any{string(c.Category), c.Total.InexactFloat64()})
		}
	}
	rows = append(rows, []any{}, []any{"Owner", snap.Profile.DisplayName, "Range", describeScope(snap.Scope, loc), "Generated", snap.GeneratedAt.In(loc).Format(timestampLayout)})
	return rows
}

func describeScope(s core.Scope, loc *time.Location) string {
	if s.IsZero() {
		return "all"
	}
	start, end := "open", "open"
	if !s.Start.IsZero() {
		start = s.Start.In(loc).Format(time.DateOnly)
	}
	if !s.End.IsZero() {
		end = s.End.In(loc).Format(time.DateOnly)
	}
	return start + " to " + end
}

// escapeFormula keeps user text from being interpreted as a formula.
func escapeFormula(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
