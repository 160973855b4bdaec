// Package report renders ledger snapshots as printable PDF statements.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

const (
	// MaxRows caps the transaction table; totals always cover every record.
	MaxRows   = 500
	noteWidth = 60
	pageBreak = 270.0
)

var columnWidths = []float64{32, 22, 34, 28, 66}

// Filename is the suggested download name for a statement of snap.
func Filename(snap sheets.Snapshot, loc *time.Location) string {
	return "ledger-statement-" + snap.GeneratedAt.In(orLocal(loc)).Format(time.DateOnly) + ".pdf"
}

// Build lays out snap as an A4 statement: owner and range, a totals
// table, the expense breakdown by category, then the transactions newest
// first.
func Build(snap sheets.Snapshot, loc *time.Location) ([]byte, error) {
	loc = orLocal(loc)
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Ledger statement", true)
	pdf.SetAuthor(snap.Profile.DisplayName, true)
	pdf.SetMargins(14, 14, 14)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s  |  page %d", snap.GeneratedAt.In(loc).Format("2006-01-02 15:04"), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Ledger statement")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	owner := snap.Profile.DisplayName
	if owner == "" {
		owner = snap.Profile.UserID
	}
	pdf.Cell(0, 6, tr("Owner: "+owner))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Period: "+describeScope(snap.Scope, loc))
	pdf.Ln(10)

	totals := snap.Views.Totals
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	for i, label := range []string{"Income", "Expense", "Balance"} {
		pdf.CellFormat(60, 9, label, "1", lineAfter(i, 3), "C", true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 11)
	for i, v := range []decimal.Decimal{totals.Income, totals.Expense, totals.Balance} {
		pdf.CellFormat(60, 9, core.FormatAmount(v), "1", lineAfter(i, 3), "C", false, 0, "")
	}
	pdf.Ln(6)

	if len(snap.Views.Breakdown) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Expenses by category")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		for _, c := range snap.Views.Breakdown {
			pdf.CellFormat(70, 7, string(c.Category), "B", 0, "L", false, 0, "")
			pdf.CellFormat(40, 7, core.FormatAmount(c.Total), "B", 0, "R", false, 0, "")
			pdf.CellFormat(30, 7, share(c.Total, totals.Expense), "B", 1, "R", false, 0, "")
		}
		pdf.Ln(6)
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Transactions")
	pdf.Ln(8)
	tableHeader(pdf)
	pdf.SetFont("Helvetica", "", 9)
	for i, t := range snap.Records {
		if i >= MaxRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 7, fmt.Sprintf("%d more transactions not shown", len(snap.Records)-MaxRows), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > pageBreak {
			pdf.AddPage()
			tableHeader(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}
		amount := core.FormatAmount(t.Amount)
		if t.Type == core.Expense {
			amount = "-" + amount
		}
		cells := []string{
			t.Date.In(loc).Format("2006-01-02 15:04"),
			string(t.Type),
			string(t.Category),
			amount,
			tr(trimTo(t.Note, noteWidth)),
		}
		for j, v := range cells {
			align := "L"
			if j == 3 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[j], 7, v, "1", lineAfter(j, len(cells)), align, false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	return buf.Bytes(), nil
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(245, 245, 245)
	for i, h := range []string{"DATE", "TYPE", "CATEGORY", "AMOUNT", "NOTE"} {
		pdf.CellFormat(columnWidths[i], 7, h, "1", lineAfter(i, 5), "C", true, 0, "")
	}
}

// lineAfter moves to the next line after the last cell of a row.
func lineAfter(i, n int) int {
	if i == n-1 {
		return 1
	}
	return 0
}

func share(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "-"
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func describeScope(s core.Scope, loc *time.Location) string {
	if s.IsZero() {
		return "all time"
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

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
