package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

type (
	Totals struct {
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Balance decimal.Decimal `json:"balance"`
	}

	CategoryTotal struct {
		Category core.Category   `json:"category"`
		Total    decimal.Decimal `json:"total"`
	}

	MonthTotal struct {
		Month   string          `json:"month"`
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
	}

	DayTotal struct {
		Date    string          `json:"date"`
		Expense decimal.Decimal `json:"expense"`
	}

	// Views bundles every derived view computed from one cache version.
	Views struct {
		Version   uint64          `json:"version"`
		Totals    Totals          `json:"totals"`
		Breakdown []CategoryTotal `json:"breakdown"`
		Monthly   []MonthTotal    `json:"monthly"`
		Daily     []DayTotal      `json:"daily"`
	}
)

// ComputeTotals sums income and expense amounts.
func ComputeTotals(records []core.Transaction) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, r := range records {
		switch r.Type {
		case core.Income:
			t.Income = t.Income.Add(r.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(r.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// ComputeCategoryBreakdown sums expenses per category. Only categories with
// a positive total are listed, in the order of categories; expenses in
// categories not listed there are left out.
func ComputeCategoryBreakdown(records []core.Transaction, categories []core.Category) []CategoryTotal {
	sums := make(map[core.Category]decimal.Decimal)
	for _, r := range records {
		if r.Type != core.Expense {
			continue
		}
		sums[r.Category] = sums[r.Category].Add(r.Amount)
	}
	out := []CategoryTotal{}
	for _, c := range categories {
		if total, ok := sums[c]; ok && total.IsPositive() {
			out = append(out, CategoryTotal{Category: c, Total: total})
		}
	}
	return out
}

// ComputeMonthlySeries groups records by calendar month, ascending.
func ComputeMonthlySeries(records []core.Transaction) []MonthTotal {
	byMonth := make(map[string]*MonthTotal)
	for _, r := range records {
		key := r.Date.Format(monthLayout)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthTotal{Month: key, Income: decimal.Zero, Expense: decimal.Zero}
			byMonth[key] = m
		}
		switch r.Type {
		case core.Income:
			m.Income = m.Income.Add(r.Amount)
		case core.Expense:
			m.Expense = m.Expense.Add(r.Amount)
		}
	}
	out := make([]MonthTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ComputeDailyExpenseTrend sums expenses per calendar day, ascending. Days
// with only income are absent.
func ComputeDailyExpenseTrend(records []core.Transaction) []DayTotal {
	byDay := make(map[string]decimal.Decimal)
	for _, r := range records {
		if r.Type != core.Expense {
			continue
		}
		key := r.Date.Format(dayLayout)
		byDay[key] = byDay[key].Add(r.Amount)
	}
	out := make([]DayTotal, 0, len(byDay))
	for day, total := range byDay {
		out = append(out, DayTotal{Date: day, Expense: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ComputeViews derives every view from records.
func ComputeViews(records []core.Transaction, version uint64) Views {
	return Views{
		Version:   version,
		Totals:    ComputeTotals(records),
		Breakdown: ComputeCategoryBreakdown(records, core.Categories()),
		Monthly:   ComputeMonthlySeries(records),
		Daily:     ComputeDailyExpenseTrend(records),
	}
}
