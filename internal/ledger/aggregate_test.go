package ledger

import (
	"testing"

	"ledger/internal/core"
)

func exampleRecords() []core.Transaction {
	return []core.Transaction{
		tx("1", 100, core.Income, core.Salary, "2024-01-05"),
		tx("2", 40, core.Expense, core.Food, "2024-01-06"),
		tx("3", 15, core.Expense, core.Food, "2024-02-01"),
	}
}

func TestComputeViewsExample(t *testing.T) {
	v := ComputeViews(exampleRecords(), 7)
	if v.Version != 7 {
		t.Fatalf("expected version 7, got %d", v.Version)
	}

	if !v.Totals.Income.Equal(dec(100)) || !v.Totals.Expense.Equal(dec(55)) || !v.Totals.Balance.Equal(dec(45)) {
		t.Fatalf("unexpected totals %+v", v.Totals)
	}

	if len(v.Breakdown) != 1 || v.Breakdown[0].Category != core.Food || !v.Breakdown[0].Total.Equal(dec(55)) {
		t.Fatalf("unexpected breakdown %+v", v.Breakdown)
	}

	wantMonthly := []struct {
		month           string
		income, expense int64
	}{{"2024-01", 100, 40}, {"2024-02", 0, 15}}
	if len(v.Monthly) != len(wantMonthly) {
		t.Fatalf("unexpected monthly %+v", v.Monthly)
	}
	for i, w := range wantMonthly {
		m := v.Monthly[i]
		if m.Month != w.month || !m.Income.Equal(dec(w.income)) || !m.Expense.Equal(dec(w.expense)) {
			t.Fatalf("month %d: got %+v, want %+v", i, m, w)
		}
	}

	wantDaily := []struct {
		date    string
		expense int64
	}{{"2024-01-06", 40}, {"2024-02-01", 15}}
	if len(v.Daily) != len(wantDaily) {
		t.Fatalf("unexpected daily %+v", v.Daily)
	}
	for i, w := range wantDaily {
		if v.Daily[i].Date != w.date || !v.Daily[i].Expense.Equal(dec(w.expense)) {
			t.Fatalf("day %d: got %+v, want %+v", i, v.Daily[i], w)
		}
	}
}

func TestComputeViewsEmpty(t *testing.T) {
	v := ComputeViews(nil, 0)
	if !v.Totals.Income.IsZero() || !v.Totals.Expense.IsZero() || !v.Totals.Balance.IsZero() {
		t.Fatalf("expected zero totals, got %+v", v.Totals)
	}
	if len(v.Breakdown) != 0 || len(v.Monthly) != 0 || len(v.Daily) != 0 {
		t.Fatalf("expected empty series, got %+v", v)
	}
}

func TestBreakdownOrderAndZeroTotals(t *testing.T) {
	records := []core.Transaction{
		tx("1", 10, core.Expense, core.Other, "2024-03-01"),
		tx("2", 5, core.Expense, core.Transport, "2024-03-01"),
		tx("3", 0, core.Expense, core.Bills, "2024-03-02"),
		tx("4", 30, core.Income, core.Food, "2024-03-02"),
		tx("5", 7, core.Expense, core.Food, "2024-03-03"),
	}
	got := ComputeCategoryBreakdown(records, core.Categories())
	want := []core.Category{core.Food, core.Transport, core.Other}
	if len(got) != len(want) {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	for i, c := range want {
		if got[i].Category != c {
			t.Fatalf("position %d: got %q want %q", i, got[i].Category, c)
		}
	}
}

func TestBreakdownFollowsGivenOrder(t *testing.T) {
	records := []core.Transaction{
		tx("1", 10, core.Expense, core.Other, "2024-03-01"),
		tx("2", 5, core.Expense, core.Transport, "2024-03-01"),
		tx("3", 7, core.Expense, core.Food, "2024-03-03"),
	}
	got := ComputeCategoryBreakdown(records, []core.Category{core.Other, core.Food, core.Bills})
	if len(got) != 2 || got[0].Category != core.Other || got[1].Category != core.Food {
		t.Fatalf("expected Other then Food, got %+v", got)
	}
}

func TestSeriesKeysStrictlyAscending(t *testing.T) {
	// Newest first, as a store delivers them, across two year boundaries
	// with several records per day and month.
	records := []core.Transaction{
		tx("1", 4, core.Expense, core.Food, "2025-01-02"),
		tx("2", 6, core.Income, core.Salary, "2025-01-01"),
		tx("3", 2, core.Expense, core.Bills, "2025-01-01"),
		tx("4", 3, core.Expense, core.Food, "2025-01-01"),
		tx("5", 9, core.Expense, core.Food, "2024-12-31"),
		tx("6", 1, core.Expense, core.Other, "2024-12-31"),
		tx("7", 8, core.Expense, core.Food, "2024-12-01"),
		tx("8", 5, core.Expense, core.Food, "2024-02-10"),
		tx("9", 5, core.Expense, core.Food, "2024-01-31"),
		tx("10", 7, core.Income, core.Salary, "2023-12-31"),
		tx("11", 2, core.Expense, core.Food, "2023-12-31"),
		tx("12", 1, core.Expense, core.Food, "2023-01-01"),
	}
	// Same records in a scrambled order must give the same series.
	scrambled := []core.Transaction{}
	for _, i := range []int{6, 0, 11, 3, 9, 1, 8, 4, 10, 2, 7, 5} {
		scrambled = append(scrambled, records[i])
	}

	for _, input := range [][]core.Transaction{records, scrambled} {
		monthly := ComputeMonthlySeries(input)
		wantMonths := []string{"2023-01", "2023-12", "2024-01", "2024-02", "2024-12", "2025-01"}
		if len(monthly) != len(wantMonths) {
			t.Fatalf("unexpected monthly %+v", monthly)
		}
		for i, m := range monthly {
			if m.Month != wantMonths[i] {
				t.Fatalf("month %d: got %s want %s", i, m.Month, wantMonths[i])
			}
			if i > 0 && monthly[i-1].Month >= m.Month {
				t.Fatalf("months not strictly ascending: %s then %s", monthly[i-1].Month, m.Month)
			}
		}
		if jan := monthly[5]; !jan.Income.Equal(dec(6)) || !jan.Expense.Equal(dec(9)) {
			t.Fatalf("unexpected 2025-01 totals %+v", jan)
		}

		daily := ComputeDailyExpenseTrend(input)
		wantDays := []string{"2023-01-01", "2023-12-31", "2024-01-31", "2024-02-10", "2024-12-01", "2024-12-31", "2025-01-01", "2025-01-02"}
		if len(daily) != len(wantDays) {
			t.Fatalf("unexpected daily %+v", daily)
		}
		for i, d := range daily {
			if d.Date != wantDays[i] {
				t.Fatalf("day %d: got %s want %s", i, d.Date, wantDays[i])
			}
			if i > 0 && daily[i-1].Date >= d.Date {
				t.Fatalf("days not strictly ascending: %s then %s", daily[i-1].Date, d.Date)
			}
		}
		if d := daily[5]; !d.Expense.Equal(dec(10)) {
			t.Fatalf("unexpected 2024-12-31 expense %+v", d)
		}
	}
}

func TestNegativeBalance(t *testing.T) {
	totals := ComputeTotals([]core.Transaction{
		tx("1", 10, core.Income, core.Salary, "2024-01-01"),
		tx("2", 25, core.Expense, core.Food, "2024-01-01"),
	})
	if !totals.Balance.Equal(dec(-15)) {
		t.Fatalf("expected -15, got %s", totals.Balance)
	}
}

func TestDailyTrendSkipsIncomeOnlyDays(t *testing.T) {
	got := ComputeDailyExpenseTrend([]core.Transaction{
		tx("1", 10, core.Income, core.Salary, "2024-01-01"),
		tx("2", 3, core.Expense, core.Food, "2024-01-02"),
		tx("3", 4, core.Expense, core.Food, "2024-01-02"),
	})
	if len(got) != 1 || got[0].Date != "2024-01-02" || !got[0].Expense.Equal(dec(7)) {
		t.Fatalf("unexpected trend %+v", got)
	}
}
