package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Income     int64            `json:"income"`
	Expense    int64            `json:"expense"`
	Net        int64            `json:"net"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// BudgetUsageRow pairs a budget with what was spent against it in the
// period containing the reference time.
type BudgetUsageRow struct {
	Budget    Budget  `json:"budget"`
	Spent     int64   `json:"spent"`
	Remaining int64   `json:"remaining"`
	Percent   float64 `json:"percent"`
	Exceeded  bool    `json:"exceeded"`
}

// MonthlySpending sums expense amounts dated in ref's calendar month.
// An empty category matches every category.
func MonthlySpending(txs []Transaction, category string, ref time.Time) int64 {
	var total int64
	for _, t := range txs {
		if t.Type != Expense || !t.Date.InMonth(ref) {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		total += t.Amount
	}
	return total
}

// MonthlyIncome sums income amounts dated in ref's calendar month.
func MonthlyIncome(txs []Transaction, ref time.Time) int64 {
	var total int64
	for _, t := range txs {
		if t.Type == Income && t.Date.InMonth(ref) {
			total += t.Amount
		}
	}
	return total
}

// TotalBalance is all-time income minus all-time expense.
func TotalBalance(txs []Transaction) int64 {
	var total int64
	for _, t := range txs {
		switch t.Type {
		case Income:
			total += t.Amount
		case Expense:
			total -= t.Amount
		}
	}
	return total
}

// MonthlyStats summarises ref's month. ByCategory covers expenses only and
// is sorted by amount, largest first.
func MonthlyStats(txs []Transaction, ref time.Time) MonthOverview {
	ov := MonthOverview{Year: ref.Year(), Month: int(ref.Month())}
	byCat := map[string]int64{}
	for _, t := range txs {
		if !t.Date.InMonth(ref) {
			continue
		}
		switch t.Type {
		case Income:
			ov.Income += t.Amount
		case Expense:
			ov.Expense += t.Amount
			byCat[t.Category] += t.Amount
		}
	}
	ov.Net = ov.Income - ov.Expense
	ov.ByCategory = make([]CategoryAmount, 0, len(byCat))
	for name, amt := range byCat {
		ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		if ov.ByCategory[i].Amount != ov.ByCategory[j].Amount {
			return ov.ByCategory[i].Amount > ov.ByCategory[j].Amount
		}
		return ov.ByCategory[i].Name < ov.ByCategory[j].Name
	})
	return ov
}

// MonthlyTrend returns one overview per month for the n months ending
// with ref's month, oldest first.
func MonthlyTrend(txs []Transaction, ref time.Time, n int) []MonthOverview {
	if n <= 0 {
		return nil
	}
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	out := make([]MonthOverview, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, MonthlyStats(txs, first.AddDate(0, -i, 0)))
	}
	return out
}

// BudgetUsage computes spending per budget over each budget's own period.
func BudgetUsage(budgets []Budget, txs []Transaction, ref time.Time) []BudgetUsageRow {
	out := make([]BudgetUsageRow, 0, len(budgets))
	for _, b := range budgets {
		start, end := PeriodWindow(b.Period, ref)
		var spent int64
		for _, t := range txs {
			if t.Type == Expense && t.Category == b.Category && t.Date.Within(start, end) {
				spent += t.Amount
			}
		}
		row := BudgetUsageRow{Budget: b, Spent: spent, Remaining: b.LimitAmount - spent}
		if b.LimitAmount > 0 {
			row.Percent = float64(spent) * 100 / float64(b.LimitAmount)
		}
		row.Exceeded = spent > b.LimitAmount
		out = append(out, row)
	}
	return out
}

// GoalProgress is the saved share of the target as a percentage capped at 100.
func GoalProgress(g SavingsGoal) float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := float64(g.SavedAmount) * 100 / float64(g.TargetAmount)
	if p > 100 {
		return 100
	}
	return p
}

// GoalRemainder is what is still missing to reach the target, never negative.
func GoalRemainder(g SavingsGoal) int64 {
	if r := g.TargetAmount - g.SavedAmount; r > 0 {
		return r
	}
	return 0
}
