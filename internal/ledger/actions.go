package ledger

import (
	"context"
	"fmt"

	"dompet/internal/core"
	"dompet/internal/tables"
)

// PaidResult is what MarkPaid did. Record is nil unless the bill records
// its payment automatically.
type PaidResult struct {
	Bill      core.Bill         `json:"bill"`
	NextDue   core.Date         `json:"next_due"`
	Record    *core.Transaction `json:"transaction,omitempty"`
	RecordOp  *Op               `json:"-"`
	AdvanceOp *Op               `json:"-"`
}

// MarkPaid settles the bill's current cycle. With AutoRecord it first adds
// an expense dated today for the bill amount; then it advances NextDue by
// one cycle. The two remote writes are independent: either may fail while
// the other succeeds.
func (s *Store) MarkPaid(ctx context.Context, billID string) (PaidResult, error) {
	s.mu.RLock()
	i := indexOf(s.bills, billID, billKey)
	var bill core.Bill
	if i >= 0 {
		bill = s.bills[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return PaidResult{}, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}

	res := PaidResult{Bill: bill}
	if bill.AutoRecord {
		tx, op, err := s.AddTransaction(ctx, core.Transaction{
			Date:        core.DateOf(s.now()),
			Amount:      bill.Amount,
			Type:        core.Expense,
			Category:    bill.Category,
			Description: "Bill: " + bill.Name,
		})
		if err != nil {
			return res, fmt.Errorf("record payment: %w", err)
		}
		res.Record, res.RecordOp = &tx, op
	}

	s.mu.Lock()
	i = indexOf(s.bills, billID, billKey)
	if i < 0 {
		s.mu.Unlock()
		return res, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	current := s.bills[i]
	next := core.NextDueDate(current.NextDue, current.Frequency, current.CustomDays)
	s.bills[i].NextDue = next
	res.Bill = s.bills[i]
	user := s.userID
	s.mu.Unlock()

	patch := BillPatch{NextDue: &next}
	res.NextDue = next
	res.AdvanceOp = s.dispatch(ctx, OpUpdate, tables.Bills, billID, user, s.updateCall(tables.Bills, billID, patch.row()))
	return res, nil
}

// AddSaving deposits amount into a goal. IsCompleted is recomputed from the
// new total.
func (s *Store) AddSaving(ctx context.Context, goalID string, amount int64) (core.SavingsGoal, *Op, error) {
	if amount <= 0 {
		return core.SavingsGoal{}, nil, core.ErrInvalidAmount
	}
	s.mu.Lock()
	i := indexOf(s.goals, goalID, goalKey)
	if i < 0 {
		s.mu.Unlock()
		return core.SavingsGoal{}, nil, fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}
	g := s.goals[i]
	g.SavedAmount += amount
	g.IsCompleted = g.SavedAmount >= g.TargetAmount
	s.goals[i] = g
	user := s.userID
	s.mu.Unlock()

	patch := GoalPatch{SavedAmount: &g.SavedAmount, IsCompleted: &g.IsCompleted}
	op := s.dispatch(ctx, OpUpdate, tables.SavingsGoals, goalID, user, s.updateCall(tables.SavingsGoals, goalID, patch.row()))
	return g, op, nil
}
