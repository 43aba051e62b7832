package ledger

import (
	"context"
	"fmt"

	"dompet/internal/core"
	"dompet/internal/tables"
)

func txKey(t core.Transaction) string { return t.ID }
func budgetKey(b core.Budget) string { return b.ID }
func categoryKey(c core.Category) string { return c.ID }
func billKey(b core.Bill) string { return b.ID }
func goalKey(g core.SavingsGoal) string { return g.ID }

// updateLocal applies a patch to the record with the given id, if present,
// and refuses the change when the result would not validate.
func updateLocal[T any](items []T, id string, key func(T) string, apply func(*T), validate func(T) error) error {
	i := indexOf(items, id, key)
	if i < 0 {
		return nil
	}
	next := items[i]
	apply(&next)
	if err := validate(next); err != nil {
		return err
	}
	items[i] = next
	return nil
}

func (s *Store) insertCall(c tables.Collection, rows ...tables.Row) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.remote.Insert(ctx, c, rows...)
		return err
	}
}

func (s *Store) updateCall(c tables.Collection, id string, fields tables.Row) func(context.Context) error {
	return func(ctx context.Context) error {
		return s.remote.Update(ctx, c, id, fields)
	}
}

func (s *Store) deleteCall(c tables.Collection, id string) func(context.Context) error {
	return func(ctx context.Context) error {
		return s.remote.Delete(ctx, c, id)
	}
}

// AddTransaction assigns id, owner and creation time, puts the transaction
// at the head of the local list and inserts it remotely.
func (s *Store) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, *Op, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return t, nil, ErrNotSignedIn
	}
	t.ID, t.UserID, t.CreatedAt = s.newID(), s.userID, s.now()
	if err := t.Validate(); err != nil {
		s.mu.Unlock()
		return t, nil, fmt.Errorf("invalid transaction: %w", err)
	}
	row, err := tables.Encode(tables.Transactions, t)
	if err != nil {
		s.mu.Unlock()
		return t, nil, err
	}
	s.transactions = append([]core.Transaction{t}, s.transactions...)
	user := s.userID
	s.mu.Unlock()

	return t, s.dispatch(ctx, OpInsert, tables.Transactions, t.ID, user, s.insertCall(tables.Transactions, row)), nil
}

// UpdateTransaction merges p into the local record and updates the remote
// row. An id unknown locally still reaches the remote store.
func (s *Store) UpdateTransaction(ctx context.Context, id string, p TransactionPatch) (*Op, error) {
	s.mu.Lock()
	err := updateLocal(s.transactions, id, txKey, p.apply, core.Transaction.Validate)
	user := s.userID
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return s.dispatch(ctx, OpUpdate, tables.Transactions, id, user, s.updateCall(tables.Transactions, id, p.row())), nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) *Op {
	s.mu.Lock()
	s.transactions = remove(s.transactions, id, txKey)
	user := s.userID
	s.mu.Unlock()
	return s.dispatch(ctx, OpDelete, tables.Transactions, id, user, s.deleteCall(tables.Transactions, id))
}

func (s *Store) AddBudget(ctx context.Context, b core.Budget) (core.Budget, *Op, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return b, nil, ErrNotSignedIn
	}
	b.ID, b.UserID, b.CreatedAt = s.newID(), s.userID, s.now()
	if err := b.Validate(); err != nil {
		s.mu.Unlock()
		return b, nil, fmt.Errorf("invalid budget: %w", err)
	}
	row, err := tables.Encode(tables.Budgets, b)
	if err != nil {
		s.mu.Unlock()
		return b, nil, err
	}
	s.budgets = append(s.budgets, b)
	user := s.userID
	s.mu.Unlock()

	return b, s.dispatch(ctx, OpInsert, tables.Budgets, b.ID, user, s.insertCall(tables.Budgets, row)), nil
}

func (s *Store) UpdateBudget(ctx context.Context, id string, p BudgetPatch) (*Op, error) {
	s.mu.Lock()
	err := updateLocal(s.budgets, id, budgetKey, p.apply, core.Budget.Validate)
	user := s.userID
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("invalid budget: %w", err)
	}
	return s.dispatch(ctx, OpUpdate, tables.Budgets, id, user, s.updateCall(tables.Budgets, id, p.row())), nil
}

func (s *Store) DeleteBudget(ctx context.Context, id string) *Op {
	s.mu.Lock()
	s.budgets = remove(s.budgets, id, budgetKey)
	user := s.userID
	s.mu.Unlock()
	return s.dispatch(ctx, OpDelete, tables.Budgets, id, user, s.deleteCall(tables.Budgets, id))
}

func (s *Store) AddCategory(ctx context.Context, c core.Category) (core.Category, *Op, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return c, nil, ErrNotSignedIn
	}
	c.ID, c.UserID = s.newID(), s.userID
	if err := c.Validate(); err != nil {
		s.mu.Unlock()
		return c, nil, fmt.Errorf("invalid category: %w", err)
	}
	row, err := tables.Encode(tables.Categories, c)
	if err != nil {
		s.mu.Unlock()
		return c, nil, err
	}
	s.categories = append(s.categories, c)
	user := s.userID
	s.mu.Unlock()

	return c, s.dispatch(ctx, OpInsert, tables.Categories, c.ID, user, s.insertCall(tables.Categories, row)), nil
}

// UpdateCategory does not rewrite the category name stored on existing
// transactions, budgets or bills.
func (s *Store) UpdateCategory(ctx context.Context, id string, p CategoryPatch) (*Op, error) {
	s.mu.Lock()
	err := updateLocal(s.categories, id, categoryKey, p.apply, core.Category.Validate)
	user := s.userID
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("invalid category: %w", err)
	}
	return s.dispatch(ctx, OpUpdate, tables.Categories, id, user, s.updateCall(tables.Categories, id, p.row())), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) *Op {
	s.mu.Lock()
	s.categories = remove(s.categories, id, categoryKey)
	user := s.userID
	s.mu.Unlock()
	return s.dispatch(ctx, OpDelete, tables.Categories, id, user, s.deleteCall(tables.Categories, id))
}

// AddBill starts NextDue at DueDate unless the caller set it, and drops
// CustomDays for non-custom frequencies.
func (s *Store) AddBill(ctx context.Context, b core.Bill) (core.Bill, *Op, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return b, nil, ErrNotSignedIn
	}
	b.ID, b.UserID, b.CreatedAt = s.newID(), s.userID, s.now()
	if b.NextDue.IsEmpty() {
		b.NextDue = b.DueDate
	}
	if b.Frequency != core.Custom {
		b.CustomDays = nil
	}
	if err := b.Validate(); err != nil {
		s.mu.Unlock()
		return b, nil, fmt.Errorf("invalid bill: %w", err)
	}
	row, err := tables.Encode(tables.Bills, b)
	if err != nil {
		s.mu.Unlock()
		return b, nil, err
	}
	s.bills = append(s.bills, b)
	user := s.userID
	s.mu.Unlock()

	return b, s.dispatch(ctx, OpInsert, tables.Bills, b.ID, user, s.insertCall(tables.Bills, row)), nil
}

func (s *Store) UpdateBill(ctx context.Context, id string, p BillPatch) (*Op, error) {
	s.mu.Lock()
	err := updateLocal(s.bills, id, billKey, p.apply, core.Bill.Validate)
	user := s.userID
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("invalid bill: %w", err)
	}
	return s.dispatch(ctx, OpUpdate, tables.Bills, id, user, s.updateCall(tables.Bills, id, p.row())), nil
}

// DeleteBill removes the bill row. Use UpdateBill with IsActive=false to
// pause a bill instead.
func (s *Store) DeleteBill(ctx context.Context, id string) *Op {
	s.mu.Lock()
	s.bills = remove(s.bills, id, billKey)
	user := s.userID
	s.mu.Unlock()
	return s.dispatch(ctx, OpDelete, tables.Bills, id, user, s.deleteCall(tables.Bills, id))
}

// AddGoal derives IsCompleted from the starting amounts.
func (s *Store) AddGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, *Op, error) {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return g, nil, ErrNotSignedIn
	}
	g.ID, g.UserID, g.CreatedAt = s.newID(), s.userID, s.now()
	g.IsCompleted = g.TargetAmount > 0 && g.SavedAmount >= g.TargetAmount
	if err := g.Validate(); err != nil {
		s.mu.Unlock()
		return g, nil, fmt.Errorf("invalid goal: %w", err)
	}
	row, err := tables.Encode(tables.SavingsGoals, g)
	if err != nil {
		s.mu.Unlock()
		return g, nil, err
	}
	s.goals = append(s.goals, g)
	user := s.userID
	s.mu.Unlock()

	return g, s.dispatch(ctx, OpInsert, tables.SavingsGoals, g.ID, user, s.insertCall(tables.SavingsGoals, row)), nil
}

func (s *Store) UpdateGoal(ctx context.Context, id string, p GoalPatch) (*Op, error) {
	s.mu.Lock()
	err := updateLocal(s.goals, id, goalKey, p.apply, core.SavingsGoal.Validate)
	user := s.userID
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("invalid goal: %w", err)
	}
	return s.dispatch(ctx, OpUpdate, tables.SavingsGoals, id, user, s.updateCall(tables.SavingsGoals, id, p.row())), nil
}

func (s *Store) DeleteGoal(ctx context.Context, id string) *Op {
	s.mu.Lock()
	s.goals = remove(s.goals, id, goalKey)
	user := s.userID
	s.mu.Unlock()
	return s.dispatch(ctx, OpDelete, tables.SavingsGoals, id, user, s.deleteCall(tables.SavingsGoals, id))
}
