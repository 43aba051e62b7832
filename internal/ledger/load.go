package ledger

import (
	"context"
	"fmt"
	"sync"

	"dompet/internal/core"
	dlog "dompet/internal/log"
	"dompet/internal/tables"

	"golang.org/x/sync/errgroup"
)

// LoadReport describes what LoadAll fetched.
type LoadReport struct {
	UserID string                       `json:"user_id"`
	Counts map[tables.Collection]int    `json:"counts"`
	Failed map[tables.Collection]string `json:"failed,omitempty"`
	Seeded bool                         `json:"seeded"`
	// Stale is set when a newer LoadAll or Clear superseded this one and
	// its results were discarded.
	Stale bool `json:"stale"`
}

var loadQueries = map[tables.Collection]tables.Query{
	tables.Transactions: {OrderBy: "date", Desc: true},
	tables.Budgets:      {OrderBy: "created_at"},
	tables.Categories:   {},
	tables.Bills:        {OrderBy: "next_due"},
	tables.SavingsGoals: {OrderBy: "created_at", Desc: true},
}

type loaded struct {
	transactions []core.Transaction
	budgets      []core.Budget
	categories   []core.Category
	bills        []core.Bill
	goals        []core.SavingsGoal
}

// LoadAll makes userID the current user and replaces every local
// collection with what the remote store holds for them. The five reads run
// in parallel; a failed read leaves its collection empty. When categories
// come back empty the defaults are seeded before the store turns Ready.
func (s *Store) LoadAll(ctx context.Context, userID string) LoadReport {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.userID = userID
	s.state = Loading
	s.mu.Unlock()

	report := LoadReport{
		UserID: userID,
		Counts: make(map[tables.Collection]int),
		Failed: make(map[tables.Collection]string),
	}

	var (
		g   errgroup.Group
		mu  sync.Mutex
		out loaded
	)
	fail := func(c tables.Collection, err error) {
		mu.Lock()
		report.Failed[c] = err.Error()
		mu.Unlock()
		s.log.WarnContext(ctx, "Remote read failed, using empty collection",
			dlog.FieldCollection, c, dlog.FieldUserID, userID, dlog.FieldError, err)
	}
	for _, c := range tables.All() {
		g.Go(func() error {
			q := loadQueries[c]
			q.UserID = userID
			rows, err := s.remote.Select(ctx, c, q)
			if err != nil {
				fail(c, err)
				return nil
			}
			if err := decodeInto(&out, c, rows); err != nil {
				fail(c, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		report.Stale = true
		return report
	}
	s.transactions = out.transactions
	s.budgets = out.budgets
	s.categories = out.categories
	s.bills = out.bills
	s.goals = out.goals
	s.mu.Unlock()

	_, catFailed := report.Failed[tables.Categories]
	if len(out.categories) == 0 && !catFailed {
		if err := s.seed(ctx, gen); err != nil {
			report.Failed[tables.Categories] = err.Error()
		} else {
			report.Seeded = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		report.Stale = true
		return report
	}
	s.state = Ready
	report.Counts[tables.Transactions] = len(s.transactions)
	report.Counts[tables.Budgets] = len(s.budgets)
	report.Counts[tables.Categories] = len(s.categories)
	report.Counts[tables.Bills] = len(s.bills)
	report.Counts[tables.SavingsGoals] = len(s.goals)

	s.log.InfoContext(ctx, "Ledger loaded",
		dlog.FieldUserID, userID,
		"transactions", len(s.transactions),
		"bills", len(s.bills),
		"failed", len(report.Failed),
		"seeded", report.Seeded)
	return report
}

// decodeInto writes one collection's rows into out. Each collection is
// written by exactly one goroutine.
func decodeInto(out *loaded, c tables.Collection, rows []tables.Row) error {
	var err error
	switch c {
	case tables.Transactions:
		out.transactions, err = tables.DecodeAll[core.Transaction](rows)
	case tables.Budgets:
		out.budgets, err = tables.DecodeAll[core.Budget](rows)
	case tables.Categories:
		out.categories, err = tables.DecodeAll[core.Category](rows)
	case tables.Bills:
		out.bills, err = tables.DecodeAll[core.Bill](rows)
	case tables.SavingsGoals:
		out.goals, err = tables.DecodeAll[core.SavingsGoal](rows)
	default:
		err = fmt.Errorf("%w: %s", tables.ErrUnknownCollection, c)
	}
	return err
}

// SeedDefaultCategories inserts the default category set for the current
// user and, once the remote insert succeeds, makes it the local category
// list. On failure local categories are left as they were.
func (s *Store) SeedDefaultCategories(ctx context.Context) error {
	s.mu.RLock()
	gen := s.gen
	signedIn := s.userID != ""
	s.mu.RUnlock()
	if !signedIn {
		return ErrNotSignedIn
	}
	return s.seed(ctx, gen)
}

func (s *Store) seed(ctx context.Context, gen uint64) error {
	s.mu.RLock()
	user := s.userID
	s.mu.RUnlock()

	defaults := core.DefaultCategories()
	rows := make([]tables.Row, 0, len(defaults))
	for i := range defaults {
		defaults[i].ID = s.newID()
		defaults[i].UserID = user
		r, err := tables.Encode(tables.Categories, defaults[i])
		if err != nil {
			return err
		}
		rows = append(rows, r)
	}

	inserted, err := s.remote.Insert(ctx, tables.Categories, rows...)
	if err != nil {
		s.log.ErrorContext(ctx, "Seeding default categories failed",
			dlog.FieldUserID, user, dlog.FieldError, err)
		return fmt.Errorf("seed categories: %w", err)
	}
	cats, err := tables.DecodeAll[core.Category](inserted)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.categories = cats
	}
	s.log.InfoContext(ctx, "Seeded default categories", dlog.FieldUserID, user, "count", len(cats))
	return nil
}
