// Package tables is the remote table-store contract the ledger syncs to,
// plus the schema and row codec shared by every backend.
package tables

import (
	"context"
	"errors"
)

const (
	Transactions Collection = "transactions"
	Budgets      Collection = "budgets"
	Categories   Collection = "categories"
	Bills        Collection = "bills"
	SavingsGoals Collection = "savings_goals"
)

type (
	// Collection names a remote table.
	Collection string

	// Row is a record keyed by column name. Values are normalized by
	// Schema.Normalize: string, int64, bool or nil.
	Row map[string]any

	// Query filters Select by owner and orders the result.
	Query struct {
		UserID  string
		OrderBy string
		Desc    bool
	}
)

// Store is a remote keyed table store. Every operation may fail
// independently; Update and Delete on a missing id succeed without effect.
type Store interface {
	Select(ctx context.Context, c Collection, q Query) ([]Row, error)
	Insert(ctx context.Context, c Collection, rows ...Row) ([]Row, error)
	Update(ctx context.Context, c Collection, id string, fields Row) error
	Delete(ctx context.Context, c Collection, id string) error
}

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrMissingID         = errors.New("row has no id")
)

// All lists every collection in load order.
func All() []Collection {
	return []Collection{Transactions, Budgets, Categories, Bills, SavingsGoals}
}

// ID returns the row's id column as a string.
func (r Row) ID() string {
	s, _ := r["id"].(string)
	return s
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
