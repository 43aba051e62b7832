package memory

import (
	"context"
	"errors"
	"testing"

	"dompet/internal/tables"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Insert(ctx, tables.Transactions,
		tables.Row{"id": "t1", "user_id": "u1", "date": "2024-01-02", "amount": int64(1000), "type": "expense", "category": "Makanan"},
		tables.Row{"id": "t2", "user_id": "u1", "date": "2024-01-05", "amount": int64(2000), "type": "expense", "category": "Makanan"},
		tables.Row{"id": "t3", "user_id": "u2", "date": "2024-01-09", "amount": int64(3000), "type": "income", "category": "Gaji"},
	)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := s.Select(ctx, tables.Transactions, tables.Query{UserID: "u1", OrderBy: "date", Desc: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 || rows[0].ID() != "t2" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := s.Update(ctx, tables.Transactions, "t1", tables.Row{"amount": 1500}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Update(ctx, tables.Transactions, "missing", tables.Row{"amount": 1}); err != nil {
		t.Fatalf("update of missing id should be a no-op: %v", err)
	}
	rows, _ = s.Select(ctx, tables.Transactions, tables.Query{UserID: "u1", OrderBy: "date"})
	if rows[0]["amount"] != int64(1500) {
		t.Fatalf("amount not updated: %v", rows[0]["amount"])
	}

	if err := s.Delete(ctx, tables.Transactions, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len(tables.Transactions) != 2 {
		t.Fatalf("expected 2 rows, got %d", s.Len(tables.Transactions))
	}
}

func TestStoreRejects(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Insert(ctx, tables.Categories, tables.Row{"name": "x"}); !errors.Is(err, tables.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if _, err := s.Insert(ctx, tables.Categories, tables.Row{"id": "c1", "nope": 1}); !errors.Is(err, tables.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if _, err := s.Select(ctx, "accounts", tables.Query{}); !errors.Is(err, tables.ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if _, err := s.Insert(ctx, tables.Categories, tables.Row{"id": "c1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, tables.Categories, tables.Row{"id": "c1"}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestStoreFailWith(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("network down")
	s.FailWith(func(op string, c tables.Collection) error {
		if op == "insert" && c == tables.Bills {
			return boom
		}
		return nil
	})
	if _, err := s.Insert(ctx, tables.Bills, tables.Row{"id": "b1"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := s.Insert(ctx, tables.Budgets, tables.Row{"id": "x"}); err != nil {
		t.Fatalf("other collections unaffected: %v", err)
	}
	s.FailWith(nil)
	if _, err := s.Insert(ctx, tables.Bills, tables.Row{"id": "b1"}); err != nil {
		t.Fatalf("hook cleared: %v", err)
	}
}
