//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"dompet/internal/core"
	"dompet/internal/tables"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Run with: go test -tags=integration ./internal/tables/postgres
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("dompet"),
		tcpostgres.WithUsername("dompet"),
		tcpostgres.WithPassword("dompet"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	txs := []core.Transaction{
		{ID: "t1", UserID: "u1", Date: core.NewDate(2024, 3, 1), Amount: 50000, Type: core.Expense, Category: "Makanan", CreatedAt: time.Now()},
		{ID: "t2", UserID: "u1", Date: core.NewDate(2024, 3, 9), Amount: 9000000, Type: core.Income, Category: "Gaji", CreatedAt: time.Now()},
		{ID: "t3", UserID: "u2", Date: core.NewDate(2024, 3, 5), Amount: 1, Type: core.Expense, Category: "Lainnya", CreatedAt: time.Now()},
	}
	rows := make([]tables.Row, 0, len(txs))
	for _, tx := range txs {
		r, err := tables.Encode(tables.Transactions, tx)
		require.NoError(t, err)
		rows = append(rows, r)
	}
	_, err := s.Insert(ctx, tables.Transactions, rows...)
	require.NoError(t, err)

	got, err := s.Select(ctx, tables.Transactions, tables.Query{UserID: "u1", OrderBy: "date", Desc: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].ID())
	assert.Equal(t, "2024-03-09", got[0]["date"])
	assert.Nil(t, got[0]["receipt_url"])

	require.NoError(t, s.Update(ctx, tables.Transactions, "t1", tables.Row{"amount": int64(55000)}))
	require.NoError(t, s.Delete(ctx, tables.Transactions, "t2"))

	got, err = s.Select(ctx, tables.Transactions, tables.Query{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(55000), got[0]["amount"])

	decoded, err := tables.DecodeAll[core.Transaction](got)
	require.NoError(t, err)
	assert.Equal(t, "Makanan", decoded[0].Category)
}
