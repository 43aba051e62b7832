// Package postgres is a table store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"dompet/internal/core"
	"dompet/internal/tables"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	sql  tables.SQLBuilder
}

var _ tables.Store = (*Store)(nil)

// Connect migrates the database at url and opens a pool on it.
func Connect(ctx context.Context, url string) (*Store, error) {
	if err := RunMigrations(url); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sql:  tables.SQLBuilder{Placeholder: tables.DollarN, Encode: encode},
	}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Select(ctx context.Context, c tables.Collection, q tables.Query) ([]tables.Row, error) {
	sc, err := tables.SchemaOf(c)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sql.Select(sc, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", c, err)
	}
	out := make([]tables.Row, 0, len(maps))
	for _, m := range maps {
		r, err := sc.Normalize(tables.Row(m))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, c tables.Collection, rows ...tables.Row) ([]tables.Row, error) {
	sc, err := tables.SchemaOf(c)
	if err != nil {
		return nil, err
	}
	batch := &pgx.Batch{}
	out := make([]tables.Row, 0, len(rows))
	for _, r := range rows {
		n, err := sc.Normalize(r)
		if err != nil {
			return nil, err
		}
		query, args, err := s.sql.Insert(sc, n)
		if err != nil {
			return nil, err
		}
		batch.Queue(query, args...)
		out = append(out, n)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert %s: %w", c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, c tables.Collection, id string, fields tables.Row) error {
	sc, err := tables.SchemaOf(c)
	if err != nil {
		return err
	}
	n, err := sc.Normalize(fields)
	if err != nil {
		return err
	}
	query, args, err := s.sql.Update(sc, id, n)
	if err != nil || query == "" {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s %s: %w", c, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, c tables.Collection, id string) error {
	sc, err := tables.SchemaOf(c)
	if err != nil {
		return err
	}
	query, args := s.sql.Delete(sc, id)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, id, err)
	}
	return nil
}

// encode hands DATE and TIMESTAMPTZ columns to pgx as time.Time.
func encode(col tables.Column, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch col.Kind {
	case tables.Date:
		if s == "" {
			return nil, nil
		}
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, err
		}
		return d.Time, nil
	case tables.Timestamp:
		if s == "" {
			return nil, nil
		}
		return time.Parse(tables.TimestampLayout, s)
	}
	return v, nil
}
