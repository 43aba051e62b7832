// Package sqlite is a table store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dompet/internal/tables"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	sql tables.SQLBuilder
}

var _ tables.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of concurrent dispatches.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:  db,
		sql: tables.SQLBuilder{Placeholder: tables.QuestionMark, Encode: encode},
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
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
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	defer rows.Close()

	names := sc.Names()
	var out []tables.Row
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c, err)
		}
		raw := make(tables.Row, len(names))
		for i, n := range names {
			raw[n] = vals[i]
		}
		r, err := sc.Normalize(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c, err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, c tables.Collection, rows ...tables.Row) ([]tables.Row, error) {
	sc, err := tables.SchemaOf(c)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

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
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert %s: %w", c, err)
		}
		out = append(out, n)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Rows inserted into SQLite", "collection", c, "count", len(out))
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
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
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
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, id, err)
	}
	return nil
}

// encode stores booleans as 0/1; everything else is already text or integer.
func encode(col tables.Column, v any) (any, error) {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return v, nil
}
