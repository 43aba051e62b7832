// Package backend chooses and opens the remote table store the ledger
// mirrors into.
package backend

import (
	"context"

	"dompet/internal/tables"
)

// CleanupFunc releases a backend's resources.
type CleanupFunc func() error

// PingFunc reports whether a backend is reachable.
type PingFunc func(ctx context.Context) error

// Result is an opened backend.
type Result struct {
	Type    Type
	Store   tables.Store
	Cleanup CleanupFunc
	Ping    PingFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Check runs Ping if there is one.
func (r *Result) Check(ctx context.Context) error {
	if r == nil || r.Ping == nil {
		return nil
	}
	return r.Ping(ctx)
}

type Factory interface {
	Open(ctx context.Context, config Config) (*Result, error)
}

type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
	SheetsBackend   Type = "sheets"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend}
}
