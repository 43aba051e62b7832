// Package memory is an in-process table store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"dompet/internal/tables"
)

// FailFunc lets callers inject remote failures; a non-nil return aborts
// the operation with that error.
type FailFunc func(op string, c tables.Collection) error

type Store struct {
	mu   sync.Mutex
	rows map[tables.Collection][]tables.Row
	fail FailFunc
}

var _ tables.Store = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[tables.Collection][]tables.Row)}
}

// FailWith installs fn as the failure hook. Passing nil clears it.
func (s *Store) FailWith(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

func (s *Store) check(op string, c tables.Collection) (tables.Schema, error) {
	sc, err := tables.SchemaOf(c)
	if err != nil {
		return sc, err
	}
	if s.fail != nil {
		if err := s.fail(op, c); err != nil {
			return sc, err
		}
	}
	return sc, nil
}

func (s *Store) Select(_ context.Context, c tables.Collection, q tables.Query) ([]tables.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.check("select", c)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(sc); err != nil {
		return nil, err
	}
	return q.Apply(s.rows[c]), nil
}

func (s *Store) Insert(_ context.Context, c tables.Collection, rows ...tables.Row) ([]tables.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.check("insert", c)
	if err != nil {
		return nil, err
	}
	batch := make([]tables.Row, 0, len(rows))
	for _, r := range rows {
		n, err := sc.Normalize(r)
		if err != nil {
			return nil, err
		}
		if n.ID() == "" {
			return nil, tables.ErrMissingID
		}
		if s.indexOf(c, n.ID()) >= 0 {
			return nil, fmt.Errorf("duplicate id %s in %s", n.ID(), c)
		}
		batch = append(batch, n)
	}
	out := make([]tables.Row, len(batch))
	for i, r := range batch {
		s.rows[c] = append(s.rows[c], r)
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, c tables.Collection, id string, fields tables.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.check("update", c)
	if err != nil {
		return err
	}
	n, err := sc.Normalize(fields)
	if err != nil {
		return err
	}
	i := s.indexOf(c, id)
	if i < 0 {
		return nil
	}
	row := s.rows[c][i].Clone()
	for k, v := range n {
		if k == "id" {
			continue
		}
		row[k] = v
	}
	s.rows[c][i] = row
	return nil
}

func (s *Store) Delete(_ context.Context, c tables.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.check("delete", c); err != nil {
		return err
	}
	if i := s.indexOf(c, id); i >= 0 {
		s.rows[c] = append(s.rows[c][:i:i], s.rows[c][i+1:]...)
	}
	return nil
}

// Len reports how many rows a collection holds.
func (s *Store) Len(c tables.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[c])
}

func (s *Store) indexOf(c tables.Collection, id string) int {
	for i, r := range s.rows[c] {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
