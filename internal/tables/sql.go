package tables

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

// Encoder converts a normalized value to what a SQL driver expects for col.
type Encoder func(col Column, v any) (any, error)

func QuestionMark(int) string { return "?" }

func DollarN(n int) string { return "$" + strconv.Itoa(n) }

// SQLBuilder renders the four table-store operations as parameterized SQL.
// Identifiers come from the schema only; values are always bound.
type SQLBuilder struct {
	Placeholder Placeholder
	Encode      Encoder
}

func (b SQLBuilder) arg(col Column, v any) (any, error) {
	if b.Encode == nil || v == nil {
		return v, nil
	}
	return b.Encode(col, v)
}

func (b SQLBuilder) Select(s Schema, q Query) (string, []any, error) {
	if err := q.Validate(s); err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(s.Names(), ", "), s.Collection)
	if q.UserID != "" {
		args = append(args, q.UserID)
		fmt.Fprintf(&sb, " WHERE user_id = %s", b.Placeholder(1))
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s, id", q.OrderBy, dir)
	}
	return sb.String(), args, nil
}

func (b SQLBuilder) Insert(s Schema, r Row) (string, []any, error) {
	if r.ID() == "" {
		return "", nil, ErrMissingID
	}
	var cols, marks []string
	var args []any
	for _, col := range s.Columns {
		v, ok := r[col.Name]
		if !ok {
			continue
		}
		a, err := b.arg(col, v)
		if err != nil {
			return "", nil, fmt.Errorf("%s.%s: %w", s.Collection, col.Name, err)
		}
		args = append(args, a)
		cols = append(cols, col.Name)
		marks = append(marks, b.Placeholder(len(args)))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.Collection, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return q, args, nil
}

// Update renders an UPDATE of the given fields. It returns an empty query
// when there is nothing to set.
func (b SQLBuilder) Update(s Schema, id string, fields Row) (string, []any, error) {
	var sets []string
	var args []any
	for _, col := range s.Columns {
		v, ok := fields[col.Name]
		if !ok || col.Name == "id" {
			continue
		}
		a, err := b.arg(col, v)
		if err != nil {
			return "", nil, fmt.Errorf("%s.%s: %w", s.Collection, col.Name, err)
		}
		args = append(args, a)
		sets = append(sets, col.Name+" = "+b.Placeholder(len(args)))
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", s.Collection, strings.Join(sets, ", "), b.Placeholder(len(args)))
	return q, args, nil
}

func (b SQLBuilder) Delete(s Schema, id string) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.Collection, b.Placeholder(1)), []any{id}
}
