package tables

import (
	"fmt"
	"sort"
)

// Validate checks that the ordering column exists in s.
func (q Query) Validate(s Schema) error {
	if q.OrderBy == "" {
		return nil
	}
	if _, ok := s.Column(q.OrderBy); !ok {
		return fmt.Errorf("%w: order by %s.%s", ErrUnknownColumn, s.Collection, q.OrderBy)
	}
	return nil
}

// Apply filters normalized rows by owner and sorts them the way q asks.
// It is used by backends that cannot push the query down.
func (q Query) Apply(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if q.UserID != "" && r["user_id"] != q.UserID {
			continue
		}
		out = append(out, r.Clone())
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out
}

// compare orders normalized values; nil sorts first.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		y, _ := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	default:
		xs, ys := fmt.Sprint(a), fmt.Sprint(b)
		switch {
		case xs < ys:
			return -1
		case xs > ys:
			return 1
		}
		return 0
	}
}
