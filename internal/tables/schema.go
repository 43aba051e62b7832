package tables

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dompet/internal/core"
)

// TimestampLayout is the canonical timestamp text form. It is fixed-width
// UTC so string order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

const (
	Text Kind = iota
	Int
	Bool
	Date
	Timestamp
)

type (
	Kind int

	Column struct {
		Name     string
		Kind     Kind
		Nullable bool
	}

	Schema struct {
		Collection Collection
		Columns    []Column
	}
)

var schemas = map[Collection]Schema{
	Transactions: {Transactions, []Column{
		{Name: "id"}, {Name: "user_id"},
		{Name: "date", Kind: Date},
		{Name: "amount", Kind: Int},
		{Name: "type"}, {Name: "category"}, {Name: "description"},
		{Name: "receipt_url", Nullable: true},
		{Name: "created_at", Kind: Timestamp},
	}},
	Budgets: {Budgets, []Column{
		{Name: "id"}, {Name: "user_id"}, {Name: "category"},
		{Name: "limit_amount", Kind: Int},
		{Name: "period"},
		{Name: "created_at", Kind: Timestamp},
	}},
	Categories: {Categories, []Column{
		{Name: "id"}, {Name: "user_id"}, {Name: "name"},
		{Name: "icon"}, {Name: "color"}, {Name: "type"},
	}},
	Bills: {Bills, []Column{
		{Name: "id"}, {Name: "user_id"}, {Name: "name"},
		{Name: "amount", Kind: Int},
		{Name: "category"}, {Name: "frequency"},
		{Name: "custom_days", Kind: Int, Nullable: true},
		{Name: "due_date", Kind: Date},
		{Name: "next_due", Kind: Date},
		{Name: "is_active", Kind: Bool},
		{Name: "remind_days_before", Kind: Int},
		{Name: "auto_record", Kind: Bool},
		{Name: "created_at", Kind: Timestamp},
	}},
	SavingsGoals: {SavingsGoals, []Column{
		{Name: "id"}, {Name: "user_id"}, {Name: "name"},
		{Name: "target_amount", Kind: Int},
		{Name: "saved_amount", Kind: Int},
		{Name: "icon"}, {Name: "color"},
		{Name: "deadline", Kind: Date, Nullable: true},
		{Name: "is_completed", Kind: Bool},
		{Name: "created_at", Kind: Timestamp},
	}},
}

// SchemaOf returns the column layout of a collection.
func SchemaOf(c Collection) (Schema, error) {
	s, ok := schemas[c]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	return s, nil
}

// Column looks a column up by name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the column names in declaration order; "id" is always first.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Normalize converts every value of r to its column's canonical form and
// rejects columns the schema does not know.
func (s Schema) Normalize(r Row) (Row, error) {
	out := make(Row, len(r))
	for k, v := range r {
		col, ok := s.Column(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.Collection, k)
		}
		nv, err := col.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Collection, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Normalize converts one value as read from any backend.
func (c Column) Normalize(v any) (any, error) {
	if v == nil || (c.Nullable && v == "") {
		if c.Nullable {
			return nil, nil
		}
		return c.zero(), nil
	}
	switch c.Kind {
	case Int:
		return toInt(v)
	case Bool:
		return toBool(v)
	case Date:
		return toDate(v)
	case Timestamp:
		return toTimestamp(v)
	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		default:
			return fmt.Sprint(x), nil
		}
	}
}

func (c Column) zero() any {
	switch c.Kind {
	case Int:
		return int64(0)
	case Bool:
		return false
	default:
		return ""
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	}
	return 0, fmt.Errorf("unsupported integer value %T", v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.ToLower(s))
	}
	return false, fmt.Errorf("unsupported boolean value %T", v)
}

func toDate(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", nil
		}
		d, err := core.ParseDate(x)
		if err != nil {
			return "", err
		}
		return d.String(), nil
	case time.Time:
		return core.DateOf(x).String(), nil
	case core.Date:
		return x.String(), nil
	}
	return "", fmt.Errorf("unsupported date value %T", v)
}

func toTimestamp(v any) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return FormatTimestamp(x), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return "", nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, x); err == nil {
				return FormatTimestamp(t), nil
			}
		}
		return "", fmt.Errorf("unparseable timestamp %q", x)
	}
	return "", fmt.Errorf("unsupported timestamp value %T", v)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
