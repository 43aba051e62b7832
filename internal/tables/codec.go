package tables

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode turns a domain record into a normalized row of collection c.
// Fields tagged omitempty that are empty are left out of the row.
func Encode(c Collection, v any) (Row, error) {
	s, err := SchemaOf(c)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var r Row
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("encode %s: %w", c, err)
	}
	return s.Normalize(r)
}

// Decode fills a domain record from a row.
func Decode[T any](r Row) (T, error) {
	var out T
	b, err := json.Marshal(dropNulls(r))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeAll decodes rows in order. A row that fails to decode fails the
// whole batch.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, r := range rows {
		v, err := Decode[T](r)
		if err != nil {
			return nil, fmt.Errorf("row %d (id=%s): %w", i, r.ID(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// dropNulls removes nil and empty-string values so optional fields decode
// to their zero value instead of failing on "" dates or timestamps.
func dropNulls(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		if v == nil || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
