package google

import (
	"fmt"
	"strings"

	"dompet/internal/tables"
)

// columnLetter converts a 1-based column count to its A1 letter (1 -> A, 27 -> AA).
func columnLetter(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// cellsToRow maps one sheet row onto the schema using the tab's header.
// Headers the schema does not know are ignored.
func cellsToRow(sc tables.Schema, header []string, cells []any) (tables.Row, error) {
	raw := make(tables.Row, len(header))
	for i, h := range header {
		if _, ok := sc.Column(h); !ok {
			continue
		}
		if i < len(cells) {
			raw[h] = cells[i]
		} else {
			raw[h] = nil
		}
	}
	return sc.Normalize(raw)
}

// rowToCells lays a row out in header order; missing and nil values become
// empty cells.
func rowToCells(header []string, r tables.Row) []any {
	out := make([]any, len(header))
	for i, h := range header {
		v, ok := r[h]
		if !ok || v == nil {
			out[i] = ""
			continue
		}
		out[i] = v
	}
	return out
}

// findRow returns the index in data of the row whose first cell is id.
func findRow(data [][]any, id string) int {
	for i, cells := range data {
		if len(cells) > 0 && strings.TrimSpace(fmt.Sprint(cells[0])) == id {
			return i
		}
	}
	return -1
}
