package google

import (
	"context"
	"testing"

	"dompet/internal/tables"
)

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 13: "M", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"}
	for in, want := range cases {
		if got := columnLetter(in); got != want {
			t.Errorf("columnLetter(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCellsToRow(t *testing.T) {
	sc, _ := tables.SchemaOf(tables.Bills)
	header := []string{"id", "user_id", "name", "amount", "custom_days", "is_active", "next_due", "legacy"}
	cells := []any{"b1", "u1", "Listrik", float64(350000), "", true, "2024-02-20", "x"}

	r, err := cellsToRow(sc, header, cells)
	if err != nil {
		t.Fatalf("cellsToRow: %v", err)
	}
	if r["amount"] != int64(350000) || r["is_active"] != true || r["custom_days"] != nil {
		t.Fatalf("unexpected row %+v", r)
	}
	if _, ok := r["legacy"]; ok {
		t.Fatal("unknown header should be ignored")
	}

	short, err := cellsToRow(sc, header, []any{"b2", "u1"})
	if err != nil {
		t.Fatalf("short row: %v", err)
	}
	if short["amount"] != int64(0) || short["is_active"] != false {
		t.Fatalf("short row defaults %+v", short)
	}
}

func TestRowToCellsAndFindRow(t *testing.T) {
	header := []string{"id", "name", "deadline"}
	cells := rowToCells(header, tables.Row{"id": "g1", "name": "Laptop", "deadline": nil})
	if len(cells) != 3 || cells[0] != "g1" || cells[2] != "" {
		t.Fatalf("unexpected cells %v", cells)
	}

	data := [][]any{{"a"}, {}, {" g1 ", "Laptop"}}
	if i := findRow(data, "g1"); i != 2 {
		t.Fatalf("findRow = %d", i)
	}
	if i := findRow(data, "zz"); i != -1 {
		t.Fatalf("findRow missing = %d", i)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}
