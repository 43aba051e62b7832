package core

import "testing"

func TestParseReceiptAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"TOTAL: Rp 45.000", 45000, true},
		{"Grand Total  Rp. 1.250.000", 1250000, true},
		{"jumlah 32,500", 32500, true},
		{"Kopi susu\nRp 18.000", 18000, true},
		{"Subtotal 2 item 125.000", 2, true},
		{"INDOMARET 12.345.678 struk", 12345678, true},
		{"no numbers here", 0, false},
		{"TOTAL: Rp 150.000.000", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseReceiptAmount(tc.in)
		if ok != tc.ok || got != tc.out {
			t.Fatalf("%q: got (%d, %v), want (%d, %v)", tc.in, got, ok, tc.out, tc.ok)
		}
	}
}

func TestParseReceiptDate(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"Tanggal: 15/01/2024 10:22", "2024-01-15"},
		{"05-3-24", "2024-03-05"},
		{"7 Agustus 2023", "2023-08-07"},
		{"12 DES 23 kasir 3", "2023-12-12"},
		{"31/02/2024 or 1 Mei 2024", "2024-05-01"},
		{"no date", ""},
	}
	for _, tc := range cases {
		got, ok := ParseReceiptDate(tc.in)
		if tc.out == "" {
			if ok {
				t.Fatalf("%q: expected no date, got %s", tc.in, got)
			}
			continue
		}
		if !ok || got.String() != tc.out {
			t.Fatalf("%q: got %s (%v), want %s", tc.in, got, ok, tc.out)
		}
	}
}
