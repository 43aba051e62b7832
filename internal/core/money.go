// Package core holds the ledger's domain model and the pure date and
// amount helpers built on it.
//
// Amounts are whole Rupiah stored as int64; there is no minor unit.
package core

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatCurrency renders an amount the way id-ID locales print IDR:
// "Rp 45.000", "-Rp 1.250.000".
func FormatCurrency(amount int64) string {
	if amount < 0 {
		if amount == math.MinInt64 {
			return "-Rp " + idPrinter.Sprintf("%d", uint64(1<<63))
		}
		return "-Rp " + idPrinter.Sprintf("%d", -amount)
	}
	return "Rp " + idPrinter.Sprintf("%d", amount)
}

// FormatCurrencyShort abbreviates large amounts for compact displays:
// 1.5M (milyar), 2.3jt (juta), 45rb (ribu). Smaller and negative amounts
// are printed as plain integers.
func FormatCurrencyShort(amount int64) string {
	v := float64(amount)
	switch {
	case amount >= 1_000_000_000:
		return oneDecimal(v/1e9) + "M"
	case amount >= 1_000_000:
		return oneDecimal(v/1e6) + "jt"
	case amount >= 1_000:
		return strconv.FormatFloat(math.Round(v/1e3), 'f', 0, 64) + "rb"
	default:
		return strconv.FormatInt(amount, 10)
	}
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
}

// ParseAmount converts user or OCR text to a whole-Rupiah amount.
//
// An optional "Rp" prefix is accepted and both '.' and ',' are treated as
// thousands separators, so "Rp 45.000", "45,000" and "45000" all parse to
// 45000. Negative, zero and non-numeric inputs return ErrInvalidAmount.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rp") {
		s = strings.TrimSpace(strings.TrimPrefix(s[2:], "."))
	}
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	v, ok := digitsOnly(s)
	if !ok || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// digitsOnly drops '.' and ',' and parses what remains as a base-10 integer.
func digitsOnly(s string) (int64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '.' || r == ',':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return 0, false
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
