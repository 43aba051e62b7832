package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxReceiptAmount is the exclusive upper bound for amounts read off a receipt.
const MaxReceiptAmount = 100_000_000

var receiptAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:total|jumlah|grand\s*total|amount)\s*[:\s]*(?:rp\.?\s*)?([0-9.,]+)`),
	regexp.MustCompile(`(?i)(?:rp\.?\s*)([0-9.,]+)`),
	regexp.MustCompile(`([0-9]{1,3}(?:[.,][0-9]{3})+)`),
}

var (
	numericDatePattern = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})`)
	namedDatePattern   = regexp.MustCompile(`(?i)(\d{1,2})\s*(jan|feb|mar|apr|mei|jun|jul|agu|sep|okt|nov|des)\w*\s*(\d{2,4})`)
)

var indonesianMonths = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "mei": 5, "jun": 6,
	"jul": 7, "agu": 8, "sep": 9, "okt": 10, "nov": 11, "des": 12,
}

// ParseReceiptAmount extracts the total from OCR'd receipt text. Patterns
// are tried in order: a labelled total, a currency-prefixed number, then
// any thousands-grouped number. Only the first match of each pattern is
// considered and it must lie in (0, MaxReceiptAmount).
func ParseReceiptAmount(text string) (int64, bool) {
	for _, re := range receiptAmountPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := digitsOnly(m[1])
		if ok && v > 0 && v < MaxReceiptAmount {
			return v, true
		}
	}
	return 0, false
}

// ParseReceiptDate extracts a day-first date such as "15/01/2024" or
// "15 Jan 24". Two-digit years are read as 20yy. A match that does not
// name a real calendar day falls through to the next pattern.
func ParseReceiptDate(text string) (Date, bool) {
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		if d, ok := receiptDate(m[1], month, m[3]); ok {
			return d, true
		}
	}
	if m := namedDatePattern.FindStringSubmatch(text); m != nil {
		month := indonesianMonths[strings.ToLower(m[2])]
		if d, ok := receiptDate(m[1], month, m[3]); ok {
			return d, true
		}
	}
	return Date{}, false
}

func receiptDate(dayStr string, month int, yearStr string) (Date, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return Date{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Date{}, false
	}
	if year < 100 {
		year += 2000
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return Date{}, false
	}
	return Date{Time: t}, true
}
