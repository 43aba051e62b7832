package core

import (
	"sort"
	"time"
)

const (
	Overdue  BillStatus = "overdue"
	DueSoon  BillStatus = "due-soon"
	Upcoming BillStatus = "upcoming"
)

type BillStatus string

// DaysUntilDue is the signed number of calendar days from now's date to
// the bill's next due date.
func DaysUntilDue(b Bill, now time.Time) int {
	return DateOf(now).DaysUntil(b.NextDue)
}

// StatusOf classifies a bill relative to now. A bill due today is due-soon
// regardless of its reminder lead.
func StatusOf(b Bill, now time.Time) BillStatus {
	days := DaysUntilDue(b, now)
	switch {
	case days < 0:
		return Overdue
	case days <= b.RemindDaysBefore:
		return DueSoon
	default:
		return Upcoming
	}
}

var statusRank = map[BillStatus]int{Overdue: 0, DueSoon: 1, Upcoming: 2}

// SortBillsForDisplay returns the active bills ordered overdue first, then
// due-soon, then upcoming, with the soonest next due date first within a
// status. The input slice is not modified.
func SortBillsForDisplay(bills []Bill, now time.Time) []Bill {
	out := make([]Bill, 0, len(bills))
	for _, b := range bills {
		if b.IsActive {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := statusRank[StatusOf(out[i], now)], statusRank[StatusOf(out[j], now)]
		if ri != rj {
			return ri < rj
		}
		return out[i].NextDue.Before(out[j].NextDue)
	})
	return out
}
