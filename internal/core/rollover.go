package core

import (
	"fmt"
	"time"
)

// DefaultCustomDays is used when a custom bill carries no usable interval.
const DefaultCustomDays = 30

// Roller advances a due date by one billing cycle.
type Roller interface {
	Next(current Date, customDays int) Date
}

// WeeklyRoller adds seven days.
type WeeklyRoller struct{}

func (WeeklyRoller) Next(current Date, _ int) Date { return current.AddDays(7) }

// MonthlyRoller moves to the same day next month, clamped to the month's
// last day (Jan 31 -> Feb 28/29).
type MonthlyRoller struct{}

func (MonthlyRoller) Next(current Date, _ int) Date { return addMonthsClamped(current, 1) }

// YearlyRoller moves to the same day next year; Feb 29 clamps to Feb 28.
type YearlyRoller struct{}

func (YearlyRoller) Next(current Date, _ int) Date { return addMonthsClamped(current, 12) }

// CustomRoller adds the bill's own interval in days.
type CustomRoller struct{}

func (CustomRoller) Next(current Date, customDays int) Date {
	if customDays <= 0 {
		customDays = DefaultCustomDays
	}
	return current.AddDays(customDays)
}

var rollers = map[Frequency]Roller{
	Weekly:  WeeklyRoller{},
	Monthly: MonthlyRoller{},
	Yearly:  YearlyRoller{},
	Custom:  CustomRoller{},
}

// GetRoller returns the roller registered for a frequency.
func GetRoller(f Frequency) (Roller, error) {
	r, ok := rollers[f]
	if !ok {
		return nil, fmt.Errorf("unknown bill frequency: %s", f)
	}
	return r, nil
}

// NextDueDate advances current by one cycle of freq. Unknown frequencies
// roll monthly. customDays is only consulted for Custom.
func NextDueDate(current Date, freq Frequency, customDays *int) Date {
	r, err := GetRoller(freq)
	if err != nil {
		r = MonthlyRoller{}
	}
	n := 0
	if customDays != nil {
		n = *customDays
	}
	return r.Next(current, n)
}

func addMonthsClamped(d Date, months int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}
