package ledger

import (
	"dompet/internal/core"
	"dompet/internal/tables"
)

// Patches carry the fields an update changes; nil means unchanged.

type TransactionPatch struct {
	Date        *core.Date            `json:"date,omitempty"`
	Amount      *int64                `json:"amount,omitempty"`
	Type        *core.TransactionType `json:"type,omitempty"`
	Category    *string               `json:"category,omitempty"`
	Description *string               `json:"description,omitempty"`
	ReceiptURL  *string               `json:"receipt_url,omitempty"`
}

func (p TransactionPatch) apply(t *core.Transaction) {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ReceiptURL != nil {
		t.ReceiptURL = *p.ReceiptURL
	}
}

func (p TransactionPatch) row() tables.Row {
	r := tables.Row{}
	if p.Date != nil {
		r["date"] = p.Date.String()
	}
	if p.Amount != nil {
		r["amount"] = *p.Amount
	}
	if p.Type != nil {
		r["type"] = string(*p.Type)
	}
	if p.Category != nil {
		r["category"] = *p.Category
	}
	if p.Description != nil {
		r["description"] = *p.Description
	}
	if p.ReceiptURL != nil {
		r["receipt_url"] = *p.ReceiptURL
	}
	return r
}

type BudgetPatch struct {
	Category    *string            `json:"category,omitempty"`
	LimitAmount *int64             `json:"limit_amount,omitempty"`
	Period      *core.BudgetPeriod `json:"period,omitempty"`
}

func (p BudgetPatch) apply(b *core.Budget) {
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.LimitAmount != nil {
		b.LimitAmount = *p.LimitAmount
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
}

func (p BudgetPatch) row() tables.Row {
	r := tables.Row{}
	if p.Category != nil {
		r["category"] = *p.Category
	}
	if p.LimitAmount != nil {
		r["limit_amount"] = *p.LimitAmount
	}
	if p.Period != nil {
		r["period"] = string(*p.Period)
	}
	return r
}

// CategoryPatch renames or restyles a category. Records that reference the
// old name keep it.
type CategoryPatch struct {
	Name  *string               `json:"name,omitempty"`
	Icon  *string               `json:"icon,omitempty"`
	Color *string               `json:"color,omitempty"`
	Type  *core.TransactionType `json:"type,omitempty"`
}

func (p CategoryPatch) apply(c *core.Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
}

func (p CategoryPatch) row() tables.Row {
	r := tables.Row{}
	if p.Name != nil {
		r["name"] = *p.Name
	}
	if p.Icon != nil {
		r["icon"] = *p.Icon
	}
	if p.Color != nil {
		r["color"] = *p.Color
	}
	if p.Type != nil {
		r["type"] = string(*p.Type)
	}
	return r
}

// BillPatch updates a bill. Switching Frequency away from custom clears
// CustomDays.
type BillPatch struct {
	Name             *string         `json:"name,omitempty"`
	Amount           *int64          `json:"amount,omitempty"`
	Category         *string         `json:"category,omitempty"`
	Frequency        *core.Frequency `json:"frequency,omitempty"`
	CustomDays       *int            `json:"custom_days,omitempty"`
	DueDate          *core.Date      `json:"due_date,omitempty"`
	NextDue          *core.Date      `json:"next_due,omitempty"`
	IsActive         *bool           `json:"is_active,omitempty"`
	RemindDaysBefore *int            `json:"remind_days_before,omitempty"`
	AutoRecord       *bool           `json:"auto_record,omitempty"`
}

func (p BillPatch) clearsCustomDays() bool {
	return p.Frequency != nil && *p.Frequency != core.Custom
}

func (p BillPatch) apply(b *core.Bill) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Frequency != nil {
		b.Frequency = *p.Frequency
	}
	if p.CustomDays != nil {
		n := *p.CustomDays
		b.CustomDays = &n
	}
	if p.clearsCustomDays() {
		b.CustomDays = nil
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if p.NextDue != nil {
		b.NextDue = *p.NextDue
	}
	if p.IsActive != nil {
		b.IsActive = *p.IsActive
	}
	if p.RemindDaysBefore != nil {
		b.RemindDaysBefore = *p.RemindDaysBefore
	}
	if p.AutoRecord != nil {
		b.AutoRecord = *p.AutoRecord
	}
}

func (p BillPatch) row() tables.Row {
	r := tables.Row{}
	if p.Name != nil {
		r["name"] = *p.Name
	}
	if p.Amount != nil {
		r["amount"] = *p.Amount
	}
	if p.Category != nil {
		r["category"] = *p.Category
	}
	if p.Frequency != nil {
		r["frequency"] = string(*p.Frequency)
	}
	if p.CustomDays != nil {
		r["custom_days"] = int64(*p.CustomDays)
	}
	if p.clearsCustomDays() {
		r["custom_days"] = nil
	}
	if p.DueDate != nil {
		r["due_date"] = p.DueDate.String()
	}
	if p.NextDue != nil {
		r["next_due"] = p.NextDue.String()
	}
	if p.IsActive != nil {
		r["is_active"] = *p.IsActive
	}
	if p.RemindDaysBefore != nil {
		r["remind_days_before"] = int64(*p.RemindDaysBefore)
	}
	if p.AutoRecord != nil {
		r["auto_record"] = *p.AutoRecord
	}
	return r
}

type GoalPatch struct {
	Name          *string    `json:"name,omitempty"`
	TargetAmount  *int64     `json:"target_amount,omitempty"`
	SavedAmount   *int64     `json:"saved_amount,omitempty"`
	Icon          *string    `json:"icon,omitempty"`
	Color         *string    `json:"color,omitempty"`
	Deadline      *core.Date `json:"deadline,omitempty"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
	IsCompleted   *bool      `json:"is_completed,omitempty"`
}

func (p GoalPatch) apply(g *core.SavingsGoal) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.SavedAmount != nil {
		g.SavedAmount = *p.SavedAmount
	}
	if p.Icon != nil {
		g.Icon = *p.Icon
	}
	if p.Color != nil {
		g.Color = *p.Color
	}
	if p.Deadline != nil {
		d := *p.Deadline
		g.Deadline = &d
	}
	if p.ClearDeadline {
		g.Deadline = nil
	}
	if p.IsCompleted != nil {
		g.IsCompleted = *p.IsCompleted
	}
}

func (p GoalPatch) row() tables.Row {
	r := tables.Row{}
	if p.Name != nil {
		r["name"] = *p.Name
	}
	if p.TargetAmount != nil {
		r["target_amount"] = *p.TargetAmount
	}
	if p.SavedAmount != nil {
		r["saved_amount"] = *p.SavedAmount
	}
	if p.Icon != nil {
		r["icon"] = *p.Icon
	}
	if p.Color != nil {
		r["color"] = *p.Color
	}
	if p.Deadline != nil {
		r["deadline"] = p.Deadline.String()
	}
	if p.ClearDeadline {
		r["deadline"] = nil
	}
	if p.IsCompleted != nil {
		r["is_completed"] = *p.IsCompleted
	}
	return r
}
