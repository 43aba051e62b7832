package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"

	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Custom  Frequency = "custom"
)

// MaxRemindDays bounds Bill.RemindDaysBefore.
const MaxRemindDays = 30

type (
	TransactionType string
	BudgetPeriod    string
	Frequency       string

	// Category is referenced by Name from transactions, budgets and bills.
	// Renaming a category does not rewrite those references.
	Category struct {
		ID     string          `json:"id"`
		UserID string          `json:"user_id"`
		Name   string          `json:"name"`
		Icon   string          `json:"icon"`
		Color  string          `json:"color"`
		Type   TransactionType `json:"type"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Date        Date            `json:"date"`
		Amount      int64           `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		ReceiptURL  string          `json:"receipt_url,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Budget never stores what was spent; see BudgetUsage.
	Budget struct {
		ID          string       `json:"id"`
		UserID      string       `json:"user_id"`
		Category    string       `json:"category"`
		LimitAmount int64        `json:"limit_amount"`
		Period      BudgetPeriod `json:"period"`
		CreatedAt   time.Time    `json:"created_at"`
	}

	// Bill is a recurring obligation. DueDate keeps the originally configured
	// date; NextDue is the rolling one advanced by MarkPaid.
	Bill struct {
		ID               string    `json:"id"`
		UserID           string    `json:"user_id"`
		Name             string    `json:"name"`
		Amount           int64     `json:"amount"`
		Category         string    `json:"category"`
		Frequency        Frequency `json:"frequency"`
		CustomDays       *int      `json:"custom_days,omitempty"`
		DueDate          Date      `json:"due_date"`
		NextDue          Date      `json:"next_due"`
		IsActive         bool      `json:"is_active"`
		RemindDaysBefore int       `json:"remind_days_before"`
		AutoRecord       bool      `json:"auto_record"`
		CreatedAt        time.Time `json:"created_at"`
	}

	// SavingsGoal.IsCompleted is derived from the amounts but persisted.
	SavingsGoal struct {
		ID           string    `json:"id"`
		UserID       string    `json:"user_id"`
		Name         string    `json:"name"`
		TargetAmount int64     `json:"target_amount"`
		SavedAmount  int64     `json:"saved_amount"`
		Icon         string    `json:"icon"`
		Color        string    `json:"color"`
		Deadline     *Date     `json:"deadline,omitempty"`
		IsCompleted  bool      `json:"is_completed"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidPeriod     = errors.New("invalid budget period")
	ErrInvalidFrequency  = errors.New("invalid bill frequency")
	ErrInvalidCustomDays = errors.New("custom frequency requires a positive custom_days")
	ErrInvalidRemindDays = errors.New("remind_days_before must be between 0 and 30")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
	ErrZeroDate          = errors.New("date cannot be zero")
)

var validationErrors = []error{
	ErrInvalidDay, ErrInvalidMonth, ErrInvalidAmount, ErrEmptyName,
	ErrEmptyCategory, ErrInvalidType, ErrInvalidPeriod, ErrInvalidFrequency,
	ErrInvalidCustomDays, ErrInvalidRemindDays, ErrDescriptionLength, ErrZeroDate,
}

// IsValidationError reports whether err wraps one of the record validation
// errors above.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

func (p BudgetPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Yearly, Custom:
		return true
	}
	return false
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLength
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.LimitAmount < 0 {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.Amount < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if !b.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if b.Frequency == Custom && (b.CustomDays == nil || *b.CustomDays <= 0) {
		return ErrInvalidCustomDays
	}
	if err := b.DueDate.Validate(); err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}
	if b.RemindDaysBefore < 0 || b.RemindDaysBefore > MaxRemindDays {
		return ErrInvalidRemindDays
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetAmount <= 0 || g.SavedAmount < 0 {
		return ErrInvalidAmount
	}
	if g.Deadline != nil && !g.Deadline.IsEmpty() {
		if err := g.Deadline.Validate(); err != nil {
			return fmt.Errorf("invalid deadline: %w", err)
		}
	}
	return nil
}
