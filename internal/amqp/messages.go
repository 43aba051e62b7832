package amqp

import (
	"encoding/json"
	"time"

	"dompet/internal/core"
	"dompet/internal/ledger"
)

// BillReminder tells a notifier that a bill is due soon or overdue.
type BillReminder struct {
	BillID    string          `json:"bill_id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Amount    int64           `json:"amount"`
	Display   string          `json:"display_amount"`
	Category  string          `json:"category"`
	NextDue   core.Date       `json:"next_due"`
	Status    core.BillStatus `json:"status"`
	DaysUntil int             `json:"days_until"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewBillReminder builds a reminder for b as of now.
func NewBillReminder(b core.Bill, now time.Time) *BillReminder {
	return &BillReminder{
		BillID:    b.ID,
		UserID:    b.UserID,
		Name:      b.Name,
		Amount:    b.Amount,
		Display:   core.FormatCurrency(b.Amount),
		Category:  b.Category,
		NextDue:   b.NextDue,
		Status:    core.StatusOf(b, now),
		DaysUntil: core.DaysUntilDue(b, now),
		Timestamp: now,
	}
}

func (m *BillReminder) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillReminderFromJSON(data []byte) (*BillReminder, error) {
	var msg BillReminder
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SyncFailure reports a remote write the ledger could not complete.
type SyncFailure struct {
	Operation  string    `json:"operation"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"record_id"`
	UserID     string    `json:"user_id"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSyncFailure(r ledger.Result) *SyncFailure {
	msg := &SyncFailure{
		Operation:  string(r.Kind),
		Collection: string(r.Collection),
		RecordID:   r.ID,
		UserID:     r.UserID,
		Error:      r.Error,
		Timestamp:  r.At,
	}
	if msg.Error == "" && r.Err != nil {
		msg.Error = r.Err.Error()
	}
	return msg
}

func (m *SyncFailure) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncFailureFromJSON(data []byte) (*SyncFailure, error) {
	var msg SyncFailure
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
