package auth

import (
	"context"

	"dompet/internal/ledger"
)

type countingLedger struct {
	loaded chan string
}

func (l *countingLedger) LoadAll(_ context.Context, userID string) ledger.LoadReport {
	l.loaded <- userID
	return ledger.LoadReport{UserID: userID}
}

func (l *countingLedger) Clear() {}
