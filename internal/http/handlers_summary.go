package http

import (
	"net/http"
	"strings"

	"dompet/internal/core"
	"dompet/internal/ledger"
	dlog "dompet/internal/log"
	"dompet/internal/services"
	"dompet/internal/tables"

	"github.com/go-chi/chi/v5"
)

// trendMonths is how many months the summary trend covers.
const trendMonths = 6

type paidResponse struct {
	ledger.PaidResult
	Status billView `json:"status"`
}

// handleMarkPaid settles a bill. With ?wait=true the response reports the
// first failure of the expense insert and the due-date update.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.deps.Ledger.MarkPaid(r.Context(), id)
	if err != nil {
		s.respondError(w, r, "mark_paid", err)
		return
	}
	if res.Record != nil {
		s.structured.LogMutation(r.Context(), string(ledger.OpInsert), string(tables.Transactions), res.Record.ID, s.deps.Ledger.UserID())
	}
	s.structured.LogMutation(r.Context(), string(ledger.OpUpdate), string(tables.Bills), id, s.deps.Ledger.UserID())
	NewJSONResponse().
		Data(paidResponse{PaidResult: res, Status: newBillView(res.Bill, s.deps.Now())}).
		Sync(syncStatus(r, res.RecordOp, res.AdvanceOp)).
		Send(w)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Amount     int64  `json:"amount"`
		AmountText string `json:"amount_text"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	if strings.TrimSpace(req.AmountText) != "" {
		amount, err := core.ParseAmount(req.AmountText)
		if err != nil {
			ValidationError(err.Error()).Send(w)
			return
		}
		req.Amount = amount
	}
	g, op, err := s.deps.Ledger.AddSaving(r.Context(), id, req.Amount)
	if err != nil {
		s.respondError(w, r, "deposit", err)
		return
	}
	s.structured.LogMutation(r.Context(), string(ledger.OpUpdate), string(tables.SavingsGoals), id, s.deps.Ledger.UserID())
	if g.IsCompleted {
		dlog.FromContext(r.Context()).InfoContext(r.Context(), "Savings goal reached",
			dlog.FieldRecordID, g.ID, dlog.FieldAmount, g.SavedAmount)
	}
	NewJSONResponse().Data(newGoalView(g)).Sync(syncStatus(r, op)).Send(w)
}

type summaryResponse struct {
	Month          core.MonthOverview    `json:"month"`
	Balance        int64                 `json:"balance"`
	BalanceDisplay string                `json:"balance_display"`
	IncomeDisplay  string                `json:"income_display"`
	ExpenseDisplay string                `json:"expense_display"`
	Trend          []core.MonthOverview  `json:"trend"`
	Budgets        []core.BudgetUsageRow `json:"budgets"`
	DueBills       []billView            `json:"due_bills"`
	Goals          []goalView            `json:"goals"`
	Ledger         ledger.LoadState      `json:"ledger"`
}

// handleSummary builds the dashboard for ?year=&month= (default: now).
// Bill statuses are always relative to now, not the selected month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now()
	month, err := ParseMonthParams(r.URL.Query(), now)
	if err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	ref := month.Time()

	snap := s.deps.Ledger.Snapshot()
	ov := core.MonthlyStats(snap.Transactions, ref)
	balance := core.TotalBalance(snap.Transactions)

	due := services.DueBills(snap.Bills, now)
	dueViews := make([]billView, 0, len(due))
	for _, b := range due {
		dueViews = append(dueViews, newBillView(b, now))
	}
	goals := make([]goalView, 0, len(snap.Goals))
	for _, g := range snap.Goals {
		goals = append(goals, newGoalView(g))
	}

	NewJSONResponse().Data(summaryResponse{
		Month:          ov,
		Balance:        balance,
		BalanceDisplay: core.FormatCurrency(balance),
		IncomeDisplay:  core.FormatCurrencyShort(ov.Income),
		ExpenseDisplay: core.FormatCurrencyShort(ov.Expense),
		Trend:          core.MonthlyTrend(snap.Transactions, ref, trendMonths),
		Budgets:        core.BudgetUsage(snap.Budgets, snap.Transactions, ref),
		DueBills:       dueViews,
		Goals:          goals,
		Ledger:         snap.State,
	}).Send(w)
}

type receiptResponse struct {
	Amount        int64      `json:"amount,omitempty"`
	AmountDisplay string     `json:"amount_display,omitempty"`
	AmountFound   bool       `json:"amount_found"`
	Date          *core.Date `json:"date,omitempty"`
	DateFound     bool       `json:"date_found"`
}

// handleParseReceipt extracts a total and a date from OCR text. Nothing is
// recorded; the client confirms and posts a transaction.
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		ValidationError("text is required").Send(w)
		return
	}

	var out receiptResponse
	if amount, ok := core.ParseReceiptAmount(req.Text); ok {
		out.Amount, out.AmountDisplay, out.AmountFound = amount, core.FormatCurrency(amount), true
	}
	if d, ok := core.ParseReceiptDate(req.Text); ok {
		out.Date, out.DateFound = &d, true
	}
	NewJSONResponse().Data(out).Send(w)
}
