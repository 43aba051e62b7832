package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"dompet/internal/core"
	"dompet/internal/ledger"
	"dompet/internal/tables"

	"github.com/go-chi/chi/v5"
)

// mutationResult is the data of an update or delete response.
type mutationResult struct {
	ID     string `json:"id"`
	Record any    `json:"record,omitempty"`
}

func findByID[T any](items []T, id string, key func(T) string) (T, bool) {
	for _, it := range items {
		if key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// localRecord returns the record as it now stands locally, or nil when the
// id is only known remotely.
func localRecord[T any](items []T, id string, key func(T) string) any {
	if it, ok := findByID(items, id, key); ok {
		return it
	}
	return nil
}

// requireLocal answers 404 for ids the ledger does not hold.
func requireLocal[T any](w http.ResponseWriter, items []T, id string, key func(T) string, kind string) bool {
	if _, ok := findByID(items, id, key); ok {
		return true
	}
	NotFoundError(kind + " not found").Send(w)
	return false
}

func (s *Server) created(w http.ResponseWriter, r *http.Request, op *ledger.Op, c tables.Collection, id string, record any) {
	s.structured.LogMutation(r.Context(), string(ledger.OpInsert), string(c), id, s.deps.Ledger.UserID())
	NewJSONResponse().Status(http.StatusCreated).Data(record).Sync(syncStatus(r, op)).Send(w)
}

func (s *Server) changed(w http.ResponseWriter, r *http.Request, kind ledger.OpKind, op *ledger.Op, c tables.Collection, id string, record any) {
	s.structured.LogMutation(r.Context(), string(kind), string(c), id, s.deps.Ledger.UserID())
	NewJSONResponse().Data(mutationResult{ID: id, Record: record}).Sync(syncStatus(r, op)).Send(w)
}

// Transactions

type transactionRequest struct {
	Date        core.Date            `json:"date"`
	Amount      int64                `json:"amount"`
	AmountText  string               `json:"amount_text"`
	Type        core.TransactionType `json:"type"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	ReceiptURL  string               `json:"receipt_url"`
}

// toTransaction fills an omitted date with today. amount_text, when given,
// wins over amount and accepts the grouped forms ParseAmount does.
func (req transactionRequest) toTransaction(now time.Time) (core.Transaction, error) {
	t := core.Transaction{
		Date:        req.Date,
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		ReceiptURL:  strings.TrimSpace(req.ReceiptURL),
	}
	if t.Date.IsEmpty() {
		t.Date = core.DateOf(now)
	}
	if strings.TrimSpace(req.AmountText) != "" {
		amount, err := core.ParseAmount(req.AmountText)
		if err != nil {
			return t, err
		}
		t.Amount = amount
	}
	return t, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := s.deps.Ledger.Transactions()
	if q := r.URL.Query(); hasMonthFilter(q) {
		month, err := ParseMonthParams(q, s.deps.Now())
		if err != nil {
			BadRequestError(err.Error()).Send(w)
			return
		}
		ref := month.Time()
		filtered := make([]core.Transaction, 0, len(txs))
		for _, t := range txs {
			if t.Date.InMonth(ref) {
				filtered = append(filtered, t)
			}
		}
		txs = filtered
	}
	NewJSONResponse().Data(txs).Send(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	t, err := req.toTransaction(s.deps.Now())
	if err != nil {
		ValidationError(err.Error()).Send(w)
		return
	}
	t, op, err := s.deps.Ledger.AddTransaction(r.Context(), t)
	if err != nil {
		s.respondError(w, r, "create_transaction", err)
		return
	}
	s.created(w, r, op, tables.Transactions, t.ID, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireLocal(w, s.deps.Ledger.Transactions(), id, func(t core.Transaction) string { return t.ID }, "transaction") {
		return
	}
	var p ledger.TransactionPatch
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	op, err := s.deps.Ledger.UpdateTransaction(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, "update_transaction", err)
		return
	}
	rec := localRecord(s.deps.Ledger.Transactions(), id, func(t core.Transaction) string { return t.ID })
	s.changed(w, r, ledger.OpUpdate, op, tables.Transactions, id, rec)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.deps.Ledger.DeleteTransaction(r.Context(), id)
	s.changed(w, r, ledger.OpDelete, op, tables.Transactions, id, nil)
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.deps.Ledger.Budgets()).Send(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category    string            `json:"category"`
		LimitAmount int64             `json:"limit_amount"`
		Period      core.BudgetPeriod `json:"period"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	if req.Period == "" {
		req.Period = core.PeriodMonthly
	}
	b, op, err := s.deps.Ledger.AddBudget(r.Context(), core.Budget{
		Category:    strings.TrimSpace(req.Category),
		LimitAmount: req.LimitAmount,
		Period:      req.Period,
	})
	if err != nil {
		s.respondError(w, r, "create_budget", err)
		return
	}
	s.created(w, r, op, tables.Budgets, b.ID, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireLocal(w, s.deps.Ledger.Budgets(), id, func(b core.Budget) string { return b.ID }, "budget") {
		return
	}
	var p ledger.BudgetPatch
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	op, err := s.deps.Ledger.UpdateBudget(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, "update_budget", err)
		return
	}
	rec := localRecord(s.deps.Ledger.Budgets(), id, func(b core.Budget) string { return b.ID })
	s.changed(w, r, ledger.OpUpdate, op, tables.Budgets, id, rec)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.deps.Ledger.DeleteBudget(r.Context(), id)
	s.changed(w, r, ledger.OpDelete, op, tables.Budgets, id, nil)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.deps.Ledger.Categories()
	if typ := core.TransactionType(r.URL.Query().Get("type")); typ != "" {
		if !typ.Valid() {
			BadRequestError("type must be income or expense").Send(w)
			return
		}
		filtered := cats[:0]
		for _, c := range cats {
			if c.Type == typ {
				filtered = append(filtered, c)
			}
		}
		cats = filtered
	}
	NewJSONResponse().Data(cats).Send(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string               `json:"name"`
		Icon  string               `json:"icon"`
		Color string               `json:"color"`
		Type  core.TransactionType `json:"type"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	c, op, err := s.deps.Ledger.AddCategory(r.Context(), core.Category{
		Name:  strings.TrimSpace(req.Name),
		Icon:  req.Icon,
		Color: req.Color,
		Type:  req.Type,
	})
	if err != nil {
		s.respondError(w, r, "create_category", err)
		return
	}
	s.created(w, r, op, tables.Categories, c.ID, c)
}

// handleSeedCategories inserts the default set. It does not check whether
// the user already has categories.
func (s *Server) handleSeedCategories(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.SeedDefaultCategories(r.Context()); err != nil {
		s.respondError(w, r, "seed_categories", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(s.deps.Ledger.Categories()).Sync(SyncOK).Send(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireLocal(w, s.deps.Ledger.Categories(), id, func(c core.Category) string { return c.ID }, "category") {
		return
	}
	var p ledger.CategoryPatch
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	op, err := s.deps.Ledger.UpdateCategory(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, "update_category", err)
		return
	}
	rec := localRecord(s.deps.Ledger.Categories(), id, func(c core.Category) string { return c.ID })
	s.changed(w, r, ledger.OpUpdate, op, tables.Categories, id, rec)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.deps.Ledger.DeleteCategory(r.Context(), id)
	s.changed(w, r, ledger.OpDelete, op, tables.Categories, id, nil)
}

// Bills

// billView adds the derived due status to a bill.
type billView struct {
	core.Bill
	Status        core.BillStatus `json:"status"`
	DaysUntil     int             `json:"days_until"`
	AmountDisplay string          `json:"amount_display"`
}

func newBillView(b core.Bill, now time.Time) billView {
	return billView{
		Bill:          b,
		Status:        core.StatusOf(b, now),
		DaysUntil:     core.DaysUntilDue(b, now),
		AmountDisplay: core.FormatCurrency(b.Amount),
	}
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now()
	all := s.deps.Ledger.Bills()
	bills := core.SortBillsForDisplay(all, now)
	// ?inactive=true appends paused bills so they can be reactivated.
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("inactive")); ok {
		for _, b := range all {
			if !b.IsActive {
				bills = append(bills, b)
			}
		}
	}
	out := make([]billView, 0, len(bills))
	for _, b := range bills {
		out = append(out, newBillView(b, now))
	}
	NewJSONResponse().Data(out).Send(w)
}

type billRequest struct {
	Name             string         `json:"name"`
	Amount           int64          `json:"amount"`
	Category         string         `json:"category"`
	Frequency        core.Frequency `json:"frequency"`
	CustomDays       *int           `json:"custom_days"`
	DueDate          core.Date      `json:"due_date"`
	IsActive         *bool          `json:"is_active"`
	RemindDaysBefore *int           `json:"remind_days_before"`
	AutoRecord       bool           `json:"auto_record"`
}

// Bills start active with a three-day reminder lead unless told otherwise.
func (req billRequest) toBill() core.Bill {
	b := core.Bill{
		Name:             strings.TrimSpace(req.Name),
		Amount:           req.Amount,
		Category:         strings.TrimSpace(req.Category),
		Frequency:        req.Frequency,
		CustomDays:       req.CustomDays,
		DueDate:          req.DueDate,
		IsActive:         true,
		RemindDaysBefore: 3,
		AutoRecord:       req.AutoRecord,
	}
	if b.Frequency == "" {
		b.Frequency = core.Monthly
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if req.RemindDaysBefore != nil {
		b.RemindDaysBefore = *req.RemindDaysBefore
	}
	return b
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	b, op, err := s.deps.Ledger.AddBill(r.Context(), req.toBill())
	if err != nil {
		s.respondError(w, r, "create_bill", err)
		return
	}
	s.created(w, r, op, tables.Bills, b.ID, newBillView(b, s.deps.Now()))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireLocal(w, s.deps.Ledger.Bills(), id, func(b core.Bill) string { return b.ID }, "bill") {
		return
	}
	var p ledger.BillPatch
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	op, err := s.deps.Ledger.UpdateBill(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, "update_bill", err)
		return
	}
	var rec any
	if b, ok := findByID(s.deps.Ledger.Bills(), id, func(b core.Bill) string { return b.ID }); ok {
		rec = newBillView(b, s.deps.Now())
	}
	s.changed(w, r, ledger.OpUpdate, op, tables.Bills, id, rec)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.deps.Ledger.DeleteBill(r.Context(), id)
	s.changed(w, r, ledger.OpDelete, op, tables.Bills, id, nil)
}

// Goals

type goalView struct {
	core.SavingsGoal
	Progress  float64 `json:"progress"`
	Remaining int64   `json:"remaining"`
}

func newGoalView(g core.SavingsGoal) goalView {
	return goalView{SavingsGoal: g, Progress: core.GoalProgress(g), Remaining: core.GoalRemainder(g)}
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals := s.deps.Ledger.Goals()
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalView(g))
	}
	NewJSONResponse().Data(out).Send(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string     `json:"name"`
		TargetAmount int64      `json:"target_amount"`
		SavedAmount  int64      `json:"saved_amount"`
		Icon         string     `json:"icon"`
		Color        string     `json:"color"`
		Deadline     *core.Date `json:"deadline"`
	}
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	g, op, err := s.deps.Ledger.AddGoal(r.Context(), core.SavingsGoal{
		Name:         strings.TrimSpace(req.Name),
		TargetAmount: req.TargetAmount,
		SavedAmount:  req.SavedAmount,
		Icon:         req.Icon,
		Color:        req.Color,
		Deadline:     req.Deadline,
	})
	if err != nil {
		s.respondError(w, r, "create_goal", err)
		return
	}
	s.created(w, r, op, tables.SavingsGoals, g.ID, newGoalView(g))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireLocal(w, s.deps.Ledger.Goals(), id, func(g core.SavingsGoal) string { return g.ID }, "goal") {
		return
	}
	var p ledger.GoalPatch
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}
	op, err := s.deps.Ledger.UpdateGoal(r.Context(), id, p)
	if err != nil {
		s.respondError(w, r, "update_goal", err)
		return
	}
	var rec any
	if g, ok := findByID(s.deps.Ledger.Goals(), id, func(g core.SavingsGoal) string { return g.ID }); ok {
		rec = newGoalView(g)
	}
	s.changed(w, r, ledger.OpUpdate, op, tables.SavingsGoals, id, rec)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.deps.Ledger.DeleteGoal(r.Context(), id)
	s.changed(w, r, ledger.OpDelete, op, tables.SavingsGoals, id, nil)
}
