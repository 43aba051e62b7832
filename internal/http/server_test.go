package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dompet/internal/auth"
	"dompet/internal/ledger"
	dlog "dompet/internal/log"
	"dompet/internal/session"
	"dompet/internal/tables"
	"dompet/internal/tables/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

const testAdminSecret = "http-admin-secret-0001"

type harness struct {
	t      *testing.T
	remote *memory.Store
	ledger *ledger.Store
	auth   *auth.Provider
	binder *session.Binder
	server *Server
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := func() time.Time { return testNow }
	var seq atomic.Int64
	remote := memory.New()
	store := ledger.New(remote,
		ledger.WithClock(now),
		ledger.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
	prov, err := auth.NewProvider(auth.Config{Secret: "http-test-secret", Now: now})
	require.NoError(t, err)

	binder := session.NewBinder(prov, store, session.Config{InitTimeout: time.Second, Now: now})
	require.NoError(t, binder.Start(context.Background()))
	require.NoError(t, binder.WaitReady(context.Background()))

	srv, err := NewServer(":0", Deps{
		Ledger:      store,
		Auth:        prov,
		Session:     binder,
		AdminSecret: testAdminSecret,
		Logger:      dlog.New(dlog.Config{Output: io.Discard}),
		Now:         now,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = binder.Close(context.Background())
		_ = store.Flush(context.Background())
	})
	return &harness{t: t, remote: remote, ledger: store, auth: prov, binder: binder, server: srv}
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Sync  string          `json:"sync"`
	Error string          `json:"error"`
}

func (h *harness) do(method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	h.t.Helper()
	return h.doWith(method, path, body, nil)
}

func (h *harness) doWith(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(h.t, err)
			rd = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rr, req)

	var out apiResponse
	if rr.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func (h *harness) signIn(userID string) {
	h.t.Helper()
	rr, resp := h.doWith(http.MethodPost, "/api/session", map[string]string{"user_id": userID},
		map[string]string{HeaderAdminSecret: testAdminSecret})
	require.Equal(h.t, http.StatusCreated, rr.Code, resp.Error)
	var data sessionResponse
	require.NoError(h.t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(h.t, data.Token)
	h.token = data.Token
	require.Eventually(h.t, func() bool {
		return h.ledger.UserID() == userID && h.ledger.State() == ledger.Ready
	}, 2*time.Second, 5*time.Millisecond)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)

	rr, _ := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rr.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr, _ = h.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	h.server.deps.Check = func(context.Context) error { return errors.New("down") }
	rr, resp := h.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "remote store unavailable", resp.Error)
}

func TestAPIRequiresSession(t *testing.T) {
	h := newHarness(t)

	rr, _ := h.do(http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	h.token = "not-a-token"
	rr, _ = h.do(http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignInSeedsAndSignOutClears(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	rr, resp := h.do(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	cats := decode[[]map[string]any](t, resp.Data)
	assert.NotEmpty(t, cats, "defaults seeded for a new user")

	rr, _ = h.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = h.do(http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.Eventually(t, func() bool { return h.ledger.UserID() == "" }, 2*time.Second, 5*time.Millisecond)

	rr, _ = h.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "old token no longer active")
}

func TestSignInRequiresCredential(t *testing.T) {
	h := newHarness(t)
	body := map[string]string{"user_id": "intruder"}

	rr, _ := h.do(http.MethodPost, "/api/session", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = h.doWith(http.MethodPost, "/api/session", body, map[string]string{HeaderAdminSecret: "wrong-secret"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	h.server.deps.AdminSecret = ""
	rr, _ = h.doWith(http.MethodPost, "/api/session", body, map[string]string{HeaderAdminSecret: ""})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "user id sign-in is off without a configured secret")

	user, err := h.auth.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Empty(t, h.ledger.UserID())

	tok, err := h.auth.IssueToken("u2", "")
	require.NoError(t, err)
	rr, resp := h.do(http.MethodPost, "/api/session", map[string]string{"token": tok})
	require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	require.Eventually(t, func() bool { return h.ledger.UserID() == "u2" }, 2*time.Second, 5*time.Millisecond)
}

func TestSignOutRequiresToken(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")
	tok := h.token

	h.token = ""
	rr, _ := h.do(http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "u1", h.ledger.UserID())

	h.token = tok
	rr, _ = h.do(http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestListBillsDisplayOrder(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	for _, body := range []map[string]any{
		{"name": "Phone", "amount": 100000, "category": "Bills", "frequency": "monthly", "due_date": "2024-03-12", "remind_days_before": 0},
		{"name": "Water", "amount": 80000, "category": "Bills", "frequency": "monthly", "due_date": "2024-03-15", "remind_days_before": 7},
		{"name": "Gym", "amount": 300000, "category": "Health", "frequency": "monthly", "due_date": "2024-03-11", "is_active": false},
	} {
		rr, resp := h.do(http.MethodPost, "/api/bills", body)
		require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	}

	rr, resp := h.do(http.MethodGet, "/api/bills", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	bills := decode[[]map[string]any](t, resp.Data)
	require.Len(t, bills, 2, "inactive bills are hidden")
	assert.Equal(t, "Water", bills[0]["name"])
	assert.Equal(t, "due-soon", bills[0]["status"])
	assert.Equal(t, "Phone", bills[1]["name"])
	assert.Equal(t, "upcoming", bills[1]["status"])

	rr, resp = h.do(http.MethodGet, "/api/bills?inactive=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	bills = decode[[]map[string]any](t, resp.Data)
	require.Len(t, bills, 3)
	assert.Equal(t, "Gym", bills[2]["name"])
}

func TestTransactionLifecycle(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	rr, resp := h.do(http.MethodPost, "/api/transactions?wait=true", map[string]any{
		"amount_text": "Rp 45.000",
		"type":        "expense",
		"category":    "Food",
		"description": "lunch",
	})
	require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	assert.Equal(t, "ok", resp.Sync)
	tx := decode[map[string]any](t, resp.Data)
	assert.Equal(t, float64(45000), tx["amount"])
	assert.Equal(t, "2024-03-10", tx["date"])
	id := tx["id"].(string)
	assert.Equal(t, 1, h.remote.Len(tables.Transactions))

	rr, resp = h.do(http.MethodPatch, "/api/transactions/"+id, map[string]any{"amount": 50000})
	require.Equal(t, http.StatusOK, rr.Code, resp.Error)
	assert.Equal(t, "pending", resp.Sync)
	assert.Equal(t, int64(50000), h.ledger.Transactions()[0].Amount)

	rr, resp = h.do(http.MethodGet, "/api/transactions?year=2024&month=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]map[string]any](t, resp.Data))

	rr, _ = h.do(http.MethodDelete, "/api/transactions/"+id+"?wait=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, h.ledger.Transactions())
	assert.Equal(t, 0, h.remote.Len(tables.Transactions))
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/transactions", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/budgets", map[string]any{"limit": 1}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/goals", nil, http.StatusBadRequest},
		{"missing category", http.MethodPost, "/api/transactions", map[string]any{"amount": 1, "type": "expense"}, http.StatusUnprocessableEntity},
		{"bad amount text", http.MethodPost, "/api/transactions", map[string]any{"amount_text": "abc", "type": "expense", "category": "Food"}, http.StatusUnprocessableEntity},
		{"custom bill without days", http.MethodPost, "/api/bills", map[string]any{"name": "Gym", "amount": 1, "category": "Health", "frequency": "custom", "due_date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"unknown bill", http.MethodPost, "/api/bills/nope/paid", nil, http.StatusNotFound},
		{"unknown goal", http.MethodPost, "/api/goals/nope/deposit", map[string]any{"amount": 10}, http.StatusNotFound},
		{"update unknown transaction", http.MethodPatch, "/api/transactions/nope", map[string]any{"amount": 10}, http.StatusNotFound},
		{"update unknown bill", http.MethodPatch, "/api/bills/nope", map[string]any{"amount": 10}, http.StatusNotFound},
		{"update unknown goal", http.MethodPatch, "/api/goals/nope", map[string]any{"name": "x"}, http.StatusNotFound},
		{"bad month", http.MethodGet, "/api/summary?month=13", nil, http.StatusBadRequest},
		{"no route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := h.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, resp.Error)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestMarkPaidRecordsAndAdvances(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	rr, resp := h.do(http.MethodPost, "/api/bills", map[string]any{
		"name":        "Internet",
		"amount":      350000,
		"category":    "Bills",
		"frequency":   "monthly",
		"due_date":    "2024-03-12",
		"auto_record": true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	bill := decode[map[string]any](t, resp.Data)
	assert.Equal(t, "due-soon", bill["status"])
	assert.Equal(t, float64(2), bill["days_until"])
	id := bill["id"].(string)

	rr, resp = h.do(http.MethodPost, "/api/bills/"+id+"/paid?wait=true", nil)
	require.Equal(t, http.StatusOK, rr.Code, resp.Error)
	assert.Equal(t, "ok", resp.Sync)
	paid := decode[map[string]any](t, resp.Data)
	assert.Equal(t, "2024-04-12", paid["next_due"])
	txn := paid["transaction"].(map[string]any)
	assert.Equal(t, "Bill: Internet", txn["description"])
	assert.Equal(t, float64(350000), txn["amount"])

	require.Len(t, h.ledger.Transactions(), 1)
	assert.Equal(t, "2024-04-12", h.ledger.Bills()[0].NextDue.String())
}

func TestMarkPaidReportsRemoteFailure(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	_, resp := h.do(http.MethodPost, "/api/bills?wait=true", map[string]any{
		"name": "Rent", "amount": 1000, "category": "Housing", "frequency": "monthly", "due_date": "2024-03-01",
	})
	id := decode[map[string]any](t, resp.Data)["id"].(string)

	h.remote.FailWith(func(op string, c tables.Collection) error {
		if c == tables.Bills && op == "update" {
			return errors.New("remote down")
		}
		return nil
	})
	rr, resp := h.do(http.MethodPost, "/api/bills/"+id+"/paid?wait=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(resp.Sync, "failed: "), resp.Sync)
	assert.Equal(t, "2024-04-01", h.ledger.Bills()[0].NextDue.String(), "local change kept")
}

func TestDepositCompletesGoal(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	rr, resp := h.do(http.MethodPost, "/api/goals", map[string]any{"name": "Laptop", "target_amount": 100000, "saved_amount": 60000})
	require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	id := decode[map[string]any](t, resp.Data)["id"].(string)

	rr, resp = h.do(http.MethodPost, "/api/goals/"+id+"/deposit", map[string]any{"amount_text": "40.000"})
	require.Equal(t, http.StatusOK, rr.Code, resp.Error)
	goal := decode[map[string]any](t, resp.Data)
	assert.Equal(t, true, goal["is_completed"])
	assert.Equal(t, float64(100), goal["progress"])
	assert.Equal(t, float64(0), goal["remaining"])

	rr, _ = h.do(http.MethodPost, "/api/goals/"+id+"/deposit", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	for _, body := range []map[string]any{
		{"amount": 5000000, "type": "income", "category": "Salary", "date": "2024-03-01"},
		{"amount": 200000, "type": "expense", "category": "Food", "date": "2024-03-05"},
		{"amount": 100000, "type": "expense", "category": "Food", "date": "2024-02-20"},
	} {
		rr, resp := h.do(http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	}
	rr, resp := h.do(http.MethodPost, "/api/budgets", map[string]any{"category": "Food", "limit_amount": 150000})
	require.Equal(t, http.StatusCreated, rr.Code, resp.Error)

	rr, resp = h.do(http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code, resp.Error)
	sum := decode[summaryResponse](t, resp.Data)
	assert.Equal(t, int64(5000000), sum.Month.Income)
	assert.Equal(t, int64(200000), sum.Month.Expense)
	assert.Equal(t, int64(4700000), sum.Balance)
	assert.Len(t, sum.Trend, trendMonths)
	require.Len(t, sum.Budgets, 1)
	assert.True(t, sum.Budgets[0].Exceeded)
	assert.Equal(t, ledger.Ready, sum.Ledger)
}

func TestParseReceipt(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	rr, resp := h.do(http.MethodPost, "/api/receipts/parse", map[string]string{"text": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, resp = h.do(http.MethodPost, "/api/receipts/parse", map[string]string{"text": "no numbers here"})
	require.Equal(t, http.StatusOK, rr.Code, resp.Error)
	out := decode[receiptResponse](t, resp.Data)
	assert.False(t, out.AmountFound)
	assert.False(t, out.DateFound)
}

func TestMutationRateLimit(t *testing.T) {
	h := newHarness(t)
	h.signIn("u1")

	srv, err := NewServer(":0", Deps{
		Ledger:    h.ledger,
		Auth:      h.auth,
		Session:   h.binder,
		Logger:    dlog.New(dlog.Config{Output: io.Discard}),
		Now:       func() time.Time { return testNow },
		RateLimit: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	h.server = srv

	body := map[string]any{"name": "Travel", "type": "expense"}
	for i := 0; i < 2; i++ {
		rr, resp := h.do(http.MethodPost, "/api/categories", body)
		require.Equal(t, http.StatusCreated, rr.Code, resp.Error)
	}
	rr, _ := h.do(http.MethodPost, "/api/categories", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr, _ = h.do(http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}
