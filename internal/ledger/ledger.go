// Package ledger holds one signed-in user's financial records in memory and
// mirrors every change to a remote table store.
//
// Mutations update local state synchronously and return immediately; the
// remote call runs in the background and is never rolled back locally if
// it fails. Its outcome is observable through the returned *Op, the result
// hook and the failure notifier.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dompet/internal/core"
	dlog "dompet/internal/log"
	"dompet/internal/tables"

	"github.com/google/uuid"
)

const (
	Idle    LoadState = "idle"
	Loading LoadState = "loading"
	Ready   LoadState = "ready"
)

type LoadState string

var (
	ErrNotSignedIn = errors.New("no signed-in user")
	ErrNotFound    = errors.New("record not found")
)

// FailureNotifier is told about every remote call that failed.
type FailureNotifier interface {
	NotifySyncFailure(ctx context.Context, r Result) error
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithResultHook registers fn to receive every remote outcome. fn runs on
// the dispatching goroutine and must not block.
func WithResultHook(fn func(Result)) Option {
	return func(s *Store) { s.hook = fn }
}

func WithNotifier(n FailureNotifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithRemoteTimeout bounds each background remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(s *Store) { s.remoteTimeout = d }
}

type Store struct {
	remote        tables.Store
	log           *slog.Logger
	now           func() time.Time
	newID         func() string
	hook          func(Result)
	notifier      FailureNotifier
	remoteTimeout time.Duration

	mu           sync.RWMutex
	userID       string
	state        LoadState
	gen          uint64
	transactions []core.Transaction
	budgets      []core.Budget
	categories   []core.Category
	bills        []core.Bill
	goals        []core.SavingsGoal

	// inflight holds one channel per dispatched call, closed once the call
	// has returned and its result was reported.
	inflightMu sync.Mutex
	inflight   map[*Op]chan struct{}
}

func New(remote tables.Store, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		log:    slog.Default().With(dlog.FieldComponent, dlog.ComponentLedger),
		now:    time.Now,
		newID:  uuid.NewString,
		state:  Idle,

		inflight: make(map[*Op]chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot is a point-in-time copy of every collection.
type Snapshot struct {
	UserID       string             `json:"user_id"`
	State        LoadState          `json:"state"`
	Transactions []core.Transaction `json:"transactions"`
	Budgets      []core.Budget      `json:"budgets"`
	Categories   []core.Category    `json:"categories"`
	Bills        []core.Bill        `json:"bills"`
	Goals        []core.SavingsGoal `json:"savings_goals"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		UserID:       s.userID,
		State:        s.state,
		Transactions: clone(s.transactions),
		Budgets:      clone(s.budgets),
		Categories:   clone(s.categories),
		Bills:        clone(s.bills),
		Goals:        clone(s.goals),
	}
}

func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Store) State() LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transactions returns the user's transactions, newest first.
func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.transactions)
}

func (s *Store) Budgets() []core.Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.budgets)
}

func (s *Store) Categories() []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.categories)
}

func (s *Store) Bills() []core.Bill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.bills)
}

// ActiveBills returns bills with IsActive set.
func (s *Store) ActiveBills() []core.Bill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) Goals() []core.SavingsGoal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.goals)
}

// Clear drops all local data and the current user. Loads still in flight
// are discarded when they complete.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.userID = ""
	s.state = Idle
	s.transactions = nil
	s.budgets = nil
	s.categories = nil
	s.bills = nil
	s.goals = nil
}

// Flush waits until every remote call dispatched before it was called has
// returned and been reported. Calls dispatched meanwhile are not awaited.
func (s *Store) Flush(ctx context.Context) error {
	s.inflightMu.Lock()
	pending := make([]chan struct{}, 0, len(s.inflight))
	for _, settled := range s.inflight {
		pending = append(pending, settled)
	}
	s.inflightMu.Unlock()

	for _, settled := range pending {
		select {
		case <-settled:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Pending returns the number of remote calls still in flight.
func (s *Store) Pending() int {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	return len(s.inflight)
}

// dispatch runs call in the background on a context detached from the
// caller's cancellation.
func (s *Store) dispatch(ctx context.Context, kind OpKind, c tables.Collection, id, userID string, call func(context.Context) error) *Op {
	op := newOp(kind, c, id)
	rctx := context.WithoutCancel(ctx)
	settled := make(chan struct{})
	s.inflightMu.Lock()
	s.inflight[op] = settled
	s.inflightMu.Unlock()
	go func() {
		defer func() {
			s.inflightMu.Lock()
			delete(s.inflight, op)
			s.inflightMu.Unlock()
			close(settled)
		}()
		cctx := rctx
		if s.remoteTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(rctx, s.remoteTimeout)
			defer cancel()
		}
		err := call(cctx)
		op.finish(err)
		s.report(rctx, Result{Kind: kind, Collection: c, ID: id, UserID: userID, Err: err, At: s.now()})
	}()
	return op
}

func (s *Store) report(ctx context.Context, r Result) {
	if r.Err != nil {
		r.Error = r.Err.Error()
		s.log.ErrorContext(ctx, "Remote sync failed",
			dlog.FieldOperation, r.Kind,
			dlog.FieldCollection, r.Collection,
			dlog.FieldRecordID, r.ID,
			dlog.FieldError, r.Err)
	} else {
		s.log.DebugContext(ctx, "Remote sync ok",
			dlog.FieldOperation, r.Kind,
			dlog.FieldCollection, r.Collection,
			dlog.FieldRecordID, r.ID)
	}
	if s.hook != nil {
		s.hook(r)
	}
	if r.Err != nil && s.notifier != nil {
		if err := s.notifier.NotifySyncFailure(ctx, r); err != nil {
			s.log.WarnContext(ctx, "Failed to publish sync failure", dlog.FieldError, err)
		}
	}
}

func clone[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, it := range items {
		if key(it) == id {
			return i
		}
	}
	return -1
}

func remove[T any](items []T, id string, key func(T) string) []T {
	i := indexOf(items, id, key)
	if i < 0 {
		return items
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
