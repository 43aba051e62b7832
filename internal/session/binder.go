package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dlog "dompet/internal/log"
)

// DefaultInitTimeout bounds the initial session check.
const DefaultInitTimeout = 5 * time.Second

type Status string

const (
	Checking Status = "checking"
	Bound    Status = "signed_in"
	Unbound  Status = "signed_out"
)

var ErrAlreadyStarted = errors.New("session binder already started")

type Config struct {
	// InitTimeout is how long WaitReady blocks on the initial check before
	// reporting ready anyway (default: 5s).
	InitTimeout time.Duration
	// Buffer is the number of pending session changes held before the
	// provider's callback blocks (default: 16).
	Buffer int
	Logger *slog.Logger
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{InitTimeout: DefaultInitTimeout, Buffer: 16}
}

// Binder loads the ledger for whoever signs in and clears it on sign-out.
// Session changes are handled one at a time in arrival order.
type Binder struct {
	auth   AuthProvider
	ledger Ledger
	cfg    Config
	log    *slog.Logger

	mu          sync.Mutex
	running     bool
	status      Status
	userID      string
	loads       int
	timedOut    bool
	ready       chan struct{}
	readyOnce   sync.Once
	events      chan Change
	stopCh      chan struct{}
	doneCh      chan struct{}
	unsubscribe func()
}

func NewBinder(auth AuthProvider, l Ledger, cfg Config) *Binder {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Binder{
		auth:   auth,
		ledger: l,
		cfg:    cfg,
		log:    lg.With(dlog.FieldComponent, dlog.ComponentSession),
		status: Checking,
		ready:  make(chan struct{}),
	}
}

// Start subscribes to session changes and begins the initial session check
// in the background. Use WaitReady to block until the check has finished or
// InitTimeout has passed.
func (b *Binder) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.running = true
	b.events = make(chan Change, b.cfg.Buffer)
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	stopCh, events := b.stopCh, b.events
	b.mu.Unlock()

	unsubscribe := b.auth.Subscribe(func(c Change) {
		select {
		case events <- c:
		case <-stopCh:
		}
	})
	b.mu.Lock()
	b.unsubscribe = unsubscribe
	b.mu.Unlock()

	timer := time.AfterFunc(b.cfg.InitTimeout, func() {
		b.mu.Lock()
		pending := b.status == Checking
		if pending {
			b.timedOut = true
		}
		b.mu.Unlock()
		if pending {
			b.log.WarnContext(ctx, "Session check timed out, continuing signed out",
				"timeout", b.cfg.InitTimeout)
		}
		b.markReady()
	})

	go b.run(ctx, timer)
	return nil
}

func (b *Binder) run(ctx context.Context, timer *time.Timer) {
	defer close(b.doneCh)

	b.initial(ctx)
	timer.Stop()
	b.markReady()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case c := <-b.events:
			b.handle(ctx, c)
		}
	}
}

// initial binds the cached session, if any. Errors and timeouts count as
// no session.
func (b *Binder) initial(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, b.cfg.InitTimeout)
	defer cancel()

	sess, err := b.auth.CachedSession(cctx)
	switch {
	case err != nil:
		b.log.WarnContext(ctx, "Session check failed", dlog.FieldError, err)
		b.setUnbound()
	case sess == nil || sess.UserID == "":
		b.log.InfoContext(ctx, "No cached session")
		b.setUnbound()
	case sess.Expired(b.cfg.Now()):
		b.log.InfoContext(ctx, "Cached session expired", dlog.FieldUserID, sess.UserID)
		b.setUnbound()
	default:
		b.bind(ctx, sess.UserID)
	}
}

func (b *Binder) handle(ctx context.Context, c Change) {
	switch c.Event {
	case SignedIn:
		if c.Session == nil || c.Session.UserID == "" {
			b.log.WarnContext(ctx, "Sign-in without a session ignored")
			return
		}
		b.bind(ctx, c.Session.UserID)
	case SignedOut:
		b.unbind(ctx)
	case TokenRefreshed:
		b.log.DebugContext(ctx, "Token refreshed")
	default:
		b.log.DebugContext(ctx, "Unknown session event ignored", dlog.FieldEvent, c.Event)
	}
}

// bind loads userID's data unless that user is already bound.
func (b *Binder) bind(ctx context.Context, userID string) {
	b.mu.Lock()
	if b.status == Bound && b.userID == userID {
		b.mu.Unlock()
		b.log.DebugContext(ctx, "Duplicate sign-in ignored", dlog.FieldUserID, userID)
		return
	}
	b.status = Bound
	b.userID = userID
	b.loads++
	b.mu.Unlock()

	b.log.InfoContext(ctx, "User signed in, loading ledger", dlog.FieldUserID, userID)
	report := b.ledger.LoadAll(ctx, userID)
	if len(report.Failed) > 0 {
		b.log.WarnContext(ctx, "Ledger loaded with failures",
			dlog.FieldUserID, userID, "failed", report.Failed)
	}
}

func (b *Binder) unbind(ctx context.Context) {
	b.mu.Lock()
	prev := b.userID
	b.status = Unbound
	b.userID = ""
	b.mu.Unlock()

	b.ledger.Clear()
	b.log.InfoContext(ctx, "User signed out, ledger cleared", dlog.FieldUserID, prev)
}

func (b *Binder) setUnbound() {
	b.mu.Lock()
	b.status = Unbound
	b.mu.Unlock()
}

func (b *Binder) markReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

// Ready is closed once the initial check completed or timed out.
func (b *Binder) Ready() <-chan struct{} { return b.ready }

// WaitReady blocks until Ready is closed or ctx is done.
func (b *Binder) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes from the provider and waits for the current change,
// if any, to finish.
func (b *Binder) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	unsubscribe := b.unsubscribe
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(b.stopCh)

	select {
	case <-b.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session binder close: %w", ctx.Err())
	}
}

// State is a snapshot of the binder for status endpoints.
type State struct {
	Status   Status `json:"status"`
	UserID   string `json:"user_id,omitempty"`
	Loads    int    `json:"loads"`
	TimedOut bool   `json:"init_timed_out"`
}

func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{Status: b.status, UserID: b.userID, Loads: b.loads, TimedOut: b.timedOut}
}

func (b *Binder) UserID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID
}

// CurrentUser asks the provider who is signed in, bypassing the cache.
func (b *Binder) CurrentUser(ctx context.Context) (*User, error) {
	return b.auth.CurrentUser(ctx)
}
