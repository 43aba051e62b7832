package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dompet/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu      sync.Mutex
	cached  *Session
	err     error
	block   chan struct{}
	subs    map[int]func(Change)
	nextSub int
}

func newFakeAuth() *fakeAuth { return &fakeAuth{subs: make(map[int]func(Change))} }

func (f *fakeAuth) CachedSession(context.Context) (*Session, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached, f.err
}

func (f *fakeAuth) CurrentUser(context.Context) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached == nil {
		return nil, nil
	}
	return &User{ID: f.cached.UserID, Email: f.cached.Email}, nil
}

func (f *fakeAuth) Subscribe(fn func(Change)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeAuth) emit(c Change) {
	f.mu.Lock()
	fns := make([]func(Change), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (f *fakeAuth) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeLedger struct {
	mu     sync.Mutex
	loads  []string
	clears int
	calls  chan string
}

func newFakeLedger() *fakeLedger { return &fakeLedger{calls: make(chan string, 32)} }

func (l *fakeLedger) LoadAll(_ context.Context, userID string) ledger.LoadReport {
	l.mu.Lock()
	l.loads = append(l.loads, userID)
	l.mu.Unlock()
	l.calls <- "load:" + userID
	return ledger.LoadReport{UserID: userID}
}

func (l *fakeLedger) Clear() {
	l.mu.Lock()
	l.clears++
	l.mu.Unlock()
	l.calls <- "clear"
}

func (l *fakeLedger) loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loads...)
}

func next(t *testing.T, l *fakeLedger) string {
	t.Helper()
	select {
	case c := <-l.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ledger call")
		return ""
	}
}

func start(t *testing.T, auth *fakeAuth, l *fakeLedger, timeout time.Duration) *Binder {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InitTimeout = timeout
	b := NewBinder(auth, l, cfg)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = b.Close(ctx)
	})
	return b
}

func waitReady(t *testing.T, b *Binder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.WaitReady(ctx))
}

func TestCachedSessionLoadsOnStart(t *testing.T) {
	auth := newFakeAuth()
	auth.cached = &Session{UserID: "u1"}
	l := newFakeLedger()
	b := start(t, auth, l, time.Second)

	waitReady(t, b)
	assert.Equal(t, "load:u1", next(t, l))
	st := b.State()
	assert.Equal(t, Bound, st.Status)
	assert.Equal(t, "u1", st.UserID)
	assert.False(t, st.TimedOut)
}

func TestNoSessionIsSignedOut(t *testing.T) {
	auth := newFakeAuth()
	l := newFakeLedger()
	b := start(t, auth, l, time.Second)

	waitReady(t, b)
	assert.Equal(t, Unbound, b.State().Status)
	assert.Empty(t, l.loaded())
}

func TestCheckErrorAndExpiryCountAsNoSession(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		auth := newFakeAuth()
		auth.err = errors.New("provider down")
		b := start(t, auth, newFakeLedger(), time.Second)
		waitReady(t, b)
		assert.Equal(t, Unbound, b.State().Status)
	})
	t.Run("expired", func(t *testing.T) {
		auth := newFakeAuth()
		auth.cached = &Session{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}
		l := newFakeLedger()
		b := start(t, auth, l, time.Second)
		waitReady(t, b)
		assert.Equal(t, Unbound, b.State().Status)
		assert.Empty(t, l.loaded())
	})
}

func TestSlowProviderIsBounded(t *testing.T) {
	auth := newFakeAuth()
	auth.block = make(chan struct{})
	b := start(t, auth, newFakeLedger(), 50*time.Millisecond)

	begin := time.Now()
	waitReady(t, b)
	assert.Less(t, time.Since(begin), time.Second)
	st := b.State()
	assert.True(t, st.TimedOut)
	assert.Equal(t, Checking, st.Status)

	close(auth.block)
	assert.Eventually(t, func() bool { return b.State().Status == Unbound }, time.Second, 10*time.Millisecond)
}

func TestDuplicateSignInLoadsOnce(t *testing.T) {
	auth := newFakeAuth()
	l := newFakeLedger()
	b := start(t, auth, l, time.Second)
	waitReady(t, b)

	sess := &Session{UserID: "u1"}
	auth.emit(Change{Event: SignedIn, Session: sess})
	auth.emit(Change{Event: SignedIn, Session: sess})
	auth.emit(Change{Event: TokenRefreshed, Session: sess})
	auth.emit(Change{Event: SignedIn, Session: sess})
	auth.emit(Change{Event: SignedIn, Session: &Session{UserID: "u2"}})

	assert.Equal(t, "load:u1", next(t, l))
	assert.Equal(t, "load:u2", next(t, l))
	assert.Equal(t, []string{"u1", "u2"}, l.loaded())
	assert.Equal(t, 2, b.State().Loads)
}

func TestSignOutClearsAndAllowsReload(t *testing.T) {
	auth := newFakeAuth()
	auth.cached = &Session{UserID: "u1"}
	l := newFakeLedger()
	b := start(t, auth, l, time.Second)
	waitReady(t, b)
	assert.Equal(t, "load:u1", next(t, l))

	auth.emit(Change{Event: SignedOut})
	assert.Equal(t, "clear", next(t, l))
	assert.Equal(t, Unbound, b.State().Status)
	assert.Empty(t, b.UserID())

	auth.emit(Change{Event: SignedIn, Session: &Session{UserID: "u1"}})
	assert.Equal(t, "load:u1", next(t, l))
}

func TestCloseUnsubscribes(t *testing.T) {
	auth := newFakeAuth()
	l := newFakeLedger()
	b := NewBinder(auth, l, DefaultConfig())
	require.NoError(t, b.Start(context.Background()))
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, auth.subscribers())

	require.NoError(t, b.Close(context.Background()))
	assert.Equal(t, 0, auth.subscribers())
	require.NoError(t, b.Close(context.Background()))
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	var nilSession *Session
	assert.False(t, nilSession.Expired(now))
	assert.False(t, (&Session{}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Second)}).Expired(now))
}
