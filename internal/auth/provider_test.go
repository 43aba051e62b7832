package auth

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dompet/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newProvider(t *testing.T, file string) (*Provider, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
	p, err := NewProvider(Config{Secret: "test-secret", SessionFile: file, TTL: time.Hour, Now: c.Now})
	require.NoError(t, err)
	return p, c
}

func TestNewProviderRequiresSecret(t *testing.T) {
	_, err := NewProvider(Config{Secret: "  "})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndParse(t *testing.T) {
	p, c := newProvider(t, "")
	tok, err := p.IssueToken("u1", "a@example.com")
	require.NoError(t, err)

	s, err := p.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "a@example.com", s.Email)
	assert.WithinDuration(t, c.Now().Add(time.Hour), s.ExpiresAt, 0)

	c.Advance(2 * time.Hour)
	_, err = p.ParseToken(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = p.IssueToken("", "")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	p, _ := newProvider(t, "")
	other, _ := newProvider(t, "")
	other.secret = []byte("another-secret")
	tok, err := other.IssueToken("u1", "")
	require.NoError(t, err)
	_, err = p.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": "dompet"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.ParseToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "state", "session.jwt")
	p, c := newProvider(t, file)

	var got []session.Change
	unsubscribe := p.Subscribe(func(ch session.Change) { got = append(got, ch) })

	s, err := p.SignIn(ctx, "u1", "a@example.com")
	require.NoError(t, err)
	assert.FileExists(t, file)

	// A fresh provider over the same file sees the session without signing in.
	p2, _ := newProvider(t, file)
	p2.cfg.Now = c.Now
	cached, err := p2.CachedSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, s.UserID, cached.UserID)

	user, err := p2.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	c.Advance(30 * time.Minute)
	refreshed, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.After(s.ExpiresAt))

	require.NoError(t, p.SignOut(ctx))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
	cached, err = p.CachedSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	unsubscribe()
	_, err = p.SignIn(ctx, "u2", "")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, session.SignedIn, got[0].Event)
	assert.Equal(t, "u1", got[0].Session.UserID)
	assert.Equal(t, session.TokenRefreshed, got[1].Event)
	assert.Equal(t, session.SignedOut, got[2].Event)
	assert.Nil(t, got[2].Session)
}

func TestExpiredCachedSessionIsNoSession(t *testing.T) {
	ctx := context.Background()
	p, c := newProvider(t, "")
	_, err := p.SignIn(ctx, "u1", "")
	require.NoError(t, err)

	c.Advance(2 * time.Hour)
	s, err := p.CachedSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = p.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestProviderDrivesBinder(t *testing.T) {
	ctx := context.Background()
	p, _ := newProvider(t, "")
	l := &countingLedger{loaded: make(chan string, 4)}
	b := session.NewBinder(p, l, session.DefaultConfig())
	require.NoError(t, b.Start(ctx))
	defer b.Close(ctx)
	require.NoError(t, b.WaitReady(ctx))

	_, err := p.SignIn(ctx, "u1", "")
	require.NoError(t, err)
	select {
	case u := <-l.loaded:
		assert.Equal(t, "u1", u)
	case <-time.After(2 * time.Second):
		t.Fatal("binder did not load after sign-in")
	}
}
