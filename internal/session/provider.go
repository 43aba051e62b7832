// Package session binds an authentication provider's session lifecycle to
// the ledger: a sign-in loads the user's data, a sign-out clears it.
package session

import (
	"context"
	"time"

	"dompet/internal/ledger"
)

type Event string

const (
	SignedIn       Event = "signed_in"
	SignedOut      Event = "signed_out"
	TokenRefreshed Event = "token_refreshed"
)

// Session is an authenticated identity as the provider reports it.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now. A zero
// ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Change is one session-change notification. Session is nil on sign-out.
type Change struct {
	Event   Event
	Session *Session
}

// AuthProvider is the external authentication boundary.
type AuthProvider interface {
	// CachedSession returns the locally stored session without a network
	// round-trip, or nil when there is none.
	CachedSession(ctx context.Context) (*Session, error)
	// CurrentUser asks the provider who is signed in. It may hit the network.
	CurrentUser(ctx context.Context) (*User, error)
	// Subscribe registers fn for session changes and returns a function that
	// removes it.
	Subscribe(fn func(Change)) (unsubscribe func())
}

// Ledger is the part of the ledger store the binder drives.
type Ledger interface {
	LoadAll(ctx context.Context, userID string) ledger.LoadReport
	Clear()
}
