// Package auth is a self-contained session provider: it issues HMAC-signed
// JWTs, keeps the current one in a session file and tells subscribers when
// the session changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	dlog "dompet/internal/log"
	"dompet/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 30 * 24 * time.Hour

var (
	ErrMissingSecret = errors.New("auth: missing JWT secret")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrExpiredToken  = errors.New("auth: token expired")
	ErrMissingUser   = errors.New("auth: missing user id")
	ErrNoSession     = errors.New("auth: no session")
)

type Config struct {
	Secret string
	// SessionFile persists the current token between runs. Empty keeps it
	// in memory only.
	SessionFile string
	TTL         time.Duration
	Issuer      string
	Now         func() time.Time
	Logger      *slog.Logger
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Provider struct {
	secret []byte
	cfg    Config
	log    *slog.Logger

	mu      sync.Mutex
	token   string
	loaded  bool
	subs    map[int]func(session.Change)
	nextSub int
}

var _ session.AuthProvider = (*Provider)(nil)

func NewProvider(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "dompet"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Provider{
		secret: []byte(cfg.Secret),
		cfg:    cfg,
		log:    lg.With(dlog.FieldComponent, dlog.ComponentAuth),
		subs:   make(map[int]func(session.Change)),
	}, nil
}

// IssueToken signs a token for userID valid for the configured TTL.
func (p *Provider) IssueToken(userID, email string) (string, error) {
	if userID == "" {
		return "", ErrMissingUser
	}
	now := p.cfg.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// ParseToken verifies tok and returns the session it carries.
func (p *Provider) ParseToken(tok string) (*session.Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.cfg.Now), jwt.WithIssuer(p.cfg.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	s := &session.Session{UserID: claims.Subject, Email: claims.Email, AccessToken: tok}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// CachedSession returns the stored session, or nil when there is none or it
// has expired. It never leaves the process.
func (p *Provider) CachedSession(ctx context.Context) (*session.Session, error) {
	tok, err := p.storedToken()
	if err != nil || tok == "" {
		return nil, err
	}
	s, err := p.ParseToken(tok)
	switch {
	case errors.Is(err, ErrExpiredToken):
		p.log.InfoContext(ctx, "Stored session expired")
		return nil, nil
	case err != nil:
		return nil, err
	}
	return s, nil
}

func (p *Provider) CurrentUser(ctx context.Context) (*session.User, error) {
	s, err := p.CachedSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return &session.User{ID: s.UserID, Email: s.Email}, nil
}

func (p *Provider) Subscribe(fn func(session.Change)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// SignIn issues a token for userID, stores it and announces the sign-in.
func (p *Provider) SignIn(ctx context.Context, userID, email string) (*session.Session, error) {
	tok, err := p.IssueToken(userID, email)
	if err != nil {
		return nil, err
	}
	return p.SignInWithToken(ctx, tok)
}

// SignInWithToken adopts an existing token.
func (p *Provider) SignInWithToken(ctx context.Context, tok string) (*session.Session, error) {
	s, err := p.ParseToken(tok)
	if err != nil {
		return nil, err
	}
	if err := p.store(tok); err != nil {
		return nil, err
	}
	p.log.InfoContext(ctx, "Signed in", dlog.FieldUserID, s.UserID)
	p.emit(session.Change{Event: session.SignedIn, Session: s})
	return s, nil
}

// Refresh reissues the current session's token with a fresh expiry.
func (p *Provider) Refresh(ctx context.Context) (*session.Session, error) {
	cur, err := p.CachedSession(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNoSession
	}
	tok, err := p.IssueToken(cur.UserID, cur.Email)
	if err != nil {
		return nil, err
	}
	s, err := p.ParseToken(tok)
	if err != nil {
		return nil, err
	}
	if err := p.store(tok); err != nil {
		return nil, err
	}
	p.emit(session.Change{Event: session.TokenRefreshed, Session: s})
	return s, nil
}

// SignOut forgets the stored token and announces the sign-out.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.store(""); err != nil {
		return err
	}
	p.log.InfoContext(ctx, "Signed out")
	p.emit(session.Change{Event: session.SignedOut})
	return nil
}

func (p *Provider) emit(c session.Change) {
	p.mu.Lock()
	fns := make([]func(session.Change), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (p *Provider) storedToken() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded || p.cfg.SessionFile == "" {
		return p.token, nil
	}
	data, err := os.ReadFile(p.cfg.SessionFile)
	if errors.Is(err, os.ErrNotExist) {
		p.loaded = true
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	p.token = strings.TrimSpace(string(data))
	p.loaded = true
	return p.token, nil
}

func (p *Provider) store(tok string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path := p.cfg.SessionFile; path != "" {
		if tok == "" {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove session file: %w", err)
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create session dir: %w", err)
			}
			if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
				return fmt.Errorf("write session file: %w", err)
			}
		}
	}
	p.token = tok
	p.loaded = true
	return nil
}
