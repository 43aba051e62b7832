package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"dompet/internal/core"
	"dompet/internal/ledger"
	dlog "dompet/internal/log"
	"dompet/internal/middleware/ratelimit"
	"dompet/internal/middleware/security"
	"dompet/internal/middleware/trace"
	"dompet/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Authenticator is the part of the session provider the API drives.
type Authenticator interface {
	SignIn(ctx context.Context, userID, email string) (*session.Session, error)
	SignInWithToken(ctx context.Context, tok string) (*session.Session, error)
	SignOut(ctx context.Context) error
	ParseToken(tok string) (*session.Session, error)
	CurrentUser(ctx context.Context) (*session.User, error)
}

// SessionState exposes the binder's view of who is signed in.
type SessionState interface {
	State() session.State
	Ready() <-chan struct{}
}

type Deps struct {
	Ledger  *ledger.Store
	Auth    Authenticator
	Session SessionState
	// Check reports whether the remote table store is reachable. Nil means
	// always ready.
	Check func(context.Context) error
	// AdminSecret gates sign-in by user id. Empty allows token sign-in only.
	AdminSecret string
	Logger      *dlog.Logger
	Now         func() time.Time
	// RateLimit is mutating requests per client per minute (default: 60).
	RateLimit      int
	TrustedProxies []string
}

type Server struct {
	http.Server
	deps       Deps
	log        *dlog.Logger
	structured *dlog.StructuredLogger
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Ledger == nil || deps.Auth == nil || deps.Session == nil {
		return nil, errors.New("http: ledger, auth and session are required")
	}
	if deps.Logger == nil {
		deps.Logger = dlog.New(dlog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	logger := deps.Logger.WithComponent(dlog.ComponentHTTP)
	s := &Server{
		deps:       deps,
		log:        logger,
		structured: dlog.NewStructuredLogger(logger),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimit}),
		detector:   detector,
		tracer:     trace.NewMiddleware(detector.ExtractClientIP, logger),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(dlog.Middleware(s.log))
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Send(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Send(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, http.MethodPost, http.MethodPatch, http.MethodDelete))

		r.Get("/session", s.handleGetSession)
		r.Post("/session", s.handleSignIn)
		r.With(s.requireToken).Delete("/session", s.handleSignOut)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken, s.requireLedger)

			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/summary", s.handleSummary)
			r.Post("/receipts/parse", s.handleParseReceipt)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Patch("/transactions/{id}", s.handleUpdateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)

			r.Get("/budgets", s.handleListBudgets)
			r.Post("/budgets", s.handleCreateBudget)
			r.Patch("/budgets/{id}", s.handleUpdateBudget)
			r.Delete("/budgets/{id}", s.handleDeleteBudget)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Post("/categories/seed", s.handleSeedCategories)
			r.Patch("/categories/{id}", s.handleUpdateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)

			r.Get("/bills", s.handleListBills)
			r.Post("/bills", s.handleCreateBill)
			r.Patch("/bills/{id}", s.handleUpdateBill)
			r.Delete("/bills/{id}", s.handleDeleteBill)
			r.Post("/bills/{id}/paid", s.handleMarkPaid)

			r.Get("/goals", s.handleListGoals)
			r.Post("/goals", s.handleCreateGoal)
			r.Patch("/goals/{id}", s.handleUpdateGoal)
			r.Delete("/goals/{id}", s.handleDeleteGoal)
			r.Post("/goals/{id}/deposit", s.handleDeposit)
		})
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.limiter.Stop)
	return s.Server.Shutdown(ctx)
}

// requireToken admits requests carrying the provider's current bearer token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			UnauthorizedError("missing bearer token").Send(w)
			return
		}
		sess, err := s.deps.Auth.ParseToken(tok)
		if err != nil {
			UnauthorizedError("invalid session").Send(w)
			return
		}
		// A token outlives sign-out; only the provider's current one counts.
		user, err := s.deps.Auth.CurrentUser(r.Context())
		if err != nil || user == nil || user.ID != sess.UserID {
			UnauthorizedError("session is not active").Send(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionUserKey{}, sess.UserID)))
	})
}

type sessionUserKey struct{}

// requireLedger holds requests back until the ledger belongs to the
// requesting user. It runs after requireToken.
func (s *Server) requireLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(sessionUserKey{}).(string)
		if userID == "" || s.deps.Ledger.UserID() != userID {
			NewJSONResponse().Status(http.StatusServiceUnavailable).
				Header("Retry-After", "1").
				Error("session is loading").
				Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Send(w)
}

// handleReady is ready once the initial session check has settled and the
// remote store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.deps.Session.Ready():
	default:
		ErrorResponse(http.StatusServiceUnavailable, "session check in progress").Send(w)
		return
	}
	if s.deps.Check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Check(ctx); err != nil {
			s.log.WarnContext(r.Context(), "Readiness check failed", dlog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "remote store unavailable").Send(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]any{
		"status":  "ready",
		"session": s.deps.Session.State(),
		"ledger":  s.deps.Ledger.State(),
		"http":    s.tracer.GetMetrics(),
		"limits":  s.limiter.GetMetrics(),
		"probes":  s.detector.GetMetrics(),
	}).Send(w)
}

// syncStatus blocks on ops only when the caller asked for ?wait=true.
func syncStatus(r *http.Request, ops ...*ledger.Op) SyncStatus {
	if !WaitRequested(r) {
		return SyncPending
	}
	if err := ledger.WaitAll(r.Context(), ops...); err != nil {
		return SyncStatus("failed: " + err.Error())
	}
	return SyncOK
}

// respondError maps ledger and validation errors to status codes.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotSignedIn):
		UnauthorizedError(err.Error()).Send(w)
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError(err.Error()).Send(w)
	case core.IsValidationError(err):
		ValidationError(err.Error()).Send(w)
	default:
		s.structured.LogError(r.Context(), "Request failed", err, dlog.ComponentHTTP, op, nil)
		InternalError().Send(w)
	}
}
