package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"dompet/internal/auth"
	dlog "dompet/internal/log"
	"dompet/internal/session"
)

type signInRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

type sessionResponse struct {
	Token   string           `json:"token,omitempty"`
	Session *session.Session `json:"session,omitempty"`
	State   session.State    `json:"state"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Auth.CurrentUser(r.Context())
	if err != nil {
		s.respondError(w, r, "get_session", err)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"user":   user,
		"state":  s.deps.Session.State(),
		"ledger": s.deps.Ledger.State(),
	}).Send(w)
}

// HeaderAdminSecret carries the operator secret that allows sign-in by
// user id.
const HeaderAdminSecret = "X-Admin-Secret"

// handleSignIn accepts either an existing signed token or, from an operator
// holding the admin secret, a user id to issue one for. The ledger is loaded
// by the binder once the sign-in is announced.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Send(w)
		return
	}

	var (
		sess *session.Session
		err  error
	)
	switch {
	case strings.TrimSpace(req.Token) != "":
		sess, err = s.deps.Auth.SignInWithToken(r.Context(), strings.TrimSpace(req.Token))
	case strings.TrimSpace(req.UserID) != "":
		if !s.adminAllowed(r) {
			s.log.WarnContext(r.Context(), "Rejected sign-in by user id", dlog.FieldUserID, strings.TrimSpace(req.UserID))
			UnauthorizedError("sign-in by user id requires the admin secret").Send(w)
			return
		}
		sess, err = s.deps.Auth.SignIn(r.Context(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.Email))
	default:
		ValidationError("user_id or token is required").Send(w)
		return
	}
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
			UnauthorizedError(err.Error()).Send(w)
			return
		}
		s.respondError(w, r, "sign_in", err)
		return
	}

	s.log.InfoContext(r.Context(), "Session started via API", dlog.FieldUserID, sess.UserID)
	NewJSONResponse().Status(http.StatusCreated).Data(sessionResponse{
		Token:   sess.AccessToken,
		Session: sess,
		State:   s.deps.Session.State(),
	}).Send(w)
}

func (s *Server) adminAllowed(r *http.Request) bool {
	if s.deps.AdminSecret == "" {
		return false
	}
	got := r.Header.Get(HeaderAdminSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.AdminSecret)) == 1
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.SignOut(r.Context()); err != nil {
		s.respondError(w, r, "sign_out", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Send(w)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.deps.Ledger.Snapshot()).Send(w)
}
