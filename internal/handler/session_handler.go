package handler

import (
	"context"
	"net/http"
	"strings"

	"ride-console/internal/model"
)

type Session interface {
	Snapshot() model.SessionSnapshot
	Login(ctx context.Context, email string, password string) (string, error)
	Register(ctx context.Context, req model.RegisterRequest) (string, error)
	Logout(ctx context.Context) string
}

// SessionResult tells the shell where to go next and what the session
// looks like after the call.
type SessionResult struct {
	Next    string                `json:"next"`
	Session model.SessionSnapshot `json:"session"`
}

type SessionHandler struct {
	session Session
}

func NewSessionHandler(session Session) *SessionHandler {
	return &SessionHandler{session: session}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.session.Snapshot())
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	next, err := h.session.Login(r.Context(), strings.TrimSpace(payload.Email), payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, SessionResult{Next: next, Session: h.session.Snapshot()})
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.Name = strings.TrimSpace(payload.Name)
	payload.Email = strings.TrimSpace(payload.Email)

	next, err := h.session.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, SessionResult{Next: next, Session: h.session.Snapshot()})
}

// Logout always succeeds; backend failures are logged by the session.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	next := h.session.Logout(r.Context())
	writeSuccess(w, http.StatusOK, SessionResult{Next: next, Session: h.session.Snapshot()})
}
