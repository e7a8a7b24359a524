package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ride-console/internal/confirm"
	"ride-console/internal/middleware"
	"ride-console/internal/model"
)

type Confirmations interface {
	PendingFor(owner int64) (confirm.Request, bool)
	Busy() bool
	Confirm(id string, owner int64, value *int) error
	Cancel(id string, owner int64) error
}

type ConfirmationState struct {
	State   confirm.State    `json:"state"`
	Request *confirm.Request `json:"request,omitempty"`
}

// ConfirmationHandler exposes the pending confirmation to the user that
// opened it. The caller is the user the guard admitted.
type ConfirmationHandler struct {
	engine Confirmations
}

func NewConfirmationHandler(engine Confirmations) *ConfirmationHandler {
	return &ConfirmationHandler{engine: engine}
}

func (h *ConfirmationHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.state(owner))
}

// Confirm accepts the pending request. The commit runs in the background;
// its outcome arrives as a notification event.
func (h *ConfirmationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	owner, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.ConfirmRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.Confirm(chi.URLParam(r, "id"), owner, payload.Value); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, h.state(owner))
}

func (h *ConfirmationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.Cancel(chi.URLParam(r, "id"), owner); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.state(owner))
}

func (h *ConfirmationHandler) state(owner int64) ConfirmationState {
	if req, ok := h.engine.PendingFor(owner); ok {
		return ConfirmationState{State: confirm.StateOpen, Request: &req}
	}
	if h.engine.Busy() {
		return ConfirmationState{State: confirm.StateResolving}
	}
	return ConfirmationState{State: confirm.StateIdle}
}

func callerID(r *http.Request) (int64, error) {
	snap, ok := middleware.SessionFromContext(r.Context())
	if !ok || !snap.Authenticated || snap.User == nil {
		return 0, model.ErrUnauthorized
	}
	return snap.User.ID, nil
}
