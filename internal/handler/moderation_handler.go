package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ride-console/internal/confirm"
	"ride-console/internal/event"
	"ride-console/internal/model"
	"ride-console/internal/moderation"
	"ride-console/pkg/apierror"
)

const (
	usersPagePath   = "/admin/users"
	reportsPagePath = "/admin/reports"
)

type Dispatcher interface {
	Dispatch(target moderation.UserTarget, action moderation.Action, refresh moderation.RefreshFunc) (confirm.Request, error)
	DispatchForReport(target moderation.ReportTarget, action moderation.Action, done moderation.RefreshFunc) (confirm.Request, error)
}

// ModerationHandler opens moderation confirmations. Refreshes are pushed to
// the shell as refresh.requested events once a commit succeeds.
type ModerationHandler struct {
	dispatcher Dispatcher
	bus        event.Bus
}

func NewModerationHandler(dispatcher Dispatcher, bus event.Bus) *ModerationHandler {
	if bus == nil {
		bus = event.Discard{}
	}
	return &ModerationHandler{dispatcher: dispatcher, bus: bus}
}

func (h *ModerationHandler) UserAction(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.ModerationRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	action, err := moderation.ParseAction(payload.Action, payload.Duration)
	if err != nil {
		writeError(w, err)
		return
	}

	req, err := h.dispatcher.Dispatch(moderation.UserTarget{ID: userID}, action, h.refresh(model.RefreshHint{Path: usersPagePath}))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, req)
}

func (h *ModerationHandler) ReportAction(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.ReportModerationRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	action, err := moderation.ParseAction(payload.Action, payload.Duration)
	if err != nil {
		writeError(w, err)
		return
	}

	target := moderation.ReportTarget{ReportID: reportID, UserID: payload.UserID}
	req, err := h.dispatcher.DispatchForReport(target, action, h.refresh(model.RefreshHint{Path: reportsPagePath, Navigate: true}))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, req)
}

func (h *ModerationHandler) refresh(hint model.RefreshHint) moderation.RefreshFunc {
	return func(context.Context) {
		h.bus.Publish(event.New(event.TypeRefreshRequested, hint))
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New("BAD_REQUEST", "invalid id", raw, http.StatusBadRequest)
	}
	return id, nil
}
