package handler

import (
	"context"
	"net/http"
	"strconv"

	"ride-console/internal/model"
	"ride-console/pkg/apierror"
)

type ModerationLog interface {
	Recent(ctx context.Context, query model.ModerationQuery) ([]model.ModerationEntry, error)
}

type ModerationLogHandler struct {
	log ModerationLog
}

func NewModerationLogHandler(log ModerationLog) *ModerationLogHandler {
	return &ModerationLogHandler{log: log}
}

// List returns recent moderation entries, newest first. It answers 404 when
// the console runs without a database.
func (h *ModerationLogHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.log == nil {
		writeError(w, apierror.New("NOT_FOUND", "moderation log is not enabled", "", http.StatusNotFound))
		return
	}

	query := model.ModerationQuery{}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, apierror.New("BAD_REQUEST", "invalid user_id", raw, http.StatusBadRequest))
			return
		}
		query.TargetUserID = id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apierror.New("BAD_REQUEST", "invalid limit", raw, http.StatusBadRequest))
			return
		}
		query.Limit = limit
	}

	entries, err := h.log.Recent(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries)
}
