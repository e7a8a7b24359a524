package handler

import (
	"net/http"

	"ride-console/internal/confirm"
	"ride-console/internal/model"
	"ride-console/internal/moderation"
)

// ModerationMenu is what the shell needs to draw the moderation controls.
type ModerationMenu struct {
	Actions        []string         `json:"actions"`
	SuspendOptions []confirm.Option `json:"suspend_options"`
}

type ReportPage struct {
	ReportID int64          `json:"report_id"`
	Menu     ModerationMenu `json:"menu"`
}

func moderationMenu() ModerationMenu {
	return ModerationMenu{
		Actions: []string{
			moderation.NameDelete,
			moderation.NameBan,
			moderation.NameActivate,
			moderation.NameSuspend,
			moderation.NameWarn,
		},
		SuspendOptions: moderation.SuspendOptions,
	}
}

// PageHandler answers page routes with descriptors; the guards in front of
// it decide whether the page may be shown at all.
type PageHandler struct{}

func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

func (h *PageHandler) Static(name string, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, model.Page{Name: name, Path: r.URL.Path, Title: title})
	}
}

func (h *PageHandler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, model.Page{
		Name:  "admin-users",
		Path:  r.URL.Path,
		Title: "User management",
		Data:  moderationMenu(),
	})
}

func (h *PageHandler) ReportDetails(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.Page{
		Name:  "report-details",
		Path:  r.URL.Path,
		Title: "Report details",
		Data:  ReportPage{ReportID: reportID, Menu: moderationMenu()},
	})
}
