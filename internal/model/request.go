package model

// ModerationRequest is the body of POST /api/admin/users/{id}/actions.
type ModerationRequest struct {
	Action   string `json:"action"`
	Duration *int   `json:"duration,omitempty"`
}

// ReportModerationRequest is the body of POST /api/admin/reports/{id}/actions.
type ReportModerationRequest struct {
	Action   string `json:"action"`
	UserID   int64  `json:"user_id"`
	Duration *int   `json:"duration,omitempty"`
}

// ConfirmRequest carries the value captured by the dialog's extra input.
// A nil Value keeps the offered default.
type ConfirmRequest struct {
	Value *int `json:"value,omitempty"`
}
