package model

import "time"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ModerationEntry is one committed moderation action as recorded in the
// moderation log.
type ModerationEntry struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	ActorID      int64     `json:"actor_id"`
	ActorRole    string    `json:"actor_role"`
	TargetUserID int64     `json:"target_user_id"`
	ReportID     *int64    `json:"report_id,omitempty"`
	Duration     *int      `json:"duration,omitempty"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type ModerationQuery struct {
	TargetUserID int64
	Limit        int
}
