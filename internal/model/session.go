package model

// SessionState is the lifecycle state of the operator session.
type SessionState string

const (
	SessionAnonymous     SessionState = "anonymous"
	SessionChecking      SessionState = "checking"
	SessionAuthenticated SessionState = "authenticated"
)

// SessionSnapshot is a copy of the session taken under lock. The token
// itself is never exposed; HasToken reports whether one is held.
type SessionSnapshot struct {
	State         SessionState `json:"state"`
	User          *User        `json:"user,omitempty"`
	HasToken      bool         `json:"has_token"`
	Loading       bool         `json:"loading"`
	Authenticated bool         `json:"authenticated"`
}

func (s SessionSnapshot) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
