package model

import "strings"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

const (
	StatusActive    = "active"
	StatusBanned    = "banned"
	StatusSuspended = "suspended"
	StatusResolved  = "resolved"
)

// User is the record returned by GET /user. Role is an open string.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// AuthResponse is the body of /login and /register. User is optional.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// StatusChange is the body of POST /admin/users/{id}/status. The backend
// expects PATCH semantics through method spoofing.
type StatusChange struct {
	Method          string `json:"_method"`
	Status          string `json:"status"`
	SuspendDuration *int   `json:"suspend_duration,omitempty"`
}

func NewStatusChange(status string) StatusChange {
	return StatusChange{Method: "PATCH", Status: status}
}

func (c StatusChange) WithDuration(days int) StatusChange {
	c.SuspendDuration = &days
	return c
}
