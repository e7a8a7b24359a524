package session

import "ride-console/internal/model"

const (
	PathHome         = "/"
	PathLogin        = "/login"
	PathRegister     = "/register"
	PathDashboard    = "/dashboard"
	PathSearchRides  = "/search-rides"
	PathUnauthorized = "/unauthorized"
)

// Policy decides where a role lands after authentication. It is the only
// place that mapping lives; login, register and the guest guard all use it.
type Policy struct {
	adminRoles map[string]struct{}
}

func NewPolicy(adminRoles []string) Policy {
	set := make(map[string]struct{}, len(adminRoles))
	for _, role := range adminRoles {
		if normalized := model.NormalizeRole(role); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return Policy{adminRoles: set}
}

// AdminRoles returns the admin-tagged roles, suitable for a guard.
func (p Policy) AdminRoles() []string {
	roles := make([]string, 0, len(p.adminRoles))
	for role := range p.adminRoles {
		roles = append(roles, role)
	}
	return roles
}

func (p Policy) IsAdmin(role string) bool {
	_, ok := p.adminRoles[model.NormalizeRole(role)]
	return ok
}

func (p Policy) LandingPage(role string) string {
	switch {
	case p.IsAdmin(role):
		return PathDashboard
	case model.NormalizeRole(role) == model.RoleUser:
		return PathSearchRides
	default:
		return PathHome
	}
}

// HasRole reports whether user satisfies required. An empty requirement
// always passes; a missing user never does otherwise.
func HasRole(user *model.User, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if user == nil {
		return false
	}

	role := model.NormalizeRole(user.Role)
	for _, candidate := range required {
		if model.NormalizeRole(candidate) == role {
			return true
		}
	}
	return false
}
