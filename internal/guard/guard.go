// Package guard decides whether a UI route may render for the current session.
package guard

import (
	"strings"

	"go-art-session/internal/model"
)

type Action string

const (
	ActionAllow    Action = "allow"
	ActionWait     Action = "wait"
	ActionRedirect Action = "redirect"
)

const LoginPath = "/login"

type Decision struct {
	Action   Action `json:"action"`
	Redirect string `json:"redirect,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Decide gates a route on authentication and, when roles is non-empty, on the
// user's role. A loading session asks the caller to wait instead of redirecting.
func Decide(session model.Session, roles []model.Role) Decision {
	if session.Loading || session.State == model.StateLoading {
		return Decision{Action: ActionWait, Reason: "session is loading"}
	}

	if !session.IsAuthenticated || session.User == nil || session.Token == "" {
		return Decision{Action: ActionRedirect, Redirect: LoginPath, Reason: "authentication required"}
	}

	if len(roles) > 0 && !hasRole(session.User.Role, roles) {
		return Decision{
			Action:   ActionRedirect,
			Redirect: DashboardPath(session.User.Role),
			Reason:   "role not permitted",
		}
	}

	return Decision{Action: ActionAllow}
}

// DashboardPath is the landing page for a role. Unknown roles go to login.
func DashboardPath(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return "/dashboard/admin"
	case model.RoleArtist:
		return "/dashboard/artist"
	case model.RoleCustomer:
		return "/dashboard/customer"
	default:
		return LoginPath
	}
}

// ParseRoles reads a comma separated role list, skipping blanks.
func ParseRoles(raw string) []model.Role {
	var roles []model.Role
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, _ := model.ParseRole(part)
		roles = append(roles, role)
	}
	return roles
}

func hasRole(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
