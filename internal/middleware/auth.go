package middleware

import (
	"net/http"

	"go-art-session/internal/guard"
	"go-art-session/internal/model"
)

type sessionSource interface {
	Session() model.Session
}

// AuthMiddleware gates local endpoints on the agent's own session.
type AuthMiddleware struct {
	sessions sessionSource
}

func NewAuthMiddleware(sessions sessionSource) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.RequireRoles()(next)
}

// RequireRoles lets the request through only when guard.Decide allows it.
// With no roles any authenticated session passes.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Decide(m.sessions.Session(), allowedRoles)

			switch decision.Action {
			case guard.ActionAllow:
				next.ServeHTTP(w, r)
			case guard.ActionWait:
				w.Header().Set("Retry-After", "1")
				writeFailure(w, http.StatusServiceUnavailable, "SESSION_LOADING", decision.Reason)
			default:
				if decision.Redirect == guard.LoginPath {
					writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", decision.Reason)
					return
				}
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", decision.Reason)
			}
		})
	}
}
