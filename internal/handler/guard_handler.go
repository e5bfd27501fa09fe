package handler

import (
	"net/http"

	"go-art-session/internal/guard"
)

type GuardHandler struct {
	sessions snapshotSource
}

func NewGuardHandler(sessions snapshotSource) *GuardHandler {
	return &GuardHandler{sessions: sessions}
}

// Decide answers whether the UI may render a route for ?roles=ADMIN,ARTIST.
func (h *GuardHandler) Decide(w http.ResponseWriter, r *http.Request) {
	roles := guard.ParseRoles(r.URL.Query().Get("roles"))
	writeSuccess(w, http.StatusOK, guard.Decide(h.sessions.Session(), roles), "")
}
