package handler

import (
	"net/http"

	"github.com/pkordes/triptales/internal/middleware"
)

// Logout handles POST /session/logout. The caller's cache is dropped; the
// bearer token itself stays valid until it expires.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.trips.Logout(middleware.OwnerFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
