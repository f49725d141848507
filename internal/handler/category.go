package handler

import (
	"net/http"

	"github.com/pkordes/triptales/internal/middleware"
)

// ListCategories handles GET /categories.
// Returns [{"name": ..., "count": ...}] sorted by name.
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.trips.Categories(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		s.serviceError(w, r, err, "categories not found")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
