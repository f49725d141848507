package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/triptales/internal/middleware"
	"github.com/pkordes/triptales/internal/service"
)

// StoryRequest is the body of POST /stories. All fields are optional; an
// empty body tells the story of every trip.
type StoryRequest struct {
	Category string      `json:"category"`
	IDs      []uuid.UUID `json:"ids"`
	Title    string      `json:"title"`
}

// CreateStory handles POST /stories. Stories are generated on demand and
// never stored.
func (s *Server) CreateStory(w http.ResponseWriter, r *http.Request) {
	var body StoryRequest
	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			s.decodeError(w, r, fmt.Errorf("invalid JSON body: %w", err))
			return
		}
	}

	story, err := s.trips.Story(r.Context(), middleware.OwnerFromContext(r.Context()), service.StoryRequest{
		Category: body.Category,
		IDs:      body.IDs,
		Title:    body.Title,
	})
	if err != nil {
		s.serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, story)
}
