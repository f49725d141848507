// Package handler implements the HTTP handlers for the TripTales API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, story.go, etc.) but share the same Server struct
// so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/service"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	List(ctx context.Context, ownerID string, p service.ListParams) ([]domain.Trip, int, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error)
	Create(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error)
	Update(ctx context.Context, ownerID string, id uuid.UUID, in domain.TripInput) (domain.Trip, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	Refresh(ctx context.Context, ownerID string) ([]domain.Trip, error)
	Logout(ownerID string)
	MoveToCategory(ctx context.Context, ownerID string, ids []uuid.UUID, category string) (service.MoveResult, error)
	Categories(ctx context.Context, ownerID string) ([]service.CategorySummary, error)
	Story(ctx context.Context, ownerID string, req service.StoryRequest) (domain.Story, error)
}

// ExportServicer defines the export operation the export handler depends on.
type ExportServicer interface {
	Export(ctx context.Context, ownerID string) ([]domain.ExportRow, error)
}

// Server holds the dependencies of every handler.
type Server struct {
	trips  TripServicer
	export ExportServicer
	log    *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripServicer, export ExportServicer, log *slog.Logger) *Server {
	return &Server{trips: trips, export: export, log: log}
}

// Routes returns the API router. Public routes are /healthz and
// /openapi.yaml; everything else runs behind auth, which must put the owner
// id into the request context.
func (s *Server) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/trips", s.ListTrips)
		r.Post("/trips", s.CreateTrip)
		r.Post("/trips/refresh", s.RefreshTrips)
		r.Post("/trips/category", s.MoveTrips)
		r.Get("/trips/{id}", s.GetTrip)
		r.Put("/trips/{id}", s.UpdateTrip)
		r.Delete("/trips/{id}", s.DeleteTrip)

		r.Get("/categories", s.ListCategories)
		r.Post("/stories", s.CreateStory)
		r.Get("/export", s.GetExport)
		r.Post("/session/logout", s.Logout)
	})

	return r
}
