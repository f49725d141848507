package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/middleware"
	"github.com/pkordes/triptales/internal/service"
)

// multipartMemory is the in-memory share of a multipart form; larger photo
// parts spill to temp files. The body limit middleware caps the total.
const multipartMemory = 8 << 20

// TripRequest is the JSON body of POST /trips and PUT /trips/{id}.
// Image is a remote URL, a data: URI or a server-side file locator; an
// empty Image means no photo (on update: the photo is removed).
type TripRequest struct {
	Title        string `json:"title"`
	Note         string `json:"note"`
	Date         string `json:"date"`
	Location     string `json:"location"`
	Category     string `json:"category"`
	Image        string `json:"image"`
	ImageAssetID string `json:"image_asset_id"`
}

// Trip is the JSON representation of a trip.
type Trip struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Note         string    `json:"note"`
	Date         time.Time `json:"date"`
	Location     string    `json:"location"`
	Category     string    `json:"category"`
	Image        *string   `json:"image"`
	ImageAssetID *string   `json:"image_asset_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// MoveRequest is the body of POST /trips/category.
type MoveRequest struct {
	IDs      []uuid.UUID `json:"ids"`
	Category string      `json:"category"`
}

// ListTrips handles GET /trips.
// Supports ?category=, ?page= and ?limit= (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	var (
		page, limit *int
		category    string
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &page); err != nil {
		requestError(w, fmt.Sprintf("invalid page: %v", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		requestError(w, fmt.Sprintf("invalid limit: %v", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "category", q, &category); err != nil {
		requestError(w, fmt.Sprintf("invalid category: %v", err))
		return
	}

	params := domain.NewPaginationParams(page, limit)
	trips, total, err := s.trips.List(r.Context(), middleware.OwnerFromContext(r.Context()), service.ListParams{
		Category: category,
		Page:     params,
	})
	if err != nil {
		s.serviceError(w, r, err, "trips not found")
		return
	}

	writeJSON(w, http.StatusOK, TripList{
		Data:       tripsToResponse(trips),
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// CreateTrip handles POST /trips. The body is JSON or multipart/form-data
// with the photo in a "photo" file part.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTripInput(r)
	if err != nil {
		s.decodeError(w, r, err)
		return
	}

	created, err := s.trips.Create(r.Context(), middleware.OwnerFromContext(r.Context()), in)
	if err != nil {
		s.serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	trip, err := s.trips.Get(r.Context(), middleware.OwnerFromContext(r.Context()), id)
	if err != nil {
		s.serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip handles PUT /trips/{id}. Every editable field is replaced.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, err := decodeTripInput(r)
	if err != nil {
		s.decodeError(w, r, err)
		return
	}

	updated, err := s.trips.Update(r.Context(), middleware.OwnerFromContext(r.Context()), id, in)
	if err != nil {
		s.serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// DeleteTrip handles DELETE /trips/{id}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.trips.Delete(r.Context(), middleware.OwnerFromContext(r.Context()), id); err != nil {
		s.serviceError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshTrips handles POST /trips/refresh and returns the reloaded cache.
func (s *Server) RefreshTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.trips.Refresh(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		s.serviceError(w, r, err, "trips not found")
		return
	}
	writeJSON(w, http.StatusOK, tripsToResponse(trips))
}

// MoveTrips handles POST /trips/category. Partial failure is reported in
// the body with status 200.
func (s *Server) MoveTrips(w http.ResponseWriter, r *http.Request) {
	var body MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.decodeError(w, r, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	res, err := s.trips.MoveToCategory(r.Context(), middleware.OwnerFromContext(r.Context()), body.IDs, body.Category)
	if err != nil {
		s.serviceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- request decoding -------------------------------------------------------

// pathID binds the {id} path parameter, answering 422 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		requestError(w, fmt.Sprintf("invalid trip id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

// decodeError answers a request whose body could not be decoded.
func (s *Server) decodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.serviceError(w, r, err, "")
		return
	}
	requestError(w, err.Error())
}

// decodeTripInput reads a TripInput from a JSON or multipart body.
func decodeTripInput(r *http.Request) (domain.TripInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipartTrip(r)
	}

	if r.Body == nil || r.Body == http.NoBody {
		return domain.TripInput{}, errors.New("request body is required")
	}
	var body TripRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.TripInput{}, errors.New("request body is required")
		}
		return domain.TripInput{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	return body.toInput(nil)
}

func decodeMultipartTrip(r *http.Request) (domain.TripInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return domain.TripInput{}, fmt.Errorf("invalid multipart body: %w", err)
	}
	body := TripRequest{
		Title:        r.FormValue("title"),
		Note:         r.FormValue("note"),
		Date:         r.FormValue("date"),
		Location:     r.FormValue("location"),
		Category:     r.FormValue("category"),
		Image:        r.FormValue("image"),
		ImageAssetID: r.FormValue("image_asset_id"),
	}

	file, header, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return body.toInput(nil)
	case err != nil:
		return domain.TripInput{}, fmt.Errorf("invalid photo part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.TripInput{}, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) == 0 {
		return domain.TripInput{}, errors.New("photo part is empty")
	}
	return body.toInput(&domain.Photo{Data: data, Filename: header.Filename})
}

// toInput converts the request into a TripInput. An uploaded photo wins
// over the Image field.
func (b TripRequest) toInput(uploaded *domain.Photo) (domain.TripInput, error) {
	date, err := parseDate(b.Date)
	if err != nil {
		return domain.TripInput{}, err
	}
	in := domain.TripInput{
		Title:        b.Title,
		Note:         b.Note,
		Date:         date,
		Location:     b.Location,
		Category:     b.Category,
		Photo:        uploaded,
		ImageAssetID: b.ImageAssetID,
	}
	if in.Photo == nil && strings.TrimSpace(b.Image) != "" {
		in.Photo = &domain.Photo{URL: strings.TrimSpace(b.Image)}
	}
	return in, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. An
// empty string yields the zero time, which the engine replaces with now.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
}

// --- mapping helpers --------------------------------------------------------

// tripToResponse converts a domain.Trip into its JSON representation.
func tripToResponse(t domain.Trip) Trip {
	return Trip{
		ID:           t.ID,
		Title:        t.Title,
		Note:         t.Note,
		Date:         t.Date,
		Location:     t.Location,
		Category:     t.Category,
		Image:        t.Image,
		ImageAssetID: t.ImageAssetID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// tripsToResponse never returns nil so empty lists encode as [].
func tripsToResponse(trips []domain.Trip) []Trip {
	out := make([]Trip, len(trips))
	for i, t := range trips {
		out[i] = tripToResponse(t)
	}
	return out
}
