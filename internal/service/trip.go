// Package service contains the business logic for the TripTales API.
// TripService keeps one sync engine per signed-in owner and layers category
// listing, bulk moves and story generation on top of the engine's cache.
// No SQL lives here; services depend on interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/story"
	"github.com/pkordes/triptales/internal/tripsync"
)

// ListParams filters and paginates a trip listing.
// An empty Category lists every trip.
type ListParams struct {
	Category string
	Page     domain.PaginationParams
}

// CategorySummary is one category bucket and how many trips it holds.
type CategorySummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MoveFailure records one trip that could not be moved.
type MoveFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// MoveResult reports the outcome of a bulk category move. A move is a
// sequence of independent updates, so some trips may move and others not.
type MoveResult struct {
	Moved  []uuid.UUID   `json:"moved"`
	Failed []MoveFailure `json:"failed"`
}

// StoryRequest selects the trips a story is told from. IDs, when set, pick
// exact trips; Category narrows to one bucket. Both empty means every trip.
type StoryRequest struct {
	Category string
	IDs      []uuid.UUID
	Title    string
}

// TripService implements business logic for trip operations.
type TripService struct {
	store    tripsync.Store
	uploader tripsync.Uploader
	stories  *story.Generator
	log      *slog.Logger
	now      func() time.Time

	// binds collapses concurrent first loads of one engine into one fetch.
	binds singleflight.Group

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one owner's engine and its bookkeeping. lastUsed and cached
// are guarded by TripService.mu.
type session struct {
	engine      *tripsync.Engine
	unsubscribe func()
	lastUsed    time.Time
	cached      int
}

// Option configures a TripService.
type Option func(*TripService)

// WithClock replaces time.Now for record defaults and idle tracking.
func WithClock(now func() time.Time) Option {
	return func(s *TripService) { s.now = now }
}

// NewTripService constructs a TripService. A nil generator uses random
// phrase selection.
func NewTripService(store tripsync.Store, uploader tripsync.Uploader, gen *story.Generator, log *slog.Logger, opts ...Option) *TripService {
	if gen == nil {
		gen = story.NewGenerator(nil)
	}
	s := &TripService{
		store:    store,
		uploader: uploader,
		stories:  gen,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// engine returns the owner's engine, binding it on first use or after a
// failed first load. Concurrent callers share a single bind.
func (s *TripService) engine(ctx context.Context, ownerID string) (*tripsync.Engine, error) {
	if ownerID == "" {
		return nil, domain.ErrAuth
	}

	s.mu.Lock()
	sess, ok := s.sessions[ownerID]
	if !ok {
		sess = &session{engine: tripsync.NewEngine(s.store, s.uploader, s.log.With("owner_id", ownerID), s.now)}
		sess.unsubscribe = sess.engine.Subscribe(func(trips []domain.Trip) {
			s.mu.Lock()
			sess.cached = len(trips)
			s.mu.Unlock()
		})
		s.sessions[ownerID] = sess
	}
	sess.lastUsed = s.now()
	e := sess.engine
	s.mu.Unlock()

	if e.State() == tripsync.Ready {
		return e, nil
	}
	// Keyed by engine too, so a caller holding an engine replaced by Logout
	// never waits on the wrong bind.
	key := fmt.Sprintf("%s/%p", ownerID, e)
	_, err, _ := s.binds.Do(key, func() (any, error) {
		if e.State() == tripsync.Ready {
			return nil, nil
		}
		return nil, e.Bind(ctx, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("service.TripService.engine: %w", err)
	}
	return e, nil
}

// List returns one page of the owner's cached trips, newest first, and the
// total number of trips matching the filter.
func (s *TripService) List(ctx context.Context, ownerID string, p ListParams) ([]domain.Trip, int, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	trips := e.Trips()
	if p.Category != "" {
		trips = story.GroupByCategory(trips)[domain.CategoryOrDefault(p.Category)]
	}
	start, end := p.Page.Window(len(trips))
	page := make([]domain.Trip, end-start)
	copy(page, trips[start:end])
	return page, len(trips), nil
}

// Get returns one cached trip.
func (s *TripService) Get(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return domain.Trip{}, err
	}
	t, ok := e.Trip(id)
	if !ok {
		return domain.Trip{}, fmt.Errorf("service.TripService.Get: %w", domain.ErrNotFound)
	}
	return t, nil
}

// Create validates and persists a new trip.
func (s *TripService) Create(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return domain.Trip{}, err
	}
	return e.Create(ctx, in)
}

// Update validates and overwrites an existing trip.
func (s *TripService) Update(ctx context.Context, ownerID string, id uuid.UUID, in domain.TripInput) (domain.Trip, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return domain.Trip{}, err
	}
	return e.Update(ctx, id, in)
}

// Delete removes a trip.
func (s *TripService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return err
	}
	return e.Delete(ctx, id)
}

// Refresh re-fetches the owner's trips and returns the resulting cache.
// A failed fetch keeps the previous cache.
func (s *TripService) Refresh(ctx context.Context, ownerID string) ([]domain.Trip, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	e.Refresh(ctx)
	return e.Trips(), nil
}

// Logout unbinds and forgets the owner's engine.
func (s *TripService) Logout(ownerID string) {
	if s.drop(ownerID) {
		s.log.Info("session closed", "owner_id", ownerID)
	}
}

// EvictIdle unbinds and forgets every engine unused for longer than maxIdle
// and returns how many were dropped. The next request rebinds from the
// store.
func (s *TripService) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var idle []string
	for owner, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, owner)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, owner := range idle {
		if s.dropIf(owner, func(sess *session) bool { return sess.lastUsed.Before(cutoff) }) {
			n++
		}
	}
	if n > 0 {
		s.log.Info("idle sessions evicted", "count", n, "max_idle", maxIdle.String())
	}
	return n
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (s *TripService) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.EvictIdle(maxIdle)
		}
	}
}

// Sessions returns the number of owners with a live engine.
func (s *TripService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CachedTrips returns the number of trips held across every engine cache.
func (s *TripService) CachedTrips() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, sess := range s.sessions {
		total += sess.cached
	}
	return total
}

func (s *TripService) drop(ownerID string) bool {
	return s.dropIf(ownerID, func(*session) bool { return true })
}

// dropIf removes the owner's session when evict reports true, then unbinds
// the engine outside the lock.
func (s *TripService) dropIf(ownerID string, evict func(*session) bool) bool {
	s.mu.Lock()
	sess, ok := s.sessions[ownerID]
	if !ok || !evict(sess) {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, ownerID)
	s.mu.Unlock()

	sess.unsubscribe()
	sess.engine.Unbind()
	return true
}

// MoveToCategory sets category on every trip in ids, one update at a time.
// Failures are collected per id; the call itself fails only when nothing
// could be attempted.
func (s *TripService) MoveToCategory(ctx context.Context, ownerID string, ids []uuid.UUID, category string) (MoveResult, error) {
	if len(ids) == 0 {
		return MoveResult{}, fmt.Errorf("%w: at least one trip id is required", domain.ErrValidation)
	}
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return MoveResult{}, err
	}

	res := MoveResult{Moved: []uuid.UUID{}, Failed: []MoveFailure{}}
	for _, id := range ids {
		t, ok := e.Trip(id)
		if !ok {
			res.Failed = append(res.Failed, MoveFailure{ID: id, Error: domain.ErrNotFound.Error()})
			continue
		}
		in := inputFromTrip(t)
		in.Category = category
		if _, err := e.Update(ctx, id, in); err != nil {
			s.log.Warn("category move failed", "trip_id", id, "error", err)
			res.Failed = append(res.Failed, MoveFailure{ID: id, Error: err.Error()})
			continue
		}
		res.Moved = append(res.Moved, id)
	}
	return res, nil
}

// Categories returns every category with its trip count, sorted by name.
func (s *TripService) Categories(ctx context.Context, ownerID string) ([]CategorySummary, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	groups := story.GroupByCategory(e.Trips())
	out := make([]CategorySummary, 0, len(groups))
	for _, name := range story.Categories(groups) {
		out = append(out, CategorySummary{Name: name, Count: len(groups[name])})
	}
	return out, nil
}

// Story tells a story from a snapshot of the owner's cache.
func (s *TripService) Story(ctx context.Context, ownerID string, req StoryRequest) (domain.Story, error) {
	e, err := s.engine(ctx, ownerID)
	if err != nil {
		return domain.Story{}, err
	}

	trips := e.Trips()
	if len(req.IDs) > 0 {
		picked := make([]domain.Trip, 0, len(req.IDs))
		for _, id := range req.IDs {
			i := slices.IndexFunc(trips, func(t domain.Trip) bool { return t.ID == id })
			if i < 0 {
				return domain.Story{}, fmt.Errorf("service.TripService.Story: trip %s: %w", id, domain.ErrNotFound)
			}
			picked = append(picked, trips[i])
		}
		trips = picked
	}
	if req.Category != "" {
		trips = story.GroupByCategory(trips)[domain.CategoryOrDefault(req.Category)]
	}
	return s.stories.Generate(trips, req.Title), nil
}

// inputFromTrip rebuilds the editable fields of t, keeping its image.
func inputFromTrip(t domain.Trip) domain.TripInput {
	in := domain.TripInput{
		Title:    t.Title,
		Note:     t.Note,
		Date:     t.Date,
		Location: t.Location,
		Category: t.Category,
	}
	if t.HasImage() {
		in.Photo = &domain.Photo{URL: *t.Image}
		if t.ImageAssetID != nil {
			in.ImageAssetID = *t.ImageAssetID
		}
	}
	return in
}
