// Package tripsync keeps an in-memory cache of one owner's trips consistent
// with the record store. Mutations go store-first (after an optional photo
// upload) and patch the cache only once the store call has succeeded.
//
// The engine does not serialize concurrent mutations. The mutex guards the
// cache memory only; overlapping Create/Update/Delete calls may interleave
// their network calls.
package tripsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/triptales/internal/domain"
)

// Store is the per-owner record collection. repo.TripRepo satisfies it.
type Store interface {
	List(ctx context.Context, ownerID string) ([]domain.Trip, error)
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error)
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// Uploader resolves a photo into a hosted asset. *upload.Pipeline satisfies it.
type Uploader interface {
	Upload(ctx context.Context, photo domain.Photo) (domain.Asset, error)
}

// State is the engine's readiness.
type State int

const (
	Unbound State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine owns the trip cache for at most one bound owner at a time.
type Engine struct {
	store    Store
	uploader Uploader
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	owner  string
	gen    uint64 // bumped on every bind and unbind
	state  State
	trips  []domain.Trip // newest CreatedAt first
	subs   map[int]func([]domain.Trip)
	nextID int
}

// NewEngine returns an unbound engine. A nil now defaults to time.Now.
func NewEngine(store Store, uploader Uploader, log *slog.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		uploader: uploader,
		log:      log,
		now:      now,
		subs:     make(map[int]func([]domain.Trip)),
	}
}

// State reports the current readiness.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OwnerID returns the bound owner, or "" when unbound.
func (e *Engine) OwnerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// Trips returns a copy of the cache, newest first.
func (e *Engine) Trips() []domain.Trip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.trips)
}

// Trip returns one cached trip.
func (e *Engine) Trip(id uuid.UUID) (domain.Trip, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(id); i >= 0 {
		return e.trips[i], true
	}
	return domain.Trip{}, false
}

// Subscribe registers fn to receive a cache snapshot after every change.
// fn is called without the engine lock held. The returned func cancels.
func (e *Engine) Subscribe(fn func([]domain.Trip)) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Bind attaches the engine to ownerID and loads its trips. An empty id
// unbinds. Rebinding the current owner reloads. A different owner's cache
// is dropped before the fetch starts.
//
// A failed fetch is logged and returned; the cache and readiness stay as
// they were before the fetch.
func (e *Engine) Bind(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		e.Unbind()
		return nil
	}

	e.mu.Lock()
	changed := false
	if e.owner != ownerID {
		changed = len(e.trips) > 0
		e.owner = ownerID
		e.trips = nil
		e.state = Loading
	}
	e.gen++
	gen := e.gen
	snapshot := e.snapshotLocked(changed)
	e.mu.Unlock()
	e.notify(snapshot)

	return e.load(ctx, ownerID, gen)
}

// Unbind detaches the owner and clears the cache.
func (e *Engine) Unbind() {
	e.mu.Lock()
	if e.state == Unbound && e.owner == "" {
		e.mu.Unlock()
		return
	}
	e.owner = ""
	e.gen++
	e.state = Unbound
	e.trips = nil
	snapshot := e.snapshotLocked(true)
	e.mu.Unlock()
	e.notify(snapshot)
}

// Refresh re-fetches the owner's trips and replaces the cache. Failures are
// logged and the prior cache is kept. No-op when unbound.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	owner, gen := e.owner, e.gen
	e.mu.Unlock()
	if owner == "" {
		return
	}
	_ = e.load(ctx, owner, gen)
}

func (e *Engine) load(ctx context.Context, ownerID string, gen uint64) error {
	trips, err := e.store.List(ctx, ownerID)
	if err != nil {
		e.log.Error("trip fetch failed", "owner_id", ownerID, "error", err)
		return storeErr("tripsync.Engine.load", err)
	}

	loaded := make([]domain.Trip, 0, len(trips))
	for _, t := range trips {
		if t.Image != nil && domain.IsTransientHandle(*t.Image) {
			e.log.Warn("skipping trip with transient image handle", "trip_id", t.ID)
			continue
		}
		loaded = append(loaded, t)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		e.log.Debug("discarding stale fetch", "owner_id", ownerID)
		return nil
	}
	e.trips = loaded
	e.state = Ready
	snapshot := e.snapshotLocked(true)
	e.mu.Unlock()
	e.notify(snapshot)
	return nil
}

// Create uploads the photo if it is not already remote, writes the trip and
// prepends it to the cache. On any failure neither store nor cache change.
func (e *Engine) Create(ctx context.Context, in domain.TripInput) (domain.Trip, error) {
	owner, gen, err := e.bound()
	if err != nil {
		return domain.Trip{}, err
	}
	in = in.Normalize(e.now())
	if in.Title == "" {
		return domain.Trip{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	trip := domain.Trip{
		OwnerID:  owner,
		Title:    in.Title,
		Note:     in.Note,
		Date:     in.Date,
		Location: in.Location,
		Category: in.Category,
	}
	if in.Photo != nil {
		asset, err := e.resolvePhoto(ctx, *in.Photo, in.ImageAssetID)
		if err != nil {
			return domain.Trip{}, err
		}
		trip.Image, trip.ImageAssetID = &asset.URL, &asset.ID
	}

	created, err := e.store.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, storeErr("tripsync.Engine.Create", err)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return created, nil
	}
	e.trips = slices.Insert(e.trips, 0, created)
	snapshot := e.snapshotLocked(true)
	e.mu.Unlock()
	e.notify(snapshot)

	e.log.Info("trip created", "owner_id", owner, "trip_id", created.ID)
	return created, nil
}

// Update overwrites every mutable field of trip id.
//
// A nil Photo clears the image. A remote URL equal to the stored one keeps
// the stored asset id; any other remote URL takes in.ImageAssetID. A local
// photo is uploaded and replaces the old asset, which is logged and left
// on the host. A stored trip missing from the cache is added to it.
func (e *Engine) Update(ctx context.Context, id uuid.UUID, in domain.TripInput) (domain.Trip, error) {
	owner, gen, err := e.bound()
	if err != nil {
		return domain.Trip{}, err
	}
	in = in.Normalize(e.now())
	if in.Title == "" {
		return domain.Trip{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	existing, err := e.store.GetByID(ctx, owner, id)
	if err != nil {
		return domain.Trip{}, storeErr("tripsync.Engine.Update", err)
	}

	trip := domain.Trip{
		ID:       id,
		OwnerID:  owner,
		Title:    in.Title,
		Note:     in.Note,
		Date:     in.Date,
		Location: in.Location,
		Category: in.Category,
	}
	switch {
	case in.Photo == nil:
	case in.Photo.IsRemote() && existing.HasImage() && *existing.Image == in.Photo.URL:
		trip.Image, trip.ImageAssetID = existing.Image, existing.ImageAssetID
		if trip.ImageAssetID == nil {
			trip.ImageAssetID = new(string)
		}
	default:
		asset, err := e.resolvePhoto(ctx, *in.Photo, in.ImageAssetID)
		if err != nil {
			return domain.Trip{}, err
		}
		if !in.Photo.IsRemote() && existing.ImageAssetID != nil && *existing.ImageAssetID != "" {
			e.log.Info("previous image asset replaced; left on host for backend deletion",
				"trip_id", id, "asset_id", *existing.ImageAssetID)
		}
		trip.Image, trip.ImageAssetID = &asset.URL, &asset.ID
	}

	updated, err := e.store.Update(ctx, trip)
	if err != nil {
		return domain.Trip{}, storeErr("tripsync.Engine.Update", err)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return updated, nil
	}
	if i := e.indexOf(id); i >= 0 {
		e.trips[i] = updated
	} else {
		// Written by another session since the last fetch: slot it in at
		// its created_at position so the cache matches the store.
		i = slices.IndexFunc(e.trips, func(t domain.Trip) bool { return t.CreatedAt.Before(updated.CreatedAt) })
		if i < 0 {
			i = len(e.trips)
		}
		e.trips = slices.Insert(e.trips, i, updated)
	}
	snapshot := e.snapshotLocked(true)
	e.mu.Unlock()
	e.notify(snapshot)

	e.log.Info("trip updated", "owner_id", owner, "trip_id", id)
	return updated, nil
}

// Delete removes trip id from the store, then from the cache. The image
// asset is never deleted.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	owner, gen, err := e.bound()
	if err != nil {
		return err
	}

	if err := e.store.Delete(ctx, owner, id); err != nil {
		return storeErr("tripsync.Engine.Delete", err)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return nil
	}
	changed := false
	if i := e.indexOf(id); i >= 0 {
		e.trips = slices.Delete(e.trips, i, i+1)
		changed = true
	}
	snapshot := e.snapshotLocked(changed)
	e.mu.Unlock()
	e.notify(snapshot)

	e.log.Info("trip deleted", "owner_id", owner, "trip_id", id)
	return nil
}

// resolvePhoto returns the hosted asset for photo. Remote URLs pass through
// with assetID; anything else goes through the uploader.
func (e *Engine) resolvePhoto(ctx context.Context, photo domain.Photo, assetID string) (domain.Asset, error) {
	if photo.IsRemote() {
		return domain.Asset{URL: photo.URL, ID: assetID}, nil
	}
	asset, err := e.uploader.Upload(ctx, photo)
	if err != nil {
		e.log.Error("photo upload failed", "error", err)
		if !errors.Is(err, domain.ErrUpload) {
			err = &domain.UploadError{Cause: err}
		}
		return domain.Asset{}, err
	}
	return asset, nil
}

func (e *Engine) bound() (owner string, gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.owner == "" {
		return "", 0, domain.ErrAuth
	}
	return e.owner, e.gen, nil
}

// indexOf must be called with mu held.
func (e *Engine) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(e.trips, func(t domain.Trip) bool { return t.ID == id })
}

// snapshotLocked returns the listeners and a cache copy to notify, or nil
// when nothing changed. Must be called with mu held.
func (e *Engine) snapshotLocked(changed bool) *notification {
	if !changed || len(e.subs) == 0 {
		return nil
	}
	n := &notification{trips: slices.Clone(e.trips)}
	for _, fn := range e.subs {
		n.subs = append(n.subs, fn)
	}
	return n
}

type notification struct {
	subs  []func([]domain.Trip)
	trips []domain.Trip
}

func (e *Engine) notify(n *notification) {
	if n == nil {
		return
	}
	for _, fn := range n.subs {
		fn(slices.Clone(n.trips))
	}
}

// storeErr keeps domain.ErrNotFound as is and tags everything else ErrStore.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}
