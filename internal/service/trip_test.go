package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/repo"
	"github.com/pkordes/triptales/internal/service"
	"github.com/pkordes/triptales/internal/story"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	list    func(ctx context.Context, ownerID string) ([]domain.Trip, error)
	create  func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID func(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error)
	update  func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	delete  func(ctx context.Context, ownerID string, id uuid.UUID) error
}

func (m *mockTripRepo) List(ctx context.Context, ownerID string) ([]domain.Trip, error) {
	return m.list(ctx, ownerID)
}
func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, ownerID, id)
}
func (m *mockTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.update(ctx, trip)
}
func (m *mockTripRepo) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	return m.delete(ctx, ownerID, id)
}

// compile-time check: mockTripRepo must satisfy repo.TripRepo.
var _ repo.TripRepo = (*mockTripRepo)(nil)

// mockUploader is a test double for the photo uploader.
type mockUploader struct {
	upload func(ctx context.Context, p domain.Photo) (domain.Asset, error)
}

func (m *mockUploader) Upload(ctx context.Context, p domain.Photo) (domain.Asset, error) {
	return m.upload(ctx, p)
}

// firstPicker makes story prose deterministic.
type firstPicker struct{}

func (firstPicker) Pick(int) int { return 0 }

// ---- helpers ---------------------------------------------------------------

const owner = "user-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRepo returns a mockTripRepo backed by a shared slice so engine
// mutations are visible to later reads.
func memRepo(seed ...domain.Trip) *mockTripRepo {
	trips := slices.Clone(seed)
	find := func(ownerID string, id uuid.UUID) int {
		return slices.IndexFunc(trips, func(t domain.Trip) bool { return t.ID == id && t.OwnerID == ownerID })
	}
	return &mockTripRepo{
		list: func(_ context.Context, ownerID string) ([]domain.Trip, error) {
			var out []domain.Trip
			for _, t := range trips {
				if t.OwnerID == ownerID {
					out = append(out, t)
				}
			}
			return out, nil
		},
		create: func(_ context.Context, t domain.Trip) (domain.Trip, error) {
			t.ID = uuid.New()
			t.CreatedAt = time.Now()
			trips = slices.Insert(trips, 0, t)
			return t, nil
		},
		getByID: func(_ context.Context, ownerID string, id uuid.UUID) (domain.Trip, error) {
			if i := find(ownerID, id); i >= 0 {
				return trips[i], nil
			}
			return domain.Trip{}, domain.ErrNotFound
		},
		update: func(_ context.Context, t domain.Trip) (domain.Trip, error) {
			i := find(t.OwnerID, t.ID)
			if i < 0 {
				return domain.Trip{}, domain.ErrNotFound
			}
			t.CreatedAt = trips[i].CreatedAt
			trips[i] = t
			return t, nil
		},
		delete: func(_ context.Context, ownerID string, id uuid.UUID) error {
			i := find(ownerID, id)
			if i < 0 {
				return domain.ErrNotFound
			}
			trips = slices.Delete(trips, i, i+1)
			return nil
		},
	}
}

func newService(r repo.TripRepo) *service.TripService {
	up := &mockUploader{upload: func(context.Context, domain.Photo) (domain.Asset, error) {
		return domain.Asset{URL: "https://cdn.example.com/u.jpg", ID: "u"}, nil
	}}
	return service.NewTripService(r, up, story.NewGenerator(firstPicker{}), discardLogger())
}

func tripFixture(title, category string, date time.Time) domain.Trip {
	return domain.Trip{
		ID:       uuid.New(),
		OwnerID:  owner,
		Title:    title,
		Date:     date,
		Location: title,
		Category: category,
	}
}

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

// ---- engine lifecycle ------------------------------------------------------

func TestTripService_RequiresOwner(t *testing.T) {
	svc := newService(memRepo())

	_, _, err := svc.List(context.Background(), "", service.ListParams{})

	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestTripService_BindsOncePerOwner(t *testing.T) {
	r := memRepo(tripFixture("Paris", "France", day(1)))
	lists := 0
	inner := r.list
	r.list = func(ctx context.Context, ownerID string) ([]domain.Trip, error) {
		lists++
		return inner(ctx, ownerID)
	}
	svc := newService(r)

	for range 3 {
		_, _, err := svc.List(context.Background(), owner, service.ListParams{Page: domain.NewPaginationParams(nil, nil)})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, lists)
}

func TestTripService_FailedFirstLoadRetries(t *testing.T) {
	r := memRepo(tripFixture("Paris", "France", day(1)))
	inner := r.list
	fail := true
	r.list = func(ctx context.Context, ownerID string) ([]domain.Trip, error) {
		if fail {
			return nil, errors.New("db down")
		}
		return inner(ctx, ownerID)
	}
	svc := newService(r)
	page := service.ListParams{Page: domain.NewPaginationParams(nil, nil)}

	_, _, err := svc.List(context.Background(), owner, page)
	require.ErrorIs(t, err, domain.ErrStore)

	fail = false
	got, total, err := svc.List(context.Background(), owner, page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, got, 1)
}

func TestTripService_LogoutForgetsEngine(t *testing.T) {
	r := memRepo(tripFixture("Paris", "France", day(1)))
	lists := 0
	inner := r.list
	r.list = func(ctx context.Context, ownerID string) ([]domain.Trip, error) {
		lists++
		return inner(ctx, ownerID)
	}
	svc := newService(r)
	page := service.ListParams{Page: domain.NewPaginationParams(nil, nil)}

	_, _, err := svc.List(context.Background(), owner, page)
	require.NoError(t, err)
	svc.Logout(owner)
	_, _, err = svc.List(context.Background(), owner, page)
	require.NoError(t, err)

	assert.Equal(t, 2, lists, "logout must force a fresh load")
}

func TestTripService_ConcurrentFirstLoadSharesBind(t *testing.T) {
	r := memRepo(tripFixture("Paris", "France", day(1)), tripFixture("Rome", "Italy", day(2)))
	inner := r.list
	var lists atomic.Int32
	entered, release := make(chan struct{}, 1), make(chan struct{})
	r.list = func(ctx context.Context, ownerID string) ([]domain.Trip, error) {
		lists.Add(1)
		entered <- struct{}{}
		<-release
		return inner(ctx, ownerID)
	}
	svc := newService(r)
	page := service.ListParams{Page: domain.NewPaginationParams(nil, nil)}

	type result struct {
		n   int
		err error
	}
	results := make(chan result, 2)
	list := func() {
		got, _, err := svc.List(context.Background(), owner, page)
		results <- result{len(got), err}
	}

	go list()
	<-entered
	go list()
	// Give the second request time to reach the in-flight bind.
	time.Sleep(20 * time.Millisecond)
	close(release)

	for range 2 {
		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, 2, res.n, "no request may see an empty cache")
	}
	assert.Equal(t, int32(1), lists.Load())
}

func TestTripService_EvictIdle(t *testing.T) {
	now := day(1)
	r := memRepo(tripFixture("Paris", "France", day(1)), tripFixture("Kyoto", "Japan", day(2)))
	lists := 0
	inner := r.list
	r.list = func(ctx context.Context, ownerID string) ([]domain.Trip, error) {
		lists++
		return inner(ctx, ownerID)
	}
	up := &mockUploader{}
	svc := service.NewTripService(r, up, story.NewGenerator(firstPicker{}), discardLogger(),
		service.WithClock(func() time.Time { return now }))
	page := service.ListParams{Page: domain.NewPaginationParams(nil, nil)}

	_, _, err := svc.List(context.Background(), owner, page)
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), "user-2", page)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Sessions())
	assert.Equal(t, 2, svc.CachedTrips())

	now = now.Add(20 * time.Minute)
	_, _, err = svc.List(context.Background(), "user-2", page)
	require.NoError(t, err)
	now = now.Add(20 * time.Minute)

	assert.Equal(t, 1, svc.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, svc.Sessions())
	assert.Equal(t, 0, svc.CachedTrips())

	got, _, err := svc.List(context.Background(), owner, page)
	require.NoError(t, err)
	assert.Len(t, got, 2, "an evicted owner reloads from the store")
	assert.Equal(t, 3, lists)
}

func TestTripService_CachedTripsFollowsMutations(t *testing.T) {
	svc := newService(memRepo(tripFixture("Paris", "France", day(1))))
	page := service.ListParams{Page: domain.NewPaginationParams(nil, nil)}

	_, _, err := svc.List(context.Background(), owner, page)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.CachedTrips())

	_, err = svc.Create(context.Background(), owner, domain.TripInput{Title: "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.CachedTrips())

	svc.Logout(owner)
	assert.Equal(t, 0, svc.CachedTrips())
	assert.Equal(t, 0, svc.Sessions())
}

// ---- List / Get ------------------------------------------------------------

func TestTripService_List_HugePage(t *testing.T) {
	svc := newService(memRepo(tripFixture("Paris", "France", day(1))))
	page, limit := 100_000_000_000_000_000, 100

	got, total, err := svc.List(context.Background(), owner, service.ListParams{
		Page: domain.NewPaginationParams(&page, &limit),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, got)
}

func TestTripService_List_CategoryAndPaging(t *testing.T) {
	var seed []domain.Trip
	for i := range 5 {
		seed = append(seed, tripFixture("jp", "Japan", day(i+1)))
	}
	seed = append(seed, tripFixture("pe", "Peru", day(9)), tripFixture("none", "", day(10)))
	svc := newService(memRepo(seed...))
	two := 2
	page2 := 2

	got, total, err := svc.List(context.Background(), owner, service.ListParams{
		Category: "Japan",
		Page:     domain.NewPaginationParams(&page2, &two),
	})

	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, got, 2)
	assert.Equal(t, seed[2].ID, got[0].ID)
	assert.Equal(t, seed[3].ID, got[1].ID)

	_, total, err = svc.List(context.Background(), owner, service.ListParams{
		Category: domain.DefaultCategory,
		Page:     domain.NewPaginationParams(nil, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "blank category is listed under the default")
}

func TestTripService_Get_NotFound(t *testing.T) {
	svc := newService(memRepo())

	_, err := svc.Get(context.Background(), owner, uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- mutations pass through the engine -------------------------------------

func TestTripService_CreateThenGet(t *testing.T) {
	svc := newService(memRepo())

	created, err := svc.Create(context.Background(), owner, domain.TripInput{
		Title: "Lisbon",
		Photo: &domain.Photo{Data: []byte("raw")},
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/u.jpg", *got.Image)
}

func TestTripService_UpdateAndDelete(t *testing.T) {
	fixture := tripFixture("Paris", "France", day(1))
	svc := newService(memRepo(fixture))

	updated, err := svc.Update(context.Background(), owner, fixture.ID, domain.TripInput{Title: "Paris again", Category: "France"})
	require.NoError(t, err)
	assert.Equal(t, "Paris again", updated.Title)

	require.NoError(t, svc.Delete(context.Background(), owner, fixture.ID))
	_, err = svc.Get(context.Background(), owner, fixture.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripService_Refresh(t *testing.T) {
	r := memRepo()
	svc := newService(r)
	_, _, err := svc.List(context.Background(), owner, service.ListParams{Page: domain.NewPaginationParams(nil, nil)})
	require.NoError(t, err)

	// Written by another session straight into the store.
	_, err = r.create(context.Background(), tripFixture("elsewhere", "", day(1)))
	require.NoError(t, err)

	got, err := svc.Refresh(context.Background(), owner)

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// ---- MoveToCategory --------------------------------------------------------

func TestTripService_MoveToCategory_PartialFailure(t *testing.T) {
	img, asset := "https://cdn.example.com/a.jpg", "a"
	a := tripFixture("a", "Old", day(1))
	a.Image, a.ImageAssetID = &img, &asset
	b := tripFixture("b", "Old", day(2))
	c := tripFixture("c", "Old", day(3))
	r := memRepo(a, b, c)
	inner := r.update
	r.update = func(ctx context.Context, t domain.Trip) (domain.Trip, error) {
		if t.ID == c.ID {
			return domain.Trip{}, errors.New("write conflict")
		}
		return inner(ctx, t)
	}
	svc := newService(r)
	missing := uuid.New()

	res, err := svc.MoveToCategory(context.Background(), owner, []uuid.UUID{a.ID, missing, b.ID, c.ID}, "New")

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, res.Moved)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, missing, res.Failed[0].ID)
	assert.Equal(t, c.ID, res.Failed[1].ID)

	moved, err := svc.Get(context.Background(), owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", moved.Category)
	require.NotNil(t, moved.Image)
	assert.Equal(t, img, *moved.Image, "image survives a category move")
	assert.Equal(t, asset, *moved.ImageAssetID)

	stuck, err := svc.Get(context.Background(), owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old", stuck.Category)
}

func TestTripService_MoveToCategory_NoIDs(t *testing.T) {
	svc := newService(memRepo())

	_, err := svc.MoveToCategory(context.Background(), owner, nil, "x")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- Categories / Story ----------------------------------------------------

func TestTripService_Categories(t *testing.T) {
	svc := newService(memRepo(
		tripFixture("a", "Peru", day(1)),
		tripFixture("b", "", day(2)),
		tripFixture("c", "Peru", day(3)),
	))

	got, err := svc.Categories(context.Background(), owner)

	require.NoError(t, err)
	assert.Equal(t, []service.CategorySummary{
		{Name: "My Trips", Count: 1},
		{Name: "Peru", Count: 2},
	}, got)
}

func TestTripService_Story_ByCategoryMatchesPrefiltered(t *testing.T) {
	paris1 := tripFixture("Paris", "France", day(1))
	paris2 := tripFixture("Paris", "France", day(3))
	rome := tripFixture("Rome", "Italy", day(5))
	svc := newService(memRepo(paris1, rome, paris2))

	got, err := svc.Story(context.Background(), owner, service.StoryRequest{Category: "France"})

	require.NoError(t, err)
	want := story.NewGenerator(firstPicker{}).Generate([]domain.Trip{paris1, paris2}, "")
	assert.Equal(t, want, got)
	assert.Equal(t, "Journey to Paris", got.Title)
	assert.Equal(t, 3, got.TotalDays)
}

func TestTripService_Story_ByIDs(t *testing.T) {
	paris := tripFixture("Paris", "France", day(1))
	rome := tripFixture("Rome", "Italy", day(5))
	svc := newService(memRepo(paris, rome))

	got, err := svc.Story(context.Background(), owner, service.StoryRequest{IDs: []uuid.UUID{rome.ID, paris.ID}, Title: "Two Cities"})

	require.NoError(t, err)
	assert.Equal(t, "Two Cities", got.Title)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, "Paris", got.Chapters[0].Location)
	assert.Equal(t, 5, got.TotalDays)
}

func TestTripService_Story_UnknownID(t *testing.T) {
	svc := newService(memRepo())

	_, err := svc.Story(context.Background(), owner, service.StoryRequest{IDs: []uuid.UUID{uuid.New()}})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripService_Story_Empty(t *testing.T) {
	svc := newService(memRepo())

	got, err := svc.Story(context.Background(), owner, service.StoryRequest{})

	require.NoError(t, err)
	assert.Equal(t, story.EmptyStory(), got)
}
