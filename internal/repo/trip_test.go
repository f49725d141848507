package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/repo"
	"github.com/pkordes/triptales/testutil"
)

// newTestRepo returns a TripRepo backed by a transaction that is rolled back
// when the test finishes. Skips when TEST_DATABASE_URL is not set.
func newTestRepo(t *testing.T) repo.TripRepo {
	t.Helper()
	return repo.NewTripRepo(testutil.NewTx(t))
}

func strPtr(s string) *string { return &s }

func tripFixture(owner string) domain.Trip {
	return domain.Trip{
		OwnerID:      owner,
		Title:        "Sunrise hike",
		Note:         "We left at 4am.",
		Date:         time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
		Location:     "Mount Batur",
		Image:        strPtr("https://res.cloudinary.com/demo/image/upload/batur.jpg"),
		ImageAssetID: strPtr("batur"),
		Category:     "Bali",
	}
}

func TestTripRepo_Create(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	input := tripFixture("owner-a")
	got, err := r.Create(ctx, input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated")
	assert.Equal(t, "owner-a", got.OwnerID)
	assert.Equal(t, input.Title, got.Title)
	assert.True(t, got.Date.Equal(input.Date), "Date mismatch")
	require.NotNil(t, got.Image)
	assert.Equal(t, *input.Image, *got.Image)
	require.NotNil(t, got.ImageAssetID)
	assert.Equal(t, "batur", *got.ImageAssetID)
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
}

func TestTripRepo_Create_NoImage(t *testing.T) {
	r := newTestRepo(t)

	input := tripFixture("owner-a")
	input.Image, input.ImageAssetID = nil, nil

	got, err := r.Create(context.Background(), input)

	require.NoError(t, err)
	assert.Nil(t, got.Image)
	assert.Nil(t, got.ImageAssetID)
}

func TestTripRepo_Create_HalfImagePairRejected(t *testing.T) {
	r := newTestRepo(t)

	input := tripFixture("owner-a")
	input.ImageAssetID = nil

	_, err := r.Create(context.Background(), input)

	assert.Error(t, err, "image without asset id violates trips_image_pair")
}

func TestTripRepo_List_OwnerScopedNewestFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first, err := r.Create(ctx, tripFixture("owner-a"))
	require.NoError(t, err)
	second, err := r.Create(ctx, tripFixture("owner-a"))
	require.NoError(t, err)
	_, err = r.Create(ctx, tripFixture("owner-b"))
	require.NoError(t, err)

	trips, err := r.List(ctx, "owner-a")

	require.NoError(t, err)
	require.Len(t, trips, 2)
	for _, tr := range trips {
		assert.Equal(t, "owner-a", tr.OwnerID)
	}
	// Both rows share now() inside one transaction; created_at order is
	// therefore a tie and only membership is asserted.
	ids := []uuid.UUID{trips[0].ID, trips[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)
}

func TestTripRepo_List_Empty(t *testing.T) {
	r := newTestRepo(t)

	trips, err := r.List(context.Background(), "nobody")

	require.NoError(t, err)
	assert.NotNil(t, trips)
	assert.Empty(t, trips)
}

func TestTripRepo_GetByID_OtherOwner(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture("owner-a"))
	require.NoError(t, err)

	_, err = r.GetByID(ctx, "owner-b", created.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_Update_KeepsCreatedAt(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture("owner-a"))
	require.NoError(t, err)

	created.Title = "Sunset hike"
	created.Category = "Indonesia"
	created.Image, created.ImageAssetID = nil, nil
	created.CreatedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC) // must be ignored

	updated, err := r.Update(ctx, created)

	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Sunset hike", updated.Title)
	assert.Equal(t, "Indonesia", updated.Category)
	assert.Nil(t, updated.Image)
	assert.NotEqual(t, 1999, updated.CreatedAt.Year())
}

func TestTripRepo_Update_NotFound(t *testing.T) {
	r := newTestRepo(t)

	ghost := tripFixture("owner-a")
	ghost.ID = uuid.New()

	_, err := r.Update(context.Background(), ghost)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_Delete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, tripFixture("owner-a"))
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, "owner-a", created.ID))

	_, err = r.GetByID(ctx, "owner-a", created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "trip should be gone after delete")
}

func TestTripRepo_Delete_NotFound(t *testing.T) {
	r := newTestRepo(t)

	err := r.Delete(context.Background(), "owner-a", uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
