package handler_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/handler"
)

// mockExportServicer is a test double for handler.ExportServicer.
type mockExportServicer struct {
	export func(ctx context.Context, ownerID string) ([]domain.ExportRow, error)
}

func (m *mockExportServicer) Export(ctx context.Context, ownerID string) ([]domain.ExportRow, error) {
	return m.export(ctx, ownerID)
}

var _ handler.ExportServicer = (*mockExportServicer)(nil)

func exportFixture() []domain.ExportRow {
	created := time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)
	return []domain.ExportRow{
		{
			TripID:       "6f1f3a52-8f0e-4b2b-9a55-1a2b3c4d5e6f",
			Title:        "Louvre",
			Date:         "2024-06-01",
			Location:     "Paris",
			Category:     "Europe",
			Note:         "crowded, worth it",
			Image:        "https://cdn.example.com/louvre.jpg",
			ImageAssetID: "trips/louvre",
			CreatedAt:    created,
		},
		{
			TripID:    "0c9b2d1e-7a6f-4e3d-8c2b-1a0f9e8d7c6b",
			Title:     "Canal walk",
			Date:      "2024-06-03",
			Location:  "Amsterdam",
			Category:  "Europe",
			CreatedAt: created,
		},
	}
}

func exportHandler(rows []domain.ExportRow, err error) http.Handler {
	return newHTTPHandler(&mockTripServicer{}, &mockExportServicer{
		export: func(_ context.Context, ownerID string) ([]domain.ExportRow, error) {
			if ownerID != owner {
				return nil, domain.ErrAuth
			}
			return rows, err
		},
	})
}

func TestGetExport_JSON_200(t *testing.T) {
	rec := serve(exportHandler(exportFixture(), nil), httptest.NewRequest(http.MethodGet, "/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Louvre", rows[0]["title"])
	assert.Equal(t, "trips/louvre", rows[0]["image_asset_id"])
	assert.NotContains(t, rows[1], "image", "empty optional fields are omitted")
	assert.NotContains(t, rows[1], "note")
}

func TestGetExport_JSON_EmptyIsArray(t *testing.T) {
	rec := serve(exportHandler([]domain.ExportRow{}, nil), httptest.NewRequest(http.MethodGet, "/export?format=json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetExport_CSV_200(t *testing.T) {
	rec := serve(exportHandler(exportFixture(), nil), httptest.NewRequest(http.MethodGet, "/export?format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trips.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{
		"trip_id", "title", "date", "location", "category",
		"note", "image", "image_asset_id", "created_at",
	}, records[0])
	assert.Equal(t, "crowded, worth it", records[1][5], "commas survive quoting")
	assert.Equal(t, "2024-06-02T09:30:00Z", records[1][8])
	assert.Equal(t, "", records[2][6])
}

func TestGetExport_CSV_HeaderOnlyWhenEmpty(t *testing.T) {
	rec := serve(exportHandler(nil, nil), httptest.NewRequest(http.MethodGet, "/export?format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetExport_422_UnknownFormat(t *testing.T) {
	rec := serve(exportHandler(nil, nil), httptest.NewRequest(http.MethodGet, "/export?format=xml", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetExport_503_StoreError(t *testing.T) {
	err := errors.Join(domain.ErrStore, errors.New("timeout"))
	rec := serve(exportHandler(nil, err), httptest.NewRequest(http.MethodGet, "/export", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", decodeError(t, rec).Error.Code)
}
