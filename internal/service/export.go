package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/repo"
)

// ExportService assembles a flat export of all of an owner's trips.
// It reads the store directly so the export never depends on cache state.
type ExportService struct {
	trips repo.TripRepo
}

// NewExportService constructs an ExportService backed by the provided repo.
func NewExportService(trips repo.TripRepo) *ExportService {
	return &ExportService{trips: trips}
}

// Export returns one ExportRow per trip, oldest trip date first.
// Trips with a transient image handle are left out, like the cache does.
func (s *ExportService) Export(ctx context.Context, ownerID string) ([]domain.ExportRow, error) {
	if ownerID == "" {
		return nil, domain.ErrAuth
	}
	trips, err := s.trips.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w: %w", domain.ErrStore, err)
	}

	slices.SortStableFunc(trips, func(a, b domain.Trip) int { return a.Date.Compare(b.Date) })

	rows := make([]domain.ExportRow, 0, len(trips))
	for _, t := range trips {
		if t.Image != nil && domain.IsTransientHandle(*t.Image) {
			continue
		}
		row := domain.ExportRow{
			TripID:    t.ID.String(),
			Title:     t.Title,
			Date:      t.Date.UTC().Format("2006-01-02"),
			Location:  t.Location,
			Category:  domain.CategoryOrDefault(t.Category),
			Note:      t.Note,
			CreatedAt: t.CreatedAt,
		}
		if t.Image != nil {
			row.Image = *t.Image
		}
		if t.ImageAssetID != nil {
			row.ImageAssetID = *t.ImageAssetID
		}
		rows = append(rows, row)
	}
	return rows, nil
}
