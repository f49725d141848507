package domain

import "time"

// ExportRow is a single row in the full-data export: one row per trip,
// oldest trip date first. Image and ImageAssetID are empty strings when the
// trip has no photo.
type ExportRow struct {
	TripID       string
	Title        string
	Date         string // "2006-01-02" formatted date
	Location     string
	Category     string
	Note         string
	Image        string
	ImageAssetID string
	CreatedAt    time.Time
}
