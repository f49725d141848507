// Package domain contains the core data types for the TripTales application.
// This package has no dependencies on other internal packages and is imported
// by every other internal package (repo, upload, tripsync, story, service, handler).
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is the category a trip lands in when none is given.
const DefaultCategory = "My Trips"

// DefaultLocation replaces a blank location at write time.
const DefaultLocation = "Unknown"

// Trip is one travel record owned by a single account.
// Image and ImageAssetID are either both set or both nil.
type Trip struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Note         string    `json:"note"`
	Date         time.Time `json:"date"` // the occasion of the trip, chosen by the user
	Location     string    `json:"location"`
	Image        *string   `json:"image"`
	ImageAssetID *string   `json:"image_asset_id"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasImage reports whether the trip carries a remote image.
func (t Trip) HasImage() bool {
	return t.Image != nil && *t.Image != ""
}

// TripInput carries the user-editable fields of a trip for create and update.
// Photo is nil when the trip has no image (on update: the image is cleared).
type TripInput struct {
	Title    string
	Note     string
	Date     time.Time
	Location string
	Category string
	Photo    *Photo

	// ImageAssetID is the host identifier for a Photo that is already a
	// remote URL. It is ignored when the photo has to be uploaded.
	ImageAssetID string
}

// CategoryOrDefault returns the trimmed category, or DefaultCategory when blank.
func CategoryOrDefault(category string) string {
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return DefaultCategory
}

// Normalize applies write-time defaults: blank category and location get
// their default labels and a zero date becomes now.
func (in TripInput) Normalize(now time.Time) TripInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = CategoryOrDefault(in.Category)
	if strings.TrimSpace(in.Location) == "" {
		in.Location = DefaultLocation
	}
	if in.Date.IsZero() {
		in.Date = now
	}
	return in
}
