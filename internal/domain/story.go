package domain

import "time"

// Story is a narrative derived from a set of trips. It is never persisted.
type Story struct {
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	Chapters  []Chapter `json:"chapters"`
	TotalDays int       `json:"total_days"`
}

// Chapter is one narrative unit, built from exactly one trip.
// Day is the 1-based position of the trip in date order, not a calendar offset.
type Chapter struct {
	Day      int       `json:"day"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Image    *string   `json:"image"`
	Location string    `json:"location"`
	Date     time.Time `json:"date"`
}
