// Package handler: export.go implements GET /export.
// Returns all of the caller's trips as a flat table.
// Supports content negotiation via ?format=csv (CSV) or default (JSON).
package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/triptales/internal/domain"
	"github.com/pkordes/triptales/internal/middleware"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"trip_id", "title", "date", "location", "category",
	"note", "image", "image_asset_id", "created_at",
}

// ExportRow is the JSON form of one export row. Empty optional fields are omitted.
type ExportRow struct {
	TripID       string    `json:"trip_id"`
	Title        string    `json:"title"`
	Date         string    `json:"date"`
	Location     string    `json:"location"`
	Category     string    `json:"category"`
	Note         string    `json:"note,omitempty"`
	Image        string    `json:"image,omitempty"`
	ImageAssetID string    `json:"image_asset_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetExport implements GET /export.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	var format string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		requestError(w, fmt.Sprintf("invalid format: %v", err))
		return
	}
	if format != "" && format != "csv" && format != "json" {
		requestError(w, fmt.Sprintf("unsupported format %q: want csv or json", format))
		return
	}

	rows, err := s.export.Export(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		s.serviceError(w, r, err, "trips not found")
		return
	}

	if format == "csv" {
		writeCSV(w, rows)
		return
	}
	writeJSON(w, http.StatusOK, buildJSONRows(rows))
}

// buildJSONRows converts domain rows to their JSON form.
func buildJSONRows(rows []domain.ExportRow) []ExportRow {
	out := make([]ExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ExportRow(r))
	}
	return out
}

// writeCSV encodes domain rows as CSV with a header row.
func writeCSV(w http.ResponseWriter, rows []domain.ExportRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	// bytes.Buffer writes never fail.
	_ = cw.Write(csvHeaders)
	for _, r := range rows {
		_ = cw.Write(domainRowToCSVRecord(r))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trips.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// domainRowToCSVRecord encodes a domain.ExportRow as a flat string slice.
func domainRowToCSVRecord(r domain.ExportRow) []string {
	return []string{
		r.TripID,
		r.Title,
		r.Date,
		r.Location,
		r.Category,
		r.Note,
		r.Image,
		r.ImageAssetID,
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}
