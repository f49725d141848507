// Package repo contains all database access logic for the TripTales API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/triptales/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Integration tests pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TripRepo is the per-owner record store. Every operation is scoped by
// owner id; a trip owned by someone else behaves exactly like a missing one.
type TripRepo interface {
	// List returns all trips of the owner ordered by created_at descending.
	List(ctx context.Context, ownerID string) ([]domain.Trip, error)

	// Create inserts a new trip and returns the persisted record with the
	// store-assigned id, created_at and updated_at.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip.
	// Returns domain.ErrNotFound if the owner has no trip with that id.
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error)

	// Update replaces the mutable fields of an existing trip; created_at and
	// owner_id are never written. Returns domain.ErrNotFound if absent.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Delete removes a trip. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, owner_id, title, note, trip_date, location, image, image_asset_id, category, created_at, updated_at`

func (r *pgTripRepo) List(ctx context.Context, ownerID string) ([]domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE owner_id = @owner_id
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TripRepo.List: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.List: rows: %w", err)
	}
	return trips, nil
}

func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (owner_id, title, note, trip_date, location, image, image_asset_id, category)
		VALUES (@owner_id, @title, @note, @trip_date, @location, @image, @image_asset_id, @category)
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"owner_id":       trip.OwnerID,
		"title":          trip.Title,
		"note":           trip.Note,
		"trip_date":      trip.Date,
		"location":       trip.Location,
		"image":          trip.Image, // nil becomes NULL
		"image_asset_id": trip.ImageAssetID,
		"category":       trip.Category,
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (domain.Trip, error) {
	const q = `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE owner_id = @owner_id AND id = @id`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"owner_id": ownerID, "id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		UPDATE trips
		SET title          = @title,
		    note           = @note,
		    trip_date      = @trip_date,
		    location       = @location,
		    image          = @image,
		    image_asset_id = @image_asset_id,
		    category       = @category,
		    updated_at     = now()
		WHERE owner_id = @owner_id AND id = @id
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"id":             trip.ID,
		"owner_id":       trip.OwnerID,
		"title":          trip.Title,
		"note":           trip.Note,
		"trip_date":      trip.Date,
		"location":       trip.Location,
		"image":          trip.Image,
		"image_asset_id": trip.ImageAssetID,
		"category":       trip.Category,
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgTripRepo) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	const q = `DELETE FROM trips WHERE owner_id = @owner_id AND id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner_id": ownerID, "id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTrip maps a single database row into a domain.Trip, converting the
// UUID and the nullable image columns.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t       domain.Trip
		id      pgtype.UUID
		image   pgtype.Text
		assetID pgtype.Text
	)

	err := s.Scan(&id, &t.OwnerID, &t.Title, &t.Note, &t.Date, &t.Location,
		&image, &assetID, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes)
	if image.Valid {
		t.Image = &image.String
	}
	if assetID.Valid {
		t.ImageAssetID = &assetID.String
	}
	return t, nil
}
