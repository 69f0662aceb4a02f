package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voltgrid/internal/models"
)

// StationRepository manages station metadata and credentials.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// Upsert stores or updates station metadata.
func (r *StationRepository) Upsert(ctx context.Context, station *models.Station) error {
	const query = `
		INSERT INTO stations (id, vendor, model, firmware_version, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			vendor = EXCLUDED.vendor,
			model = EXCLUDED.model,
			firmware_version = EXCLUDED.firmware_version,
			last_seen = EXCLUDED.last_seen,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now().UTC()
	if station.LastSeen.IsZero() {
		station.LastSeen = now
	}
	_, err := r.db.ExecContext(ctx, query,
		station.ID,
		station.Vendor,
		station.Model,
		station.FirmwareVersion,
		station.LastSeen,
		now,
		now,
	)
	return err
}

// Touch bumps last_seen without overwriting station metadata.
func (r *StationRepository) Touch(ctx context.Context, stationID string) error {
	return touchStation(ctx, r.db, stationID, time.Now().UTC())
}

// Get returns a station by its external identifier.
func (r *StationRepository) Get(ctx context.Context, stationID string) (*models.Station, error) {
	const query = `
		SELECT id, vendor, model, firmware_version, last_seen, created_at, updated_at
		FROM stations
		WHERE id = $1
	`
	var (
		station  models.Station
		vendor   sql.NullString
		model    sql.NullString
		firmware sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, stationID).Scan(
		&station.ID, &vendor, &model, &firmware,
		&station.LastSeen, &station.CreatedAt, &station.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get station %s: %w", stationID, err)
	}
	station.Vendor = vendor.String
	station.Model = model.String
	station.FirmwareVersion = firmware.String
	return &station, nil
}

// SetPasswordHash stores the station's credential hash, creating the station
// row first when the password is provisioned before the first report.
func (r *StationRepository) SetPasswordHash(ctx context.Context, stationID, passwordHash string) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin credential transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchStation(ctx, tx, stationID, now); err != nil {
		return err
	}

	const query = `
		INSERT INTO station_credentials (station_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (station_id) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, stationID, passwordHash, now); err != nil {
		return fmt.Errorf("repository: set credentials for %s: %w", stationID, err)
	}

	return tx.Commit()
}

// GetPasswordHash returns the stored credential hash for a station.
func (r *StationRepository) GetPasswordHash(ctx context.Context, stationID string) (string, error) {
	const query = `SELECT password_hash FROM station_credentials WHERE station_id = $1`
	var hash string
	err := r.db.QueryRowContext(ctx, query, stationID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}
	if err != nil {
		return "", fmt.Errorf("repository: get credentials for %s: %w", stationID, err)
	}
	return hash, nil
}
