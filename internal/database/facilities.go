package database

import (
	"context"
	"fmt"
	"time"

	"sportclub/internal/models"
)

const facilityColumns = `id, club_id, name, type, capacity, max_concurrent_bookings, status, created_at, updated_at`

func (db *DB) CreateFacility(ctx context.Context, f *models.Facility) error {
	query := `INSERT INTO facilities (club_id, name, type, capacity, max_concurrent_bookings, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		f.ClubID,
		f.Name,
		f.Type,
		f.Capacity,
		f.MaxConcurrentBookings,
		f.Status,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create facility: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	f.ID = id
	f.CreatedAt = now.Truncate(time.Millisecond)
	f.UpdatedAt = f.CreatedAt
	return nil
}

func (db *DB) GetFacility(ctx context.Context, id int64) (*models.Facility, error) {
	row := db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id)
	f, err := scanFacility(row)
	if err != nil {
		return nil, notFound(err, "facility", id)
	}
	return f, nil
}

func (db *DB) UpdateFacility(ctx context.Context, f *models.Facility) error {
	query := `UPDATE facilities SET name = ?, type = ?, capacity = ?, max_concurrent_bookings = ?,
	          status = ?, updated_at = ? WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		f.Name, f.Type, f.Capacity, f.MaxConcurrentBookings, f.Status, formatTime(now), f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update facility: %w", err)
	}
	if err := affectedOrNotFound(result, "facility", f.ID); err != nil {
		return err
	}
	f.UpdatedAt = now.Truncate(time.Millisecond)
	return nil
}

func (db *DB) ListFacilities(ctx context.Context, clubID int64) ([]*models.Facility, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE club_id = ? ORDER BY name ASC, id ASC`, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []*models.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

// SyncFacilities upserts the given facilities by id inside one transaction.
// Used to load the seed file at startup.
func (db *DB) SyncFacilities(ctx context.Context, facilities []*models.Facility) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO facilities (id, club_id, name, type, capacity, max_concurrent_bookings, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                club_id = excluded.club_id,
                name = excluded.name,
                type = excluded.type,
                capacity = excluded.capacity,
                max_concurrent_bookings = excluded.max_concurrent_bookings,
                status = excluded.status,
                updated_at = excluded.updated_at`
	now := formatTime(time.Now())
	for _, f := range facilities {
		if _, err := tx.ExecContext(ctx, query,
			f.ID, f.ClubID, f.Name, f.Type, f.Capacity, f.MaxConcurrentBookings, f.Status, now, now,
		); err != nil {
			return fmt.Errorf("failed to sync facility %d: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit facility sync: %w", err)
	}
	db.logger.Info().Int("count", len(facilities)).Msg("Facilities synchronized")
	return nil
}

func scanFacility(row rowScanner) (*models.Facility, error) {
	var (
		f                models.Facility
		created, updated string
	)
	if err := row.Scan(&f.ID, &f.ClubID, &f.Name, &f.Type, &f.Capacity, &f.MaxConcurrentBookings,
		&f.Status, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if f.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &f, nil
}
