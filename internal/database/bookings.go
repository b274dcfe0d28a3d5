package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sportclub/internal/models"
)

const bookingColumns = `id, club_id, facility_id, team_id, member_id, title, description,
	start_time, end_time, type, status, participants, cost,
	contact_person, contact_email, contact_phone, notes, created_at, updated_at`

const insertBookingQuery = `INSERT INTO bookings (
				club_id, facility_id, team_id, member_id, title, description,
				start_time, end_time, type, status, participants, cost,
				contact_person, contact_email, contact_phone, notes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// overlapQuery counts active bookings on a facility intersecting [start, end).
// The last two arguments implement the optional self-exclusion.
const overlapQuery = `SELECT COUNT(*) FROM bookings
	WHERE facility_id = ?
	AND status != ?
	AND start_time < ?
	AND end_time > ?
	AND (? = 0 OR id != ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CountOverlapping returns the number of non-cancelled bookings on the facility that
// overlap [start, end), ignoring excludeID when it is non-nil.
func (db *DB) CountOverlapping(ctx context.Context, facilityID int64, start, end time.Time, excludeID *int64) (int, error) {
	return countOverlapping(ctx, db.DB, facilityID, start, end, excludeID)
}

func countOverlapping(ctx context.Context, q execer, facilityID int64, start, end time.Time, excludeID *int64) (int, error) {
	var exclude int64
	if excludeID != nil {
		exclude = *excludeID
	}
	var count int
	err := q.QueryRowContext(ctx, overlapQuery,
		facilityID, models.StatusCancelled, formatTime(end), formatTime(start), exclude, exclude,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}
	return count, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return insertBooking(ctx, db.DB, booking)
}

func insertBooking(ctx context.Context, q execer, booking *models.Booking) error {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, insertBookingQuery,
		booking.ClubID,
		nullableID(booking.FacilityID),
		nullableID(booking.TeamID),
		nullableID(booking.MemberID),
		booking.Title,
		booking.Description,
		formatTime(booking.StartTime),
		formatTime(booking.EndTime),
		booking.Type,
		booking.Status,
		booking.Participants,
		booking.Cost,
		booking.ContactPerson,
		booking.ContactEmail,
		booking.ContactPhone,
		booking.Notes,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.StartTime = booking.StartTime.UTC()
	booking.EndTime = booking.EndTime.UTC()
	booking.CreatedAt = now.Truncate(time.Millisecond)
	booking.UpdatedAt = booking.CreatedAt
	return nil
}

// CreateBookingWithLock re-counts overlaps and inserts inside one transaction, failing
// with ErrNotAvailable when the facility is already at capacity.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	if booking.FacilityID == nil {
		return insertBooking(ctx, db.DB, booking)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var maxConcurrent int
	err = tx.QueryRowContext(ctx, `SELECT max_concurrent_bookings FROM facilities WHERE id = ?`, *booking.FacilityID).
		Scan(&maxConcurrent)
	if err != nil {
		return notFound(err, "facility", *booking.FacilityID)
	}

	count, err := countOverlapping(ctx, tx, *booking.FacilityID, booking.StartTime, booking.EndTime, nil)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if count >= maxConcurrent {
		return ErrNotAvailable
	}

	if err := insertBooking(ctx, tx, booking); err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return booking, nil
}

// UpdateBooking overwrites every mutable column of the stored row.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings SET
				facility_id = ?, team_id = ?, member_id = ?, title = ?, description = ?,
				start_time = ?, end_time = ?, type = ?, status = ?, participants = ?, cost = ?,
				contact_person = ?, contact_email = ?, contact_phone = ?, notes = ?, updated_at = ?
			WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		nullableID(booking.FacilityID),
		nullableID(booking.TeamID),
		nullableID(booking.MemberID),
		booking.Title,
		booking.Description,
		formatTime(booking.StartTime),
		formatTime(booking.EndTime),
		booking.Type,
		booking.Status,
		booking.Participants,
		booking.Cost,
		booking.ContactPerson,
		booking.ContactEmail,
		booking.ContactPhone,
		booking.Notes,
		formatTime(now),
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if err := affectedOrNotFound(result, "booking", booking.ID); err != nil {
		return err
	}
	booking.UpdatedAt = now.Truncate(time.Millisecond)
	return nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return affectedOrNotFound(result, "booking", id)
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return affectedOrNotFound(result, "booking", id)
}

// ListBookings returns the club's bookings ordered by start time. From/To select
// bookings overlapping [From, To); either bound may be open.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	var (
		where = []string{"club_id = ?"}
		args  = []any{filter.ClubID}
	)
	if filter.FacilityID != nil {
		where = append(where, "facility_id = ?")
		args = append(args, *filter.FacilityID)
	}
	if filter.To != nil {
		where = append(where, "start_time < ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.From != nil {
		where = append(where, "end_time > ?")
		args = append(args, formatTime(*filter.From))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY start_time ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetDailyBookings groups club bookings in [from, to) by their start date in loc.
func (db *DB) GetDailyBookings(ctx context.Context, clubID int64, from, to time.Time, loc *time.Location) (map[string][]*models.Booking, error) {
	bookings, err := db.ListBookings(ctx, models.BookingFilter{ClubID: clubID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		key := b.StartTime.In(loc).Format(dateLayout)
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                            models.Booking
		facilityID, teamID, memberID sql.NullInt64
		start, end, created, updated string
	)
	err := row.Scan(
		&b.ID, &b.ClubID, &facilityID, &teamID, &memberID, &b.Title, &b.Description,
		&start, &end, &b.Type, &b.Status, &b.Participants, &b.Cost,
		&b.ContactPerson, &b.ContactEmail, &b.ContactPhone, &b.Notes, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	b.FacilityID = idPtr(facilityID)
	b.TeamID = idPtr(teamID)
	b.MemberID = idPtr(memberID)

	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&b.StartTime, start}, {&b.EndTime, end}, {&b.CreatedAt, created}, {&b.UpdatedAt, updated}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
