package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"huddle/pkg/clock"
	"huddle/pkg/db"
	"huddle/pkg/db/postgres"
	"huddle/pkg/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const bookingColumns = `id, room_id, title, organizer_email, start_time, end_time, status, created_at, updated_at, version`

type postgresBookingRepository struct {
	pool  *sqlx.DB
	clock clock.Clock
}

// NewPostgresBookingRepository relies on the bookings_no_overlap exclusion
// constraint as a last line of defense; a violation surfaces as
// db.ErrExclusionViolation.
func NewPostgresBookingRepository(pool *sqlx.DB, clk clock.Clock) BookingRepository {
	return &postgresBookingRepository{
		pool:  pool,
		clock: clk,
	}
}

func (r *postgresBookingRepository) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Microsecond)
}

func toUTC(bookings ...*model.Booking) {
	for _, b := range bookings {
		b.StartTime = b.StartTime.UTC()
		b.EndTime = b.EndTime.UTC()
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
	}
}

func (r *postgresBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	assignID(booking)
	booking.Stamp(r.now())

	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :room_id, :title, :organizer_email, :start_time, :end_time, :status, :created_at, :updated_at, :version)`
	if _, err := sqlx.NamedExecContext(ctx, postgres.Conn(ctx, r.pool), query, booking); err != nil {
		return postgres.Classify(err, "failed to create booking")
	}
	return nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return r.findOne(ctx, id, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`)
}

func (r *postgresBookingRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return r.findOne(ctx, id, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`)
}

func (r *postgresBookingRepository) findOne(ctx context.Context, id, query string) (*model.Booking, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var booking model.Booking
	if err := postgres.Conn(ctx, r.pool).GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, postgres.Classify(err, "failed to find booking")
	}
	toUTC(&booking)
	return &booking, nil
}

func (r *postgresBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	if err := validateID(booking.ID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := r.now()
	conn := postgres.Conn(ctx, r.pool)
	result, err := conn.ExecContext(ctx, `
		UPDATE bookings
		SET room_id = $1, title = $2, start_time = $3, end_time = $4, status = $5,
			updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`,
		booking.RoomID, booking.Title, booking.StartTime, booking.EndTime, booking.Status,
		now, booking.ID, booking.Version)
	if err != nil {
		return postgres.Classify(err, "failed to update booking")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := conn.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, booking.ID); err != nil {
			return postgres.Classify(err, "failed to check booking existence")
		}
		if exists {
			return fmt.Errorf("booking %s: %w", booking.ID, db.ErrStaleVersion)
		}
		return notFound(booking.ID)
	}

	booking.Touch(now)
	return nil
}

const overlapCondition = `room_id = $1 AND status = ANY($2) AND start_time < $3 AND end_time > $4
	AND ($5::text = '' OR id::text <> $5::text)`

func (r *postgresBookingRepository) ExistsOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE ` + overlapCondition + `)`
	err := postgres.Conn(ctx, r.pool).GetContext(ctx, &exists, query,
		roomID, pq.Array(activeStatusStrings()), end, start, excludeID)
	if err != nil {
		return false, postgres.Classify(err, "failed to check overlapping bookings")
	}
	return exists, nil
}

func (r *postgresBookingRepository) FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	return r.findMany(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+overlapCondition+` ORDER BY start_time`,
		roomID, pq.Array(activeStatusStrings()), end, start, excludeID)
}

func (r *postgresBookingRepository) FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
	return r.findMany(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE room_id = $1 AND start_time < $2 AND end_time > $3
		ORDER BY start_time`, roomID, to, from)
}

func (r *postgresBookingRepository) FindActiveByRoom(ctx context.Context, roomID string, now time.Time) ([]*model.Booking, error) {
	return r.findMany(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE room_id = $1 AND status = ANY($2) AND end_time > $3
		ORDER BY start_time`, roomID, pq.Array(activeStatusStrings()), now)
}

func (r *postgresBookingRepository) FindByOrganizerEmail(ctx context.Context, email string) ([]*model.Booking, error) {
	return r.findMany(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE organizer_email = $1 ORDER BY start_time DESC`, email)
}

func (r *postgresBookingRepository) FindByStatus(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error) {
	return r.findMany(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = $1 ORDER BY start_time`, status)
}

func (r *postgresBookingRepository) CountActive(ctx context.Context, roomID string, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var count int64
	err := postgres.Conn(ctx, r.pool).GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings
		WHERE room_id = $1 AND status = ANY($2) AND end_time > $3`,
		roomID, pq.Array(activeStatusStrings()), now)
	if err != nil {
		return 0, postgres.Classify(err, "failed to count active bookings")
	}
	return count, nil
}

func (r *postgresBookingRepository) BulkMarkExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := postgres.Conn(ctx, r.pool).ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = $2, version = version + 1
		WHERE status = ANY($3) AND end_time < $4`,
		model.StatusExpired, r.now(), pq.Array(activeStatusStrings()), now)
	if err != nil {
		return 0, postgres.Classify(err, "failed to expire bookings")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

func (r *postgresBookingRepository) findMany(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	bookings := []*model.Booking{}
	if err := postgres.Conn(ctx, r.pool).SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, postgres.Classify(err, "failed to find bookings")
	}
	toUTC(bookings...)
	return bookings, nil
}
