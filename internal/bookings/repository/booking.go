package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "huddle/internal/bookings/errors"
	"huddle/pkg/model"

	"github.com/google/uuid"
)

const (
	CollectionName = "bookings"
	TableName      = "bookings"

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// BookingRepository persists bookings. Overlap queries use half-open
// intervals and consider only PENDING and CONFIRMED bookings. Update is
// version-checked like the room repository.
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, booking *model.Booking) error

	// ExistsOverlapping and FindOverlapping skip the booking with excludeID
	// when it is not empty.
	ExistsOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error)
	FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Booking, error)

	// FindByRoomAndRange returns bookings of any status that intersect
	// [from, to), ordered by start time.
	FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error)
	FindActiveByRoom(ctx context.Context, roomID string, now time.Time) ([]*model.Booking, error)
	FindByOrganizerEmail(ctx context.Context, email string) ([]*model.Booking, error)
	FindByStatus(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error)
	CountActive(ctx context.Context, roomID string, now time.Time) (int64, error)

	// BulkMarkExpired moves every active booking that ended before now to
	// EXPIRED in one statement and returns how many changed.
	BulkMarkExpired(ctx context.Context, now time.Time) (int64, error)
}

func LockKey(id string) string {
	return "booking:" + id
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
}

func assignID(booking *model.Booking) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
}

func activeStatusStrings() []string {
	out := make([]string, 0, len(model.ActiveStatuses))
	for _, s := range model.ActiveStatuses {
		out = append(out, string(s))
	}
	return out
}
