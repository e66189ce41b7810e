package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"huddle/pkg/clock"
	"huddle/pkg/db"
	"huddle/pkg/db/memory"
	"huddle/pkg/model"
)

type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]model.Booking
	locks    *memory.TransactionManager
	clock    clock.Clock
}

func NewMemoryBookingRepository(locks *memory.TransactionManager, clk clock.Clock) BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]model.Booking),
		locks:    locks,
		clock:    clk,
	}
}

func (r *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignID(booking)
	if _, ok := r.bookings[booking.ID]; ok {
		return fmt.Errorf("failed to create booking: %w: id %s", db.ErrDuplicateKey, booking.ID)
	}

	booking.Stamp(r.clock.Now())
	r.bookings[booking.ID] = *booking

	id := booking.ID
	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		delete(r.bookings, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, notFound(id)
	}
	return &booking, nil
}

func (r *memoryBookingRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := r.locks.Lock(ctx, LockKey(id)); err != nil {
		return nil, fmt.Errorf("failed to lock booking %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

func (r *memoryBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	if err := validateID(booking.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.bookings[booking.ID]
	if !ok {
		return notFound(booking.ID)
	}
	if previous.Version != booking.Version {
		return fmt.Errorf("booking %s: %w", booking.ID, db.ErrStaleVersion)
	}

	booking.Touch(r.clock.Now())
	r.bookings[booking.ID] = *booking

	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		r.bookings[previous.ID] = previous
		r.mu.Unlock()
	})
	return nil
}

func (r *memoryBookingRepository) ExistsOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	overlapping, err := r.FindOverlapping(ctx, roomID, start, end, excludeID)
	return len(overlapping) > 0, err
}

func (r *memoryBookingRepository) FindOverlapping(_ context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	return r.filter(func(b model.Booking) bool {
		return b.RoomID == roomID && b.IsActive() && b.ID != excludeID && b.Overlaps(start, end)
	}, startAsc), nil
}

func (r *memoryBookingRepository) FindByRoomAndRange(_ context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
	return r.filter(func(b model.Booking) bool {
		return b.RoomID == roomID && b.Overlaps(from, to)
	}, startAsc), nil
}

func (r *memoryBookingRepository) FindActiveByRoom(_ context.Context, roomID string, now time.Time) ([]*model.Booking, error) {
	return r.filter(activeIn(roomID, now), startAsc), nil
}

func (r *memoryBookingRepository) FindByOrganizerEmail(_ context.Context, email string) ([]*model.Booking, error) {
	return r.filter(func(b model.Booking) bool {
		return b.OrganizerEmail == email
	}, startDesc), nil
}

func (r *memoryBookingRepository) FindByStatus(_ context.Context, status model.BookingStatus) ([]*model.Booking, error) {
	return r.filter(func(b model.Booking) bool {
		return b.Status == status
	}, startAsc), nil
}

func (r *memoryBookingRepository) CountActive(_ context.Context, roomID string, now time.Time) (int64, error) {
	return int64(len(r.filter(activeIn(roomID, now), startAsc))), nil
}

func activeIn(roomID string, now time.Time) func(model.Booking) bool {
	return func(b model.Booking) bool {
		return b.RoomID == roomID && b.IsActive() && b.EndTime.After(now)
	}
}

func (r *memoryBookingRepository) BulkMarkExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := r.clock.Now()
	var previous []model.Booking
	for id, b := range r.bookings {
		if !b.IsActive() || !b.EndTime.Before(now) {
			continue
		}
		previous = append(previous, b)
		b.MarkExpired()
		b.Touch(stamp)
		r.bookings[id] = b
	}

	if len(previous) > 0 {
		memory.OnRollback(ctx, func() {
			r.mu.Lock()
			for _, b := range previous {
				r.bookings[b.ID] = b
			}
			r.mu.Unlock()
		})
	}
	return int64(len(previous)), nil
}

func startAsc(a, b *model.Booking) bool {
	return a.StartTime.Before(b.StartTime)
}

func startDesc(a, b *model.Booking) bool {
	return a.StartTime.After(b.StartTime)
}

func (r *memoryBookingRepository) filter(keep func(model.Booking) bool, less func(a, b *model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookings := []*model.Booking{}
	for _, b := range r.bookings {
		if keep(b) {
			booking := b
			bookings = append(bookings, &booking)
		}
	}
	sort.SliceStable(bookings, func(i, j int) bool { return less(bookings[i], bookings[j]) })
	return bookings
}
