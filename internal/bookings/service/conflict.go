package service

import (
	"context"
	"time"

	"huddle/internal/bookings/repository"
	"huddle/pkg/model"
)

// ConflictEngine answers overlap questions for one room. Only PENDING and
// CONFIRMED bookings take part, and intervals are half-open, so a booking
// ending at 10:00 does not conflict with one starting at 10:00.
type ConflictEngine struct {
	repo repository.BookingRepository
}

func NewConflictEngine(repo repository.BookingRepository) *ConflictEngine {
	return &ConflictEngine{repo: repo}
}

// HasOverlap ignores the booking with excludeID, which lets an edit be
// checked against everything but itself.
func (e *ConflictEngine) HasOverlap(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	return e.repo.ExistsOverlapping(ctx, roomID, start, end, excludeID)
}

func (e *ConflictEngine) FindOverlapping(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error) {
	return e.repo.FindOverlapping(ctx, roomID, start, end, "")
}

func (e *ConflictEngine) findOverlappingExcept(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	return e.repo.FindOverlapping(ctx, roomID, start, end, excludeID)
}

// FindByRoomAndRange lists bookings of any status that intersect [from, to).
func (e *ConflictEngine) FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
	return e.repo.FindByRoomAndRange(ctx, roomID, from, to)
}
