package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "huddle/internal/bookings/errors"
	"huddle/internal/bookings/repository"
	"huddle/internal/bookings/validator"
	"huddle/internal/events"
	roomserrors "huddle/internal/rooms/errors"
	roomsrepository "huddle/internal/rooms/repository"
	"huddle/pkg/clock"
	"huddle/pkg/db"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"
	"huddle/pkg/sanitizer"
	"huddle/pkg/validation"
)

type BookingService interface {
	Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error)
	Confirm(ctx context.Context, id string) (*model.Booking, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)

	IsTimeSlotAvailable(ctx context.Context, roomID string, start, end time.Time) (bool, error)
	FindConflicts(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error)
	FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error)
	FindActiveByRoom(ctx context.Context, roomID string) ([]*model.Booking, error)
	FindByOrganizer(ctx context.Context, email string) ([]*model.Booking, error)
	FindByStatus(ctx context.Context, status string) ([]*model.Booking, error)
	CountActive(ctx context.Context, roomID string) (int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	rooms     roomsrepository.RoomRepository
	engine    *ConflictEngine
	txManager db.TransactionManager
	validator *validator.BookingValidator
	clock     clock.Clock
	publisher events.Publisher
	log       *logger.Logger
}

func NewBookingService(
	repo repository.BookingRepository,
	rooms roomsrepository.RoomRepository,
	txManager db.TransactionManager,
	validator *validator.BookingValidator,
	clk clock.Clock,
	publisher events.Publisher,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		repo:      repo,
		rooms:     rooms,
		engine:    NewConflictEngine(repo),
		txManager: txManager,
		validator: validator,
		clock:     clk,
		publisher: publisher,
		log:       log,
	}
}

// ConflictSummary is what a BOOKING_CONFLICT response reveals about each
// conflicting booking.
type ConflictSummary struct {
	ID        string              `json:"id"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Status    model.BookingStatus `json:"status"`
}

func summarize(bookings []*model.Booking) []ConflictSummary {
	out := make([]ConflictSummary, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, ConflictSummary{ID: b.ID, StartTime: b.StartTime, EndTime: b.EndTime, Status: b.Status})
	}
	return out
}

// Create books a room. The room row is locked for the whole check-then-insert
// sequence, so two requests for overlapping slots on one room cannot both
// pass the overlap check.
func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	req.Title = sanitizer.NormalizeTitle(req.Title)
	req.OrganizerEmail = sanitizer.SanitizeEmail(req.OrganizerEmail)
	if roomID, ok := model.CanonicalID(req.RoomID); ok {
		req.RoomID = roomID
	}

	if err := s.validate(ctx, s.validator.Validate(req)); err != nil {
		return nil, err
	}
	if err := model.ValidateInterval(req.StartTime, req.EndTime); err != nil {
		return nil, ruleToAppError(err, nil)
	}

	var booking *model.Booking
	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		room, err := s.lockBookableRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}

		if err := s.checkOverlap(ctx, room.ID, req.StartTime, req.EndTime, ""); err != nil {
			return err
		}

		b, err := model.NewBooking(room.ID, req.Title, req.OrganizerEmail, req.StartTime, req.EndTime)
		if err != nil {
			return ruleToAppError(err, nil)
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{roomID: req.RoomID, start: req.StartTime, end: req.EndTime}, "Failed to create booking")
	}

	s.log.WithContext(ctx).Info("Booking created successfully",
		"id", booking.ID,
		"room_id", booking.RoomID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
	)
	s.publish(ctx, events.BookingCreated, booking)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	id, err := canonicalBookingID(id)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{bookingID: id}, "Failed to retrieve booking")
	}
	return booking, nil
}

// Update applies the fields present in update. The booking is locked first,
// then the room it ends up in; an edit that would overlap another active
// booking always fails with BOOKING_CONFLICT.
func (s *bookingService) Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	id, err := canonicalBookingID(id)
	if err != nil {
		return nil, err
	}
	if update.Title.HasValue() {
		update.Title.Value = sanitizer.NormalizeTitle(update.Title.Value)
	}
	if update.RoomID.HasValue() {
		if roomID, ok := model.CanonicalID(update.RoomID.Value); ok {
			update.RoomID.Value = roomID
		}
	}

	if err := s.validate(ctx, s.validator.ValidateUpdate(update)); err != nil {
		return nil, err
	}

	target := errTarget{bookingID: id}
	var booking *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return apperrors.InvalidBookingState(
				fmt.Sprintf("Cannot modify booking in status %s", current.Status), current.ID, string(current.Status))
		}

		roomID := update.RoomID.OrElse(current.RoomID)
		start := update.StartTime.OrElse(current.StartTime).UTC()
		end := update.EndTime.OrElse(current.EndTime).UTC()
		target = errTarget{bookingID: id, roomID: roomID, start: start, end: end}

		roomChanged := roomID != current.RoomID
		timeChanged := !start.Equal(current.StartTime) || !end.Equal(current.EndTime)

		if roomChanged || timeChanged {
			if err := model.ValidateInterval(start, end); err != nil {
				return ruleToAppError(err, current)
			}

			if roomChanged {
				if _, err := s.lockBookableRoom(ctx, roomID); err != nil {
					return err
				}
			} else if _, err := s.rooms.FindByIDForUpdate(ctx, roomID); err != nil {
				return err
			}

			if err := s.checkOverlap(ctx, roomID, start, end, current.ID); err != nil {
				return err
			}
		}

		if roomChanged {
			if err := current.ChangeRoom(roomID); err != nil {
				return ruleToAppError(err, current)
			}
		}
		if timeChanged {
			if err := current.SetTimeInterval(start, end); err != nil {
				return ruleToAppError(err, current)
			}
		}
		if title, ok := update.Title.Get(); ok {
			if err := current.SetTitle(title); err != nil {
				return ruleToAppError(err, current)
			}
		}

		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, s.mapError(ctx, err, target, "Failed to update booking")
	}

	s.log.WithContext(ctx).Info("Booking updated successfully",
		"id", booking.ID,
		"room_id", booking.RoomID,
		"version", booking.Version,
	)
	s.publish(ctx, events.BookingUpdated, booking)
	return booking, nil
}

// Confirm and Cancel take no lock. They rely on the version check in
// BookingRepository.Update, so a transition that lost a race reports CONFLICT.
func (s *bookingService) Confirm(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, "confirm", events.BookingConfirmed, func(b *model.Booking) error {
		return b.Confirm(s.clock.Now())
	})
}

func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, "cancel", events.BookingCancelled, func(b *model.Booking) error {
		return b.Cancel()
	})
}

func (s *bookingService) transition(ctx context.Context, id, action, eventType string, apply func(b *model.Booking) error) (*model.Booking, error) {
	id, err := canonicalBookingID(id)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{bookingID: id}, fmt.Sprintf("Failed to %s booking", action))
	}

	if err := apply(booking); err != nil {
		s.log.WithContext(ctx).Warn("Booking transition rejected",
			"id", id,
			"action", action,
			"status", booking.Status,
			"error", err,
		)
		return nil, ruleToAppError(err, booking)
	}

	if err := s.repo.Update(ctx, booking); err != nil {
		return nil, s.mapError(ctx, err, errTarget{bookingID: id}, fmt.Sprintf("Failed to %s booking", action))
	}

	s.log.WithContext(ctx).Info("Booking status changed", "id", booking.ID, "status", booking.Status)
	s.publish(ctx, eventType, booking)
	return booking, nil
}

func (s *bookingService) IsTimeSlotAvailable(ctx context.Context, roomID string, start, end time.Time) (bool, error) {
	roomID, err := s.checkQuery(ctx, roomID, start, end)
	if err != nil {
		return false, err
	}

	overlaps, err := s.engine.HasOverlap(ctx, roomID, start, end, "")
	if err != nil {
		return false, s.mapError(ctx, err, errTarget{roomID: roomID}, "Failed to check availability")
	}
	return !overlaps, nil
}

func (s *bookingService) FindConflicts(ctx context.Context, roomID string, start, end time.Time) ([]*model.Booking, error) {
	roomID, err := s.checkQuery(ctx, roomID, start, end)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.engine.FindOverlapping(ctx, roomID, start, end)
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{roomID: roomID}, "Failed to find conflicts")
	}
	return conflicts, nil
}

func (s *bookingService) checkQuery(ctx context.Context, roomID string, start, end time.Time) (string, error) {
	if start.IsZero() || end.IsZero() {
		return "", apperrors.InvalidArgument("Start time and end time are required")
	}
	if !end.After(start) {
		return "", apperrors.InvalidInterval("End time must be after start time")
	}
	return s.requireRoom(ctx, roomID)
}

// requireRoom canonicalises roomID and fails with NOT_FOUND when no such room
// exists, active or not.
func (s *bookingService) requireRoom(ctx context.Context, roomID string) (string, error) {
	roomID, err := canonicalRoomID(roomID)
	if err != nil {
		return "", err
	}

	exists, err := s.rooms.ExistsByID(ctx, roomID)
	if err != nil {
		return "", s.mapError(ctx, err, errTarget{roomID: roomID}, "Failed to check room")
	}
	if !exists {
		return "", apperrors.NotFoundWithID("Room", roomID)
	}
	return roomID, nil
}

func (s *bookingService) FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperrors.InvalidArgument("Both 'from' and 'to' are required")
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInterval("'to' must be after 'from'")
	}
	roomID, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.engine.FindByRoomAndRange(ctx, roomID, from, to)
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{roomID: roomID}, "Failed to retrieve bookings")
	}
	return bookings, nil
}

func (s *bookingService) FindActiveByRoom(ctx context.Context, roomID string) ([]*model.Booking, error) {
	roomID, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.FindActiveByRoom(ctx, roomID, s.clock.Now())
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{roomID: roomID}, "Failed to retrieve active bookings")
	}
	return bookings, nil
}

func (s *bookingService) FindByOrganizer(ctx context.Context, email string) ([]*model.Booking, error) {
	email = sanitizer.SanitizeEmail(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, s.validate(ctx, err)
	}

	bookings, err := s.repo.FindByOrganizerEmail(ctx, email)
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{}, "Failed to retrieve bookings")
	}
	return bookings, nil
}

func (s *bookingService) FindByStatus(ctx context.Context, status string) ([]*model.Booking, error) {
	parsed, err := model.ParseBookingStatus(status)
	if err != nil {
		return nil, ruleToAppError(err, nil)
	}

	bookings, err := s.repo.FindByStatus(ctx, parsed)
	if err != nil {
		return nil, s.mapError(ctx, err, errTarget{}, "Failed to retrieve bookings")
	}
	return bookings, nil
}

func (s *bookingService) CountActive(ctx context.Context, roomID string) (int64, error) {
	roomID, err := s.requireRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}

	count, err := s.repo.CountActive(ctx, roomID, s.clock.Now())
	if err != nil {
		return 0, s.mapError(ctx, err, errTarget{roomID: roomID}, "Failed to count active bookings")
	}
	return count, nil
}

// lockBookableRoom locks the room and rejects rooms that are inactive.
func (s *bookingService) lockBookableRoom(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.rooms.FindByIDForUpdate(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, apperrors.RoomNotAvailable(room.ID)
	}
	return room, nil
}

func (s *bookingService) checkOverlap(ctx context.Context, roomID string, start, end time.Time, excludeID string) error {
	overlaps, err := s.engine.HasOverlap(ctx, roomID, start, end, excludeID)
	if err != nil {
		return err
	}
	if !overlaps {
		return nil
	}

	conflicts, err := s.engine.findOverlappingExcept(ctx, roomID, start, end, excludeID)
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Warn("Booking conflict detected",
		"room_id", roomID,
		"start_time", start,
		"end_time", end,
		"conflicts", len(conflicts),
	)
	return apperrors.BookingConflict(roomID, start, end, summarize(conflicts))
}

func canonicalRoomID(roomID string) (string, error) {
	if roomID == "" {
		return "", apperrors.InvalidInput("Room ID cannot be empty")
	}
	id, ok := model.CanonicalID(roomID)
	if !ok {
		return "", apperrors.InvalidInput("Invalid room ID format")
	}
	return id, nil
}

func canonicalBookingID(id string) (string, error) {
	if id == "" {
		return "", apperrors.InvalidInput("Booking ID cannot be empty")
	}
	canonical, ok := model.CanonicalID(id)
	if !ok {
		return "", apperrors.InvalidInput("Invalid booking ID format")
	}
	return canonical, nil
}

func (s *bookingService) validate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}

	s.log.WithContext(ctx).Warn("Booking validation failed", "error", err)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Booking validation failed", verrs.Details())
	}
	return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
}

// errTarget carries what an error response may mention about the request.
type errTarget struct {
	bookingID string
	roomID    string
	start     time.Time
	end       time.Time
}

func (s *bookingService) mapError(ctx context.Context, err error, target errTarget, message string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", target.bookingID)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, roomserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Room", target.roomID)
	case errors.Is(err, roomserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid room ID format")
	case errors.Is(err, db.ErrExclusionViolation):
		return apperrors.BookingConflict(target.roomID, target.start, target.end, nil)
	case errors.Is(err, db.ErrStaleVersion):
		return apperrors.Conflict("Booking was modified concurrently, retry the request")
	case errors.Is(err, db.ErrLockTimeout):
		s.log.WithContext(ctx).Warn("Lock wait timed out", "booking_id", target.bookingID, "room_id", target.roomID)
		return apperrors.Busy("Room is busy, retry the request")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Request timed out")
	}

	s.log.WithContext(ctx).Error(message,
		"booking_id", target.bookingID,
		"room_id", target.roomID,
		"error", err,
	)
	return apperrors.Internal(message, err)
}

// ruleToAppError translates a rejection from the booking state machine.
// booking is nil when no stored booking is involved.
func ruleToAppError(err error, booking *model.Booking) error {
	switch {
	case errors.Is(err, model.ErrInvalidInterval):
		return apperrors.InvalidInterval(err.Error())
	case errors.Is(err, model.ErrInvalidArgument):
		return apperrors.InvalidArgument(err.Error())
	case errors.Is(err, model.ErrInvalidState):
		if booking == nil {
			return apperrors.InvalidBookingState(err.Error(), "", "")
		}
		return apperrors.InvalidBookingState(err.Error(), booking.ID, string(booking.Status))
	}
	return apperrors.Internal("Unexpected domain error", err)
}

// publish runs after commit; a failed publish is logged and not returned.
func (s *bookingService) publish(ctx context.Context, eventType string, booking *model.Booking) {
	if err := s.publisher.Publish(ctx, events.Event{Type: eventType, Key: booking.RoomID, Payload: booking}); err != nil {
		s.log.WithContext(ctx).Error("Failed to publish booking event",
			"type", eventType,
			"id", booking.ID,
			"error", err,
		)
	}
}
