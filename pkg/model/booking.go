package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusExpired   BookingStatus = "EXPIRED"
)

const (
	MinBookingDuration = 15 * time.Minute
	MaxBookingDuration = 8 * time.Hour

	MaxBookingTitleLength = 200
	MaxEmailLength        = 255
)

// ActiveStatuses are the statuses that hold a room and may conflict.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusExpired:
		return status, nil
	}
	return "", ruleError(ErrInvalidArgument, "Unknown booking status '%s'", s)
}

type Booking struct {
	ID             string        `json:"id" bson:"_id" db:"id"`
	RoomID         string        `json:"room_id" bson:"room_id" db:"room_id"`
	Title          string        `json:"title" bson:"title" db:"title"`
	OrganizerEmail string        `json:"organizer_email" bson:"organizer_email" db:"organizer_email"`
	StartTime      time.Time     `json:"start_time" bson:"start_time" db:"start_time"`
	EndTime        time.Time     `json:"end_time" bson:"end_time" db:"end_time"`
	Status         BookingStatus `json:"status" bson:"status" db:"status"`
	Audit          `bson:",inline"`
}

type CreateBookingRequest struct {
	RoomID         string    `json:"room_id" validate:"required,uuid"`
	Title          string    `json:"title" validate:"notblank,max=200"`
	OrganizerEmail string    `json:"organizer_email" validate:"required,email,max=255"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required"`
}

// BookingUpdate carries a partial booking edit. Only fields that are present
// are applied; explicit nulls are rejected.
type BookingUpdate struct {
	RoomID    Optional[string]    `json:"room_id,omitzero" validate:"omitempty,uuid"`
	Title     Optional[string]    `json:"title,omitzero" validate:"omitempty,notblank,max=200"`
	StartTime Optional[time.Time] `json:"start_time,omitzero"`
	EndTime   Optional[time.Time] `json:"end_time,omitzero"`
}

func (u *BookingUpdate) IsEmpty() bool {
	return !u.RoomID.Set && !u.Title.Set && !u.StartTime.Set && !u.EndTime.Set
}

type Availability struct {
	Available bool       `json:"available"`
	Conflicts []*Booking `json:"conflicts,omitempty"`
}

// ValidateInterval checks ordering and the allowed duration window.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ruleError(ErrInvalidArgument, "Start time and end time are required")
	}
	if !end.After(start) {
		return ruleError(ErrInvalidInterval, "End time must be after start time")
	}
	duration := end.Sub(start)
	if duration < MinBookingDuration {
		return ruleError(ErrInvalidInterval, "Booking duration must be at least %d minutes, got %d",
			int(MinBookingDuration.Minutes()), int(duration.Minutes()))
	}
	if duration > MaxBookingDuration {
		return ruleError(ErrInvalidInterval, "Booking duration must not exceed %d hours",
			int(MaxBookingDuration.Hours()))
	}
	return nil
}

// IntervalsOverlap is the half-open test: touching endpoints do not overlap.
func IntervalsOverlap(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

// NewBooking builds a PENDING booking.
func NewBooking(roomID, title, organizerEmail string, start, end time.Time) (*Booking, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ruleError(ErrInvalidArgument, "Room is required")
	}
	if strings.TrimSpace(organizerEmail) == "" {
		return nil, ruleError(ErrInvalidArgument, "Organizer email is required")
	}
	if utf8.RuneCountInString(organizerEmail) > MaxEmailLength {
		return nil, ruleError(ErrInvalidArgument, "Organizer email must not exceed %d characters", MaxEmailLength)
	}
	if err := ValidateInterval(start, end); err != nil {
		return nil, err
	}

	b := &Booking{
		RoomID:         roomID,
		OrganizerEmail: organizerEmail,
		StartTime:      start.UTC(),
		EndTime:        end.UTC(),
		Status:         StatusPending,
	}
	if err := b.applyTitle(title); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Booking) IsActive() bool {
	return b.Status.IsActive()
}

func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

func (b *Booking) Overlaps(start, end time.Time) bool {
	return IntervalsOverlap(b.StartTime, b.EndTime, start, end)
}

func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return ruleError(ErrInvalidState, "Cannot confirm booking in status %s", b.Status)
	}
	if b.EndTime.Before(now) {
		return ruleError(ErrInvalidState, "Cannot confirm expired booking")
	}
	b.Status = StatusConfirmed
	return nil
}

func (b *Booking) Cancel() error {
	if !b.IsActive() {
		return ruleError(ErrInvalidState, "Cannot cancel booking in status %s", b.Status)
	}
	b.Status = StatusCancelled
	return nil
}

// MarkExpired is driven only by the expiration sweep. Terminal bookings are
// left untouched.
func (b *Booking) MarkExpired() {
	if b.IsActive() {
		b.Status = StatusExpired
	}
}

func (b *Booking) SetTimeInterval(start, end time.Time) error {
	if err := b.requireActive("change the time of"); err != nil {
		return err
	}
	if err := ValidateInterval(start, end); err != nil {
		return err
	}
	b.StartTime = start.UTC()
	b.EndTime = end.UTC()
	return nil
}

func (b *Booking) ChangeRoom(roomID string) error {
	if err := b.requireActive("move"); err != nil {
		return err
	}
	if strings.TrimSpace(roomID) == "" {
		return ruleError(ErrInvalidArgument, "Room is required")
	}
	b.RoomID = roomID
	return nil
}

func (b *Booking) SetTitle(title string) error {
	if err := b.requireActive("rename"); err != nil {
		return err
	}
	return b.applyTitle(title)
}

func (b *Booking) applyTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ruleError(ErrInvalidArgument, "Title is required")
	}
	if utf8.RuneCountInString(title) > MaxBookingTitleLength {
		return ruleError(ErrInvalidArgument, "Title must not exceed %d characters", MaxBookingTitleLength)
	}
	b.Title = title
	return nil
}

func (b *Booking) requireActive(action string) error {
	if !b.IsActive() {
		return ruleError(ErrInvalidState, "Cannot %s booking in status %s", action, b.Status)
	}
	return nil
}
