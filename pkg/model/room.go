package model

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxRoomNameLength        = 100
	MaxRoomDescriptionLength = 1000
)

type Room struct {
	ID          string  `json:"id" bson:"_id" db:"id"`
	Name        string  `json:"name" bson:"name" db:"name"`
	Capacity    int     `json:"capacity" bson:"capacity" db:"capacity"`
	Description *string `json:"description,omitempty" bson:"description,omitempty" db:"description"`
	Active      bool    `json:"active" bson:"active" db:"active"`
	Audit       `bson:",inline"`
}

type CreateRoomRequest struct {
	Name        string  `json:"name" validate:"notblank,max=100"`
	Capacity    int     `json:"capacity" validate:"required,min=1,max=1000"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// RoomUpdate carries a partial room edit. An explicit null description clears
// it; explicit nulls on the other fields are rejected.
type RoomUpdate struct {
	Name        Optional[string] `json:"name,omitzero" validate:"omitempty,notblank,max=100"`
	Capacity    Optional[int]    `json:"capacity,omitzero" validate:"omitempty,min=1,max=1000"`
	Description Optional[string] `json:"description,omitzero" validate:"omitempty,max=1000"`
	Active      Optional[bool]   `json:"active,omitzero"`
}

func (u *RoomUpdate) IsEmpty() bool {
	return !u.Name.Set && !u.Capacity.Set && !u.Description.Set && !u.Active.Set
}

// NewRoom builds an active room.
func NewRoom(name string, capacity int, description *string) (*Room, error) {
	r := &Room{Active: true}
	if err := r.Rename(name); err != nil {
		return nil, err
	}
	if err := r.SetCapacity(capacity); err != nil {
		return nil, err
	}
	if err := r.SetDescription(description); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Room) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ruleError(ErrInvalidArgument, "Room name is required")
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return ruleError(ErrInvalidArgument, "Room name must not exceed %d characters", MaxRoomNameLength)
	}
	r.Name = name
	return nil
}

func (r *Room) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return ruleError(ErrInvalidArgument, "Room capacity must be positive, got %d", capacity)
	}
	r.Capacity = capacity
	return nil
}

func (r *Room) SetDescription(description *string) error {
	if description == nil {
		r.Description = nil
		return nil
	}
	if utf8.RuneCountInString(*description) > MaxRoomDescriptionLength {
		return ruleError(ErrInvalidArgument, "Room description must not exceed %d characters", MaxRoomDescriptionLength)
	}
	d := *description
	r.Description = &d
	return nil
}

func (r *Room) Activate() {
	r.Active = true
}

func (r *Room) Deactivate() {
	r.Active = false
}
