package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRoom(t *testing.T) {
	long := strings.Repeat("d", 1001)

	tests := []struct {
		name        string
		roomName    string
		capacity    int
		description *string
		wantErr     bool
	}{
		{"valid", "Everest", 12, nil, false},
		{"blank name", "  ", 12, nil, true},
		{"name too long", strings.Repeat("n", 101), 12, nil, true},
		{"zero capacity", "Everest", 0, nil, true},
		{"negative capacity", "Everest", -3, nil, true},
		{"description too long", "Everest", 12, &long, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRoom(tt.roomName, tt.capacity, tt.description)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !r.Active {
				t.Errorf("new rooms must be active")
			}
		})
	}
}

func TestRoom_SetDescriptionCopies(t *testing.T) {
	desc := "Projector"
	r, err := NewRoom("Baikal", 6, &desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	desc = "changed"
	if *r.Description != "Projector" {
		t.Errorf("room must keep its own copy of the description")
	}

	if err := r.SetDescription(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Description != nil {
		t.Errorf("nil description must clear the field")
	}
}

func TestRoom_ActiveToggle(t *testing.T) {
	r, _ := NewRoom("Everest", 12, nil)
	r.Deactivate()
	if r.Active {
		t.Errorf("expected inactive room")
	}
	r.Activate()
	if !r.Active {
		t.Errorf("expected active room")
	}
}
