package validator

import (
	"errors"
	"testing"
	"time"

	"huddle/pkg/clock"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"
	"huddle/pkg/validation"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newValidator() *BookingValidator {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	return NewBookingValidator(clock.NewManual(now), log)
}

func validRequest() model.CreateBookingRequest {
	return model.CreateBookingRequest{
		RoomID:         "0b8f7f57-8a43-4a5e-9a36-0c6c0c2d7b11",
		Title:          "Planning",
		OrganizerEmail: "lead@example.com",
		StartTime:      now.Add(time.Hour),
		EndTime:        now.Add(2 * time.Hour),
	}
}

func TestBookingValidator_Validate(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name      string
		mutate    func(r *model.CreateBookingRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *model.CreateBookingRequest) {}},
		{name: "room id not a uuid", mutate: func(r *model.CreateBookingRequest) { r.RoomID = "12" }, wantField: "room_id"},
		{name: "missing room", mutate: func(r *model.CreateBookingRequest) { r.RoomID = "" }, wantField: "room_id"},
		{name: "blank title", mutate: func(r *model.CreateBookingRequest) { r.Title = " " }, wantField: "title"},
		{name: "bad email", mutate: func(r *model.CreateBookingRequest) { r.OrganizerEmail = "lead" }, wantField: "organizer_email"},
		{name: "missing start", mutate: func(r *model.CreateBookingRequest) { r.StartTime = time.Time{} }, wantField: "start_time"},
		{name: "start in the past", mutate: func(r *model.CreateBookingRequest) { r.StartTime = now.Add(-time.Minute) }, wantField: "start_time"},
		{name: "start equals now", mutate: func(r *model.CreateBookingRequest) { r.StartTime = now }, wantField: "start_time"},
		{name: "end before start is left to the interval check", mutate: func(r *model.CreateBookingRequest) { r.EndTime = now.Add(30 * time.Minute) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := v.Validate(&req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs validation.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("field = %s, want %s", verrs[0].Field, tt.wantField)
			}
		})
	}
}

func TestBookingValidator_ValidateUpdate(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name     string
		update   model.BookingUpdate
		wantCode string
	}{
		{name: "title only", update: model.BookingUpdate{Title: model.Some("Retro")}},
		{name: "future start", update: model.BookingUpdate{StartTime: model.Some(now.Add(time.Hour))}},
		{name: "empty", update: model.BookingUpdate{}, wantCode: apperrors.CodeInvalidArgument},
		{name: "null title", update: model.BookingUpdate{Title: model.Null[string]()}, wantCode: apperrors.CodeInvalidArgument},
		{name: "null room", update: model.BookingUpdate{RoomID: model.Null[string]()}, wantCode: apperrors.CodeInvalidArgument},
		{name: "null end", update: model.BookingUpdate{EndTime: model.Null[time.Time]()}, wantCode: apperrors.CodeInvalidArgument},
		{name: "room not a uuid", update: model.BookingUpdate{RoomID: model.Some("room-2")}, wantCode: "validation"},
		{name: "blank title", update: model.BookingUpdate{Title: model.Some("  ")}, wantCode: "validation"},
		{name: "past end", update: model.BookingUpdate{EndTime: model.Some(now.Add(-time.Hour))}, wantCode: "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpdate(&tt.update)
			switch tt.wantCode {
			case "":
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			case "validation":
				var verrs validation.ValidationErrors
				if !errors.As(err, &verrs) {
					t.Errorf("expected ValidationErrors, got %v", err)
				}
			default:
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Errorf("expected code %s, got %v", tt.wantCode, err)
				}
			}
		})
	}
}

func TestBookingValidator_ValidateEmail(t *testing.T) {
	v := newValidator()

	if err := v.ValidateEmail("lead@example.com"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "lead", "@example.com"} {
		if err := v.ValidateEmail(bad); err == nil {
			t.Errorf("ValidateEmail(%q) should fail", bad)
		}
	}
}
