package validator

import (
	"fmt"
	"time"

	"huddle/pkg/clock"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"
	"huddle/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	clock    clock.Clock
	logger   *logger.Logger
}

func NewBookingValidator(clk clock.Clock, log *logger.Logger) *BookingValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize booking validator", "error", err)
	}

	return &BookingValidator{
		validate: v,
		clock:    clk,
		logger:   log,
	}
}

// Validate checks the request shape and that both ends lie in the future.
// Ordering and duration are left to model.ValidateInterval so that they are
// reported as INVALID_INTERVAL.
func (v *BookingValidator) Validate(req *model.CreateBookingRequest) error {
	if err := validation.Struct(v.validate, req); err != nil {
		return err
	}

	return v.requireFuture(map[string]time.Time{
		"start_time": req.StartTime,
		"end_time":   req.EndTime,
	})
}

func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	if update.IsEmpty() {
		return apperrors.InvalidArgument("Update must contain at least one field")
	}

	nulls := []struct {
		field string
		null  bool
	}{
		{"room_id", update.RoomID.IsNull()},
		{"title", update.Title.IsNull()},
		{"start_time", update.StartTime.IsNull()},
		{"end_time", update.EndTime.IsNull()},
	}
	for _, n := range nulls {
		if n.null {
			return apperrors.InvalidArgument(fmt.Sprintf("Field '%s' cannot be null", n.field))
		}
	}

	if err := validation.Struct(v.validate, update); err != nil {
		return err
	}

	times := map[string]time.Time{}
	if start, ok := update.StartTime.Get(); ok {
		times["start_time"] = start
	}
	if end, ok := update.EndTime.Get(); ok {
		times["end_time"] = end
	}
	return v.requireFuture(times)
}

func (v *BookingValidator) requireFuture(times map[string]time.Time) error {
	now := v.clock.Now()

	var errs validation.ValidationErrors
	for _, field := range []string{"start_time", "end_time"} {
		t, ok := times[field]
		if ok && !t.After(now) {
			errs = append(errs, validation.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s must be in the future", field),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateEmail checks an organizer address used as a lookup key.
func (v *BookingValidator) ValidateEmail(email string) error {
	if err := v.validate.Var(email, "required,email,max=255"); err != nil {
		return validation.ValidationErrors{{
			Field:   "email",
			Message: "email must be a valid email address",
		}}
	}
	return nil
}
