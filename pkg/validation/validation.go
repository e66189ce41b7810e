package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"huddle/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an API response.
func (v ValidationErrors) Details() map[string]any {
	return map[string]any{"errors": []ValidationError(v)}
}

type optionalValue interface {
	ValidationValue() any
}

// New returns a validator that reports JSON field names, understands
// model.Optional fields and knows the "notblank" tag.
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if o, ok := field.Interface().(optionalValue); ok {
			return o.ValidationValue()
		}
		return nil
	},
		model.Optional[string]{},
		model.Optional[int]{},
		model.Optional[bool]{},
		model.Optional[time.Time]{},
	)

	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		return nil, fmt.Errorf("register 'notblank': %w", err)
	}

	return v, nil
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(field.String()) != ""
}

// Struct validates s and converts failures into ValidationErrors.
func Struct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return Translate(validationErrs)
		}
		return err
	}
	return nil
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "notblank":
			message = fmt.Sprintf("%s must not be blank", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "uuid":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
