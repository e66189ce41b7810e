package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeConflict            = "CONFLICT"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeBookingConflict     = "BOOKING_CONFLICT"
	CodeRoomNotAvailable    = "ROOM_NOT_AVAILABLE"
	CodeInvalidBookingState = "INVALID_BOOKING_STATE"
	CodeInvalidInterval     = "INVALID_INTERVAL"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeInternal            = "INTERNAL_ERROR"
	CodeBadRequest          = "BAD_REQUEST"
	CodeTimeout             = "TIMEOUT"
	CodeBusy                = "BUSY"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA_TYPE"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidArgument(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidArgument,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidInterval(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInterval,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Duplicate(resource, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicateEntry,
		Message:    fmt.Sprintf("%s with %s '%s' already exists", resource, field, value),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"resource": resource,
			"field":    field,
			"value":    value,
		},
	}
}

// BookingConflict reports an overlap with active bookings of the room.
// conflicts is rendered as-is into the response details and may be nil.
func BookingConflict(roomID string, start, end time.Time, conflicts any) *AppError {
	details := map[string]any{
		"room_id":    roomID,
		"start_time": start.UTC().Format(time.RFC3339),
		"end_time":   end.UTC().Format(time.RFC3339),
	}
	if conflicts != nil {
		details["conflicts"] = conflicts
	}
	return &AppError{
		Code: CodeBookingConflict,
		Message: fmt.Sprintf("Room %s is already booked for the requested period (%s - %s)",
			roomID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

func RoomNotAvailable(roomID string) *AppError {
	return &AppError{
		Code:       CodeRoomNotAvailable,
		Message:    fmt.Sprintf("Room %s is not available for booking", roomID),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"room_id": roomID},
	}
}

func InvalidBookingState(message, bookingID, status string) *AppError {
	return &AppError{
		Code:       CodeInvalidBookingState,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"booking_id": bookingID,
			"status":     status,
		},
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Busy(message string) *AppError {
	return &AppError{
		Code:       CodeBusy,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    message,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
