package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "huddle/pkg/errors"
)

// DecodeJSON reads the request body into dst and rejects unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.New(apperrors.CodeBadRequest,
				fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("Request body is required")
		default:
			return apperrors.InvalidInput("Invalid JSON body: " + err.Error())
		}
	}
	return nil
}

// QueryTime parses an RFC 3339 query parameter. A missing parameter is an
// error when required is set, otherwise it yields the zero time.
func QueryTime(r *http.Request, name string, required bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("Query parameter '%s' is required", name))
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("Query parameter '%s' must be an RFC 3339 timestamp, got: %s", name, raw))
	}
	return t, nil
}

func QueryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.InvalidInput(fmt.Sprintf("Query parameter '%s' must be a boolean, got: %s", name, raw))
	}
	return b, nil
}

// QueryInt returns the parameter and whether it was present.
func QueryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, apperrors.InvalidInput(fmt.Sprintf("Query parameter '%s' must be an integer, got: %s", name, raw))
	}
	return n, true, nil
}

func QueryString(r *http.Request, name string, required bool) (string, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" && required {
		return "", apperrors.InvalidInput(fmt.Sprintf("Query parameter '%s' is required", name))
	}
	return raw, nil
}
