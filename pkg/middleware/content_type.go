package middleware

import (
	"net/http"
	"strings"

	apperrors "huddle/pkg/errors"
	httputil "huddle/pkg/http"
	"huddle/pkg/logger"
)

// ContentTypeValidation rejects write requests that carry a body in anything
// other than JSON. Bodyless POSTs such as confirm and cancel pass through.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiresContentType(r) {
				contentType := extractContentType(r.Header.Get("Content-Type"))

				if contentType != "application/json" {
					rejectInvalidContentType(w, log, r, contentType)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requiresContentType(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

func extractContentType(header string) string {
	if header == "" {
		return ""
	}

	parts := strings.Split(header, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

func rejectInvalidContentType(w http.ResponseWriter, log *logger.Logger, r *http.Request, contentType string) {
	log.WithContext(r.Context()).Warn("Invalid Content-Type header",
		"content_type", contentType,
		"path", r.URL.Path,
		"method", r.Method,
	)

	_ = httputil.WriteError(w, apperrors.New(apperrors.CodeUnsupportedMedia,
		"Content-Type must be application/json", http.StatusUnsupportedMediaType))
}
