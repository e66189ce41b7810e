package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "huddle/pkg/errors"
	httputil "huddle/pkg/http"
	"huddle/pkg/logger"
)

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithContext(r.Context()).Error("Panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					_ = httputil.WriteError(w, apperrors.Internal("panic", fmt.Errorf("%v", err)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
