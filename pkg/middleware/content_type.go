package middleware

import (
	"mime"
	"net/http"

	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
)

// ContentTypeValidation requires JSON on write requests that carry a body.
// Bodyless commands such as POST /spots/:id/disable pass through.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !carriesBody(r) {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				log.Warn("Invalid Content-Type header",
					"request_id", RequestID(r.Context()),
					"content_type", r.Header.Get("Content-Type"),
					"path", r.URL.Path,
					"method", r.Method,
				)
				reject(w, http.StatusUnsupportedMediaType, apperrors.CodeUnsupportedMediaType, "Content-Type must be application/json")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func carriesBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		// -1 is a chunked body of unknown length
		return r.ContentLength != 0
	default:
		return false
	}
}
