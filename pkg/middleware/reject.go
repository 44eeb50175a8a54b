package middleware

import (
	"net/http"

	apperrors "parkshare/pkg/errors"
	httputil "parkshare/pkg/http"
)

// reject answers a request the chain refused before it reached a handler,
// using the same error envelope handlers write.
func reject(w http.ResponseWriter, status int, code, message string) {
	_ = httputil.WriteJSON(w, status, httputil.ErrorResponse{Code: code, Error: message})
}

func rejectAppError(w http.ResponseWriter, err *apperrors.AppError) {
	_ = httputil.WriteError(w, err)
}
