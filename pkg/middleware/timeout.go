package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
)

// deadlineWriter drops handler output once the deadline answer has gone out.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.started {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}

// expire claims the response for the deadline answer. It reports false when
// the handler already started writing its own.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.started
}

// RequestTimeout bounds every request by timeout. The deadline travels in the
// request context so mongo and redis calls made by the handler give up too.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
						return
					}
					close(done)
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case p := <-panicked:
				// rethrown on the serving goroutine so Recovery sees it
				panic(p)
			case <-ctx.Done():
				if !dw.expire() {
					return
				}
				log.Warn("Request deadline exceeded",
					"request_id", RequestID(r.Context()),
					"user_id", UserID(r.Context()),
					"path", r.URL.Path,
					"timeout", timeout,
				)
				reject(w, http.StatusGatewayTimeout, apperrors.CodeTimeout, "Request timed out")
			}
		})
	}
}
