package middleware

import (
	"net/http"
	"runtime/debug"

	apperrors "docslot/pkg/errors"
	"docslot/pkg/logger"
)

// Recovery turns a handler panic into a 500. http.ErrAbortHandler is re-raised so the server
// aborts the connection as it would without this middleware.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Error("Panic recovered",
					"request_id", RequestID(r),
					"error", p,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				reject(w, http.StatusInternalServerError, apperrors.CodeInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
