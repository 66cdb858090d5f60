package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/textbrief/internal/api/response"
)

// Recovery turns a handler panic into a 500 {"error"} response. If the handler
// already started the response, only the log line is written. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newResponseRecorder(w)
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}

			slog.ErrorContext(r.Context(), "panic recovered",
				"panic", v,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
				"response_started", rec.wroteHeader,
			)
			if !rec.wroteHeader {
				response.Error(rec, http.StatusInternalServerError, "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(rec, r)
	})
}
