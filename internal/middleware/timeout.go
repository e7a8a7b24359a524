package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds API handlers. It buffers the response, so it must not wrap
// the websocket route.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			http.TimeoutHandler(next, timeout, message).ServeHTTP(w, r)
		})
	}
}
