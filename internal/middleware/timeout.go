package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-art-session/internal/model"
)

// Timeout bounds non-streaming requests. Do not put it in front of
// /session/events or /session/ws: http.TimeoutHandler buffers the response
// and cannot flush or hijack.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "REQUEST_TIMEOUT",
			Message: "request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, timeout, string(message))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The 503 body bypasses next, so label it up front; next overrides on success.
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}
