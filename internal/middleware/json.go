package middleware

import (
	"encoding/json"
	"net/http"

	"go-art-session/internal/model"
)

// writeFailure renders the same error envelope the handlers use.
func writeFailure(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
