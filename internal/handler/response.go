package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-art-session/internal/model"
	"go-art-session/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, notice string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Notice:  notice,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.Is(err, model.ErrNoRefreshToken), errors.Is(err, model.ErrRefreshFailed):
		status = http.StatusUnauthorized
		body.Code = "SESSION_EXPIRED"
		body.Message = "Session expired. Please login again."
	case errors.Is(err, model.ErrNoToken):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "No token found"
	case errors.Is(err, model.ErrAuthPayload):
		status = http.StatusBadGateway
		body.Code = "INVALID_AUTH_PAYLOAD"
		body.Message = "Invalid authentication payload"
	case errors.Is(err, model.ErrSessionSuperseded):
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Session changed while the request was in flight"
	case errors.Is(err, model.ErrReservedKey):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Key is managed by the session"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadGateway
		}
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	case errors.Is(err, model.ErrStorage):
		body.Code = "STORAGE_ERROR"
		body.Message = "Credential storage unavailable"
		slog.Error("credential storage failure", "error", err)
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}
