package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ride-console/internal/backend"
	"ride-console/internal/model"
	"ride-console/pkg/apierror"
)

const maxBodyBytes = 64 << 10

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		body.Fields = apiErr.Fields
		if status == 0 || status >= 500 {
			// An upstream failure is not the console's.
			status = http.StatusBadGateway
		}
	} else if errors.Is(err, backend.ErrCircuitOpen) {
		status = http.StatusServiceUnavailable
		body.Code = "BACKEND_UNAVAILABLE"
		body.Message = "Backend is temporarily unavailable"
	} else if errors.Is(err, model.ErrUnauthorized) || errors.Is(err, model.ErrTokenExpired) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Resource not found"
	} else if errors.Is(err, model.ErrNoPendingConfirmation) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "No confirmation is pending"
	} else if errors.Is(err, model.ErrStaleConfirmation) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Confirmation was replaced or already resolved"
	} else if errors.Is(err, model.ErrSessionChanged) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Session changed while the request was in flight"
	} else if errors.Is(err, model.ErrInvalidChoice) {
		status = http.StatusUnprocessableEntity
		body.Code = "INVALID_CHOICE"
		body.Message = "Value is not one of the offered choices"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrUnknownAction) || errors.Is(err, model.ErrInvalidDuration) ||
		errors.Is(err, model.ErrInvalidTarget) || errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrMissingToken) || errors.Is(err, model.ErrInvalidResponse) {
		status = http.StatusBadGateway
		body.Code = "BAD_GATEWAY"
		body.Message = "Unexpected backend response"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads an optional JSON body. An empty body leaves dst as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}
