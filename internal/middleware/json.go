package middleware

import (
	"encoding/json"
	"net/http"

	"ride-console/internal/model"
)

// writeError answers with the console's error envelope.
func writeError(w http.ResponseWriter, status int, code string, message string, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func jsonEncode(w http.ResponseWriter, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}
