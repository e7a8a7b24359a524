package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ride-console/internal/model"
	"ride-console/pkg/apierror"
)

const maxBodyBytes = 1 << 20

// errorBody accepts both the framework validation shape
// {message, errors: {field: [...]}} and the {error: {code, message}} envelope.
type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseResponseError consumes and closes the body of a non-2xx response and
// translates it into an *apierror.APIError.
func parseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apierror.New("BACKEND_ERROR", "failed to read error response", err.Error(), resp.StatusCode)
	}

	var parsed errorBody
	message := ""
	code := ""
	if json.Unmarshal(raw, &parsed) == nil {
		message = parsed.Message
		if parsed.Error != nil {
			code = parsed.Error.Code
			if message == "" {
				message = parsed.Error.Message
			}
		}
	} else {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return apierror.Validation(message, parsed.Errors).Wrap(model.ErrInvalidInput)
	case resp.StatusCode == http.StatusUnauthorized:
		return apierror.New("UNAUTHORIZED", message, "", http.StatusUnauthorized).Wrap(model.ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden:
		return apierror.New("FORBIDDEN", message, "", http.StatusForbidden).Wrap(model.ErrForbidden)
	case resp.StatusCode == http.StatusNotFound:
		return apierror.New("NOT_FOUND", message, "", http.StatusNotFound).Wrap(model.ErrNotFound)
	default:
		if code == "" {
			code = "BACKEND_ERROR"
		}
		return apierror.New(code, message, fmt.Sprintf("status %d", resp.StatusCode), resp.StatusCode)
	}
}
