package apierror

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is the error shape shared by the backend client and the console
// handlers. Fields is only populated for validation failures.
type APIError struct {
	Code       string              `json:"code"`
	Message    string              `json:"message"`
	Details    string              `json:"details,omitempty"`
	Fields     map[string][]string `json:"fields,omitempty"`
	HTTPStatus int                 `json:"-"`
	Err        error               `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, strings.Join(e.FieldNames(), ", "))
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FieldNames returns the names of the invalid fields in a stable order.
func (e *APIError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *APIError) IsValidation() bool {
	return e != nil && e.HTTPStatus == http.StatusUnprocessableEntity
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Validation builds a 422 error carrying field-keyed messages.
func Validation(message string, fields map[string][]string) *APIError {
	if message == "" {
		message = "the given data was invalid"
	}
	return &APIError{
		Code:       "VALIDATION_FAILED",
		Message:    message,
		Fields:     fields,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// Wrap attaches a sentinel so callers can match with errors.Is.
func (e *APIError) Wrap(err error) *APIError {
	e.Err = err
	return e
}
