package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Page is the descriptor answered by page routes. The browser shell paints
// it; the console only decides whether it may be shown.
type Page struct {
	Name  string `json:"page"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// RefreshHint is the payload of a refresh.requested event: the page at Path
// should reload its data, or be navigated to when Navigate is set.
type RefreshHint struct {
	Path     string `json:"path"`
	Navigate bool   `json:"navigate,omitempty"`
}
