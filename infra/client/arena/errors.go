package arena

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	NetworkErrorMessage = "Network error. Server is unreachable."
	unknownErrorMessage = "Unknown server error"
)

// APIError is what every failed call returns. Status is 0 when no response arrived.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 0 || e.Status >= 500
}

// StatusOf extracts the HTTP status from err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// messageFrom picks the human readable reason out of an error body: a bare string,
// or the "error" field, or the "message" field.
func messageFrom(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return unknownErrorMessage
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if s, ok := obj["error"].(string); ok {
			return s
		}
		if s, ok := obj["message"].(string); ok {
			return s
		}
		return unknownErrorMessage
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}

	return trimmed
}
