package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is a non-2xx answer from the backend. Message is what the user gets to see.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// newError looks in the body for a "message" or "error" field and falls back to a generic text.
func newError(status int, body []byte) *Error {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := text(payload.Message); msg != "" {
			return &Error{StatusCode: status, Message: msg}
		}
		if msg := text(payload.Error); msg != "" {
			return &Error{StatusCode: status, Message: msg}
		}
	}
	return &Error{StatusCode: status, Message: fmt.Sprintf("HTTP error! Status: %d", status)}
}

// text accepts a plain string or a list of strings (validation pipes answer with arrays).
func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// StatusCode returns the backend status carried by err, or 0 when err is not an *Error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
