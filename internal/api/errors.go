package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrDuplicateTitle     = errors.New("book already exists")
	ErrNoToken            = errors.New("login response did not contain a token")
)

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 4096

// StatusError is returned when the server answers with an unexpected status
type StatusError struct {
	Op         string
	StatusCode int
	// Message is the server's "message" field, when it sent one
	Message string
	Body    string

	kind error
}

func (e *StatusError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}
	if detail == "" {
		return fmt.Sprintf("%s failed (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.StatusCode, detail)
}

// Unwrap exposes the sentinel the status maps to, if any
func (e *StatusError) Unwrap() error {
	return e.kind
}

// classify turns a non-success response into a *StatusError.
// known maps endpoint-specific statuses to sentinels; 401 always maps to ErrUnauthorized.
func classify(op string, resp *http.Response, known map[int]error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	statusErr := &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		statusErr.Message = payload.Message
	}

	if resp.StatusCode == http.StatusUnauthorized {
		statusErr.kind = ErrUnauthorized
	} else if kind, ok := known[resp.StatusCode]; ok {
		statusErr.kind = kind
	}

	return statusErr
}

// MessageOf returns the server-supplied message of err, or fallback
func MessageOf(err error, fallback string) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return fallback
}
