package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is matched by every *ValidationError. No request was sent.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork means the server could not be reached or the connection broke.
	ErrNetwork = errors.New("network error")
	// ErrTimeout means the client's own deadline expired.
	ErrTimeout = errors.New("request timed out")
	// ErrAborted means the caller cancelled the context.
	ErrAborted = errors.New("request aborted")
)

// ValidationError describes a local precondition failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ServerError is a non-success HTTP status from the asset API.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// UserMessage maps an error from this package to a short message fit for end users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		se *ServerError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.Is(err, ErrAborted):
		return "Upload cancelled."
	case errors.Is(err, ErrTimeout):
		return "The request timed out. Check your connection and try again."
	case errors.Is(err, ErrNetwork):
		return "Network error. Check your connection and try again."
	case errors.As(err, &se):
		switch {
		case se.Status == http.StatusRequestEntityTooLarge:
			return "The file is too large for the server (max 10 MB)."
		case se.Status == http.StatusUnsupportedMediaType:
			return "Unsupported file type. Use JPEG, PNG, GIF or WebP."
		case se.Status >= http.StatusInternalServerError:
			return "The server is unavailable right now. Please retry."
		case se.Message != "":
			return se.Message
		}
		return fmt.Sprintf("Request failed (HTTP %d).", se.Status)
	default:
		return "Something went wrong. Please try again."
	}
}
