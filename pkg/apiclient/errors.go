package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// ErrAuthExpired is returned for any 401 response, after the registered
// auth-failure handlers have run. Callers only need to stop what they were
// doing; clearing the session and navigating is the handlers' job.
var ErrAuthExpired = errors.New("apiclient: authentication expired")

// AuthExpiredError is the concrete 401 error. It matches ErrAuthExpired
// with errors.Is and keeps whatever reason the server gave.
type AuthExpiredError struct {
	Message string
}

func (e *AuthExpiredError) Error() string {
	if e.Message == "" {
		return ErrAuthExpired.Error()
	}
	return ErrAuthExpired.Error() + ": " + e.Message
}

func (e *AuthExpiredError) Is(target error) bool { return target == ErrAuthExpired }

// Envelope is the uniform response wrapper of the fail2ban-web API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (e Envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// RequestFailedError reports an envelope with success=false or a non-2xx
// status other than 401.
type RequestFailedError struct {
	Status  int
	Message string
}

func (e *RequestFailedError) Error() string { return e.Message }

// NetworkError reports a transport failure or a body that is not an
// envelope. Message is meant for display; Err keeps the cause.
type NetworkError struct {
	Method  string
	URL     string
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s (%s %s: %v)", e.Message, e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func networkMessage(err error) string {
	var ne net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.As(err, &ne) && ne.Timeout():
		return "request timed out"
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return "could not reach the server"
	}
	return "network request failed"
}

// UserMessage returns the text a UI should show inline for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.Message
	}
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return nerr.Message
	}
	var ae *AuthExpiredError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if errors.Is(err, ErrAuthExpired) {
		return "session expired, please sign in again"
	}
	return err.Error()
}
