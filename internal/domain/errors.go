package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// GenericMessage is shown for errors with no more specific wording.
const GenericMessage = "Something went wrong. Please try again."

var (
	ErrSessionExpired   = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthError is a rejected login or registration. Payload keeps the raw server
// body so callers can map it to their own messages.
type AuthError struct {
	Status      int
	Detail      string
	FieldErrors map[string][]string
	Payload     []byte
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authentication failed: %s", e.Detail)
	}
	if len(e.FieldErrors) > 0 {
		return fmt.Sprintf("authentication failed: %s", joinFieldErrors(e.FieldErrors))
	}
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed: status %d", e.Status)
	}
	return "authentication failed"
}

// RenewalError is always terminal for the session that produced it.
type RenewalError struct {
	Reason string
	Err    error
}

func (e *RenewalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session renewal failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session renewal failed: %s", e.Reason)
}

func (e *RenewalError) Unwrap() error { return e.Err }

// TransitionRejected is a refused booking status change. Local is true when the
// client refused it before contacting the backend.
type TransitionRejected struct {
	BookingID int64
	From      BookingStatus
	To        BookingStatus
	Reason    string
	Local     bool
	Err       error
}

func (e *TransitionRejected) Error() string {
	return fmt.Sprintf("booking %d: %s -> %s rejected: %s", e.BookingID, e.From, e.To, e.Reason)
}

func (e *TransitionRejected) Unwrap() error { return e.Err }

type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is any other non-2xx answer from the backend.
type APIError struct {
	Status int
	Detail string
	Body   []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("request failed: %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("request failed: %d", e.Status)
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, " ")
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// UserMessage turns an error into text that is safe to show to an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		authErr       *AuthError
		renewalErr    *RenewalError
		transitionErr *TransitionRejected
		netErr        *NetworkError
		validationErr *ValidationError
		apiErr        *APIError
	)

	switch {
	case errors.Is(err, ErrSessionExpired), errors.As(err, &renewalErr):
		return "Your session has expired. Please log in again to continue."
	case errors.Is(err, ErrNotAuthenticated):
		return "Please log in first."
	case errors.As(err, &netErr):
		return "Cannot reach the marketplace. Check your connection and try again."
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &authErr):
		if authErr.Detail != "" {
			return authErr.Detail
		}
		if len(authErr.FieldErrors) > 0 {
			return joinFieldErrors(authErr.FieldErrors)
		}
		return "Login failed. Check your username and password."
	case errors.As(err, &transitionErr):
		return transitionErr.Reason
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	}
	return GenericMessage
}

func joinFieldErrors(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		msg := strings.Join(fields[k], " ")
		if k == "non_field_errors" {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, msg))
	}
	return strings.Join(parts, "; ")
}
