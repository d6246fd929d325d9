// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure classes of a request. Match them with errors.Is.
var (
	ErrNetwork         = errors.New("network error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrServer          = errors.New("server error")
)

// Resolver state errors.
var (
	// ErrBusy is returned when a login, registration, logout or refresh is
	// already in flight.
	ErrBusy = errors.New("session change already in progress")
	// ErrInvalidTransition is returned for a session change the state
	// machine does not permit, such as logging in twice.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session resolver closed")
)

// ValidationError carries the field-keyed messages of a 422 response.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// Has reports whether field has at least one message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// APIError is a non-2xx response. Err is one of the failure classes above,
// or nil for statuses outside them such as 409 and 429.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth retrying by hand: the request
// never got a response, or the server failed.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// LoginReason discriminates login failures.
type LoginReason string

const (
	ReasonInvalidCredentials LoginReason = "invalid_credentials"
	ReasonOTPRequired        LoginReason = "otp_required"
	ReasonValidation         LoginReason = "validation"
	ReasonNetwork            LoginReason = "network"
	ReasonServer             LoginReason = "server"
)

// LoginError is returned by Resolver.Login. Err holds the transport error.
type LoginError struct {
	Reason LoginReason
	Err    error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed (%s): %v", e.Reason, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

// loginError classifies a transport error from the login endpoint.
func loginError(err error) *LoginError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr) && verr.Has("otp"):
		return &LoginError{Reason: ReasonOTPRequired, Err: err}
	case verr != nil:
		return &LoginError{Reason: ReasonValidation, Err: err}
	case errors.Is(err, ErrUnauthenticated):
		return &LoginError{Reason: ReasonInvalidCredentials, Err: err}
	case errors.Is(err, ErrNetwork):
		return &LoginError{Reason: ReasonNetwork, Err: err}
	default:
		return &LoginError{Reason: ReasonServer, Err: err}
	}
}
