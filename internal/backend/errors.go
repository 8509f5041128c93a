package backend

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

type AuthReason string

const (
	ReasonInvalidCredentials AuthReason = "invalid_credentials"
	ReasonUnconfirmed        AuthReason = "email_not_confirmed"
	ReasonInvalidInput       AuthReason = "invalid_input"
	ReasonNoSession          AuthReason = "no_session"
	ReasonSessionExpired     AuthReason = "session_expired"
	ReasonInvalidToken       AuthReason = "invalid_token"
)

// AuthError is shown to the user; the flow that raised it is aborted.
type AuthError struct {
	Reason  AuthReason
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authError(reason AuthReason, message string) *AuthError {
	return &AuthError{Reason: reason, Message: message}
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// StoreError wraps a failed store call. Callers log it and leave state as
// it was.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsConflictError(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsStoreError(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}
