// Package errors defines the failure taxonomy shared by every layer.
// Each failure carries a stable Kind and a human-readable message; callers
// compare with the standard library errors.Is against the sentinels below.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind. A target without a message matches every error of its
// kind, a target with a message only matches that exact failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Kind families.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInternal        = &Error{Kind: KindInternal}
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidToken       = New(KindUnauthenticated, "invalid or expired token")
	ErrMissingToken       = New(KindUnauthenticated, "authorization token is missing")
	ErrInvalidCredentials = New(KindUnauthenticated, "invalid email or password")
	ErrTokenGeneration    = New(KindInternal, "token generation failed")
	ErrWeakPassword       = New(KindInvalidInput, "password must contain letters and digits")
	ErrUserAlreadyExists  = New(KindConflict, "user already exists")
	ErrUserNotFound       = New(KindNotFound, "user not found")
	ErrGroupNotFound      = New(KindNotFound, "group not found")
	ErrNotMember          = New(KindUnauthorized, "unauthorized access to group")
	ErrNotAdmin           = New(KindUnauthorized, "only group admins can perform this action")
	ErrAlreadyMember      = New(KindConflict, "user is already a member of this group")
	ErrTargetNotMember    = New(KindNotFound, "user is not a member of this group")
	ErrTargetNotAdmin     = New(KindConflict, "user is not an admin of this group")
	ErrLastAdmin          = New(KindConflict, "group must keep at least one admin")
	ErrEmptyMessage       = New(KindInvalidInput, "message cannot be empty")
	ErrMessageTooLong     = New(KindInvalidInput, "message is too long")
	ErrEmptyGroupName     = New(KindInvalidInput, "group name is required")
	ErrLeaveGlobal        = New(KindInvalidInput, "the global room cannot be left")
	ErrFileTooLarge       = New(KindInvalidInput, "file exceeds the upload limit")
	ErrSlowConsumer       = fmt.Errorf("connection outbound queue is full")
	ErrSinkClosed         = fmt.Errorf("connection is closed")
)

// Invalid wraps a validation failure into an invalid_input error.
func Invalid(err error) error {
	return &Error{Kind: KindInvalidInput, Message: "invalid request", Err: err}
}

// Internal wraps a store or transport failure. The cause is kept for logs
// only, it never reaches the client.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, internal when err is not part of the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the message that may be shown to a client.
func PublicMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Kind != KindInternal {
		if e.Message == "" {
			return string(e.Kind)
		}
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps a failure to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
