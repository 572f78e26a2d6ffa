package app

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	Unauthorized ErrorKind = iota + 1
	BadInput
	UnsupportedMediaType
	NotFound
	BadState
	StorageFailure
)

func (k ErrorKind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case BadInput:
		return "bad input"
	case UnsupportedMediaType:
		return "unsupported media type"
	case NotFound:
		return "not found"
	case BadState:
		return "bad state"
	case StorageFailure:
		return "storage failure"
	}
	return "unknown"
}

// Status is the HTTP status the kind is reported with.
func (k ErrorKind) Status() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case BadInput, UnsupportedMediaType, BadState:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Error is a profile media failure. Message is safe to show to clients;
// Err holds the underlying cause and is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
