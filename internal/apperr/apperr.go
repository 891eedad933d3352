// Package apperr defines the error taxonomy shared by the chat services.
// Every domain failure carries a Kind so handlers can map it to a status
// code and callers can tell "absent" apart from "store is down".
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// KindNotFound means the chat, message, or participant does not exist.
	KindNotFound Kind = iota + 1
	// KindUnauthorized means the actor lacks the required membership or role.
	KindUnauthorized
	// KindInvalid means the operation violates a domain rule.
	KindInvalid
	// KindTransient means a backing store or relay call failed and the
	// operation may succeed on retry.
	KindTransient
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Msg: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func Invalid(msg string) *Error      { return &Error{Kind: KindInvalid, Msg: msg} }

func Transient(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsInvalid(err error) bool      { return KindOf(err) == KindInvalid }
func IsTransient(err error) bool    { return KindOf(err) == KindTransient }

// HTTPStatus maps an error to the response status the API boundary uses.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindInvalid:
		return http.StatusBadRequest
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
