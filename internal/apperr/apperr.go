// Package apperr carries the user-facing message of a failed action
// alongside its cause. The message is shown in the error banner; the cause
// is only logged.
package apperr

import (
	"errors"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindWrite      Kind = "write"
)

// GenericMessage is shown when a failure carries no message of its own.
const GenericMessage = "Erro na operação. Tente novamente."

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Auth(message string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: cause}
}

func Write(message string, cause error) *Error {
	return &Error{Kind: KindWrite, Message: message, Err: cause}
}

// Message returns the banner text for err, "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return GenericMessage
}

// IsKind reports whether err carries an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
