package gateway

import (
	"errors"
	"fmt"
)

// AuthCode classifies identity provider failures.
type AuthCode string

const (
	CodeEmailInUse        AuthCode = "email-already-in-use"
	CodeWeakPassword      AuthCode = "weak-password"
	CodeInvalidEmail      AuthCode = "invalid-email"
	CodeWrongPassword     AuthCode = "wrong-password"
	CodeUserNotFound      AuthCode = "user-not-found"
	CodeInvalidCredential AuthCode = "invalid-credential"
	CodeUnknown           AuthCode = "unknown"
)

type AuthError struct {
	Code AuthCode
	Err  error
}

func NewAuthError(code AuthCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth/%s", e.Code)
	}
	return fmt.Sprintf("auth/%s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CodeOf returns the AuthCode carried by err, or CodeUnknown.
func CodeOf(err error) AuthCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}
