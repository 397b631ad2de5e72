// Package domainerrors carries coded errors from services to transport.
//
// Services return *Error values created with New or Wrap. Handlers translate the
// code into an HTTP status via httputil.WriteError, so the code is the only part of
// an error that crosses the service boundary as a contract.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"

	// Risk and payout failures.
	CodeLimitExceeded    Code = "limit_exceeded"
	CodeChallengeFailed  Code = "challenge_failed"
	CodeChallengeExpired Code = "challenge_expired"
	CodePolicyBlocked    Code = "policy_blocked"
	CodeApprovalConflict Code = "approval_conflict"
	CodeStoreUnavailable Code = "store_unavailable"
)

// Error is a coded domain error. Meta carries caller-safe details such as
// remaining quota; it never holds scores, weights or thresholds.
type Error struct {
	Code    Code
	Message string
	Meta    map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithMeta returns a copy of e carrying an additional metadata pair.
func (e *Error) WithMeta(key string, value any) *Error {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	return &Error{Code: e.Code, Message: e.Message, Meta: meta, Err: e.Err}
}

// Is reports whether any error in err's chain is a domain error with the code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// As extracts the first domain error from err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
