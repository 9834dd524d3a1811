// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// HTTP status codes consulted by the dispatcher and the bundled handlers.
const (
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusRequestTimeout      = 408
	StatusConflict            = 409
	StatusMisdirectedRequest  = 421
	StatusUnprocessableEntity = 422
	StatusTooManyRequests     = 429
	StatusServiceUnavailable  = 503
)

// Result is the outcome of a dispatched call. Exactly one of the two
// states is active: a success when Err is nil, an error otherwise.
//
// Results are never mutated once built. A handler that cannot help hands
// back the very same Err value; anything else is a new Result.
type Result[T any] struct {
	// Value is the decoded response. Only meaningful when Err is nil.
	Value T

	// Err is the classified failure, or nil on success.
	Err Error
}

// Success builds a successful [Result].
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure builds a failed [Result] carrying err.
func Failure[T any](err Error) Result[T] {
	return Result[T]{Err: err}
}

// IsSuccess reports whether r holds a value.
func (r Result[T]) IsSuccess() bool { return r.Err == nil }

// IsPotentialBlocking reports whether r is a connection failure plausibly
// caused by censorship of the endpoint.
func (r Result[T]) IsPotentialBlocking() bool {
	return r.Err != nil && r.Err.PotentialBlocking()
}

// IsRetryable reports whether the failure class of r may be retried at all.
// The exact policy (attempt limits, Retry-After bounds, 408 handling) is
// owned by the dispatcher; see [NeedsRetry].
func (r Result[T]) IsRetryable() bool {
	return r.Err != nil && r.Err.Retryable()
}

// RetryAfter returns the server supplied Retry-After hint, if any.
func (r Result[T]) RetryAfter() (time.Duration, bool) {
	if r.Err == nil {
		return 0, false
	}
	return r.Err.RetryAfter()
}

// Get returns the value and the error in the usual Go form.
func (r Result[T]) Get() (T, error) {
	if r.Err != nil {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}

// Cast converts a type-erased result into a typed one. A success whose
// value does not have dynamic type T becomes a [*ParseError].
func Cast[T any](r Result[any]) Result[T] {
	if r.Err != nil {
		return Failure[T](r.Err)
	}
	if r.Value == nil {
		var zero T
		return Success(zero)
	}
	v, ok := r.Value.(T)
	if !ok {
		return Failure[T](NewParseError(fmt.Errorf("%w: %T", ErrUnexpectedType, r.Value)))
	}
	return Success(v)
}

func erase[T any](r Result[T]) Result[any] {
	if r.Err != nil {
		return Failure[any](r.Err)
	}
	return Success[any](r.Value)
}

// Error is the closed set of failures a [Result] can carry. The concrete
// types are [*HTTPError], [*TooManyRequestsError], [*ParseError] and
// [*ConnectionError].
type Error interface {
	error

	// PotentialBlocking reports whether the failure may be caused by
	// censorship rather than ordinary unreliability.
	PotentialBlocking() bool

	// Retryable reports whether the failure class is transient.
	Retryable() bool

	// RetryAfter returns the server supplied Retry-After hint, if any.
	RetryAfter() (time.Duration, bool)

	sealed()
}

// ProtonData is the application level error payload returned next to an
// HTTP status code.
type ProtonData struct {
	// Code is the application error code.
	Code int

	// Error is the human readable message sent by the server.
	Error string
}

// HTTPError is a response with a non-success status code. When Proton is
// set the response also carried an application error code.
type HTTPError struct {
	// Code is the HTTP status code.
	Code int

	// Message is the HTTP status text or body summary.
	Message string

	// Proton holds the application error, if the body carried one.
	Proton *ProtonData

	// RetryAfterHeader is the parsed Retry-After header. Zero means absent.
	RetryAfterHeader time.Duration

	// Cause is the underlying transport error, if any.
	Cause error
}

// NewHTTPError builds a plain [*HTTPError].
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// NewProtonError builds an [*HTTPError] carrying an application error code.
func NewProtonError(code, protonCode int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
		Proton:  &ProtonData{Code: protonCode, Error: message},
	}
}

func (e *HTTPError) Error() string {
	if e.Proton != nil {
		return fmt.Sprintf("http %d: %s (code=%d)", e.Code, e.Proton.Error, e.Proton.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// Is matches [ErrHTTP].
func (e *HTTPError) Is(target error) bool { return target == ErrHTTP }

// Unwrap returns the underlying cause.
func (e *HTTPError) Unwrap() error { return e.Cause }

// IsProton reports whether the response carried an application error code.
func (e *HTTPError) IsProton() bool { return e.Proton != nil }

// ProtonCode returns the application error code or 0.
func (e *HTTPError) ProtonCode() int {
	if e.Proton == nil {
		return 0
	}
	return e.Proton.Code
}

// PotentialBlocking implements [Error]. A server that answered is reachable.
func (e *HTTPError) PotentialBlocking() bool { return false }

// Retryable implements [Error]: 408, 503 and the whole 5xx range.
func (e *HTTPError) Retryable() bool {
	return e.Code == StatusRequestTimeout || (e.Code >= 500 && e.Code <= 599)
}

// RetryAfter implements [Error].
func (e *HTTPError) RetryAfter() (time.Duration, bool) {
	if e.RetryAfterHeader > 0 {
		return e.RetryAfterHeader, true
	}
	return 0, false
}

func (*HTTPError) sealed() {}

// TooManyRequestsError is a 429 response carrying a Retry-After hint.
type TooManyRequestsError struct {
	// RetryAfterSeconds is the number of seconds the server asked to wait.
	RetryAfterSeconds int

	// Proton holds the application error, if the body carried one.
	Proton *ProtonData
}

// NewTooManyRequests builds a [*TooManyRequestsError].
func NewTooManyRequests(retryAfterSeconds int) *TooManyRequestsError {
	return &TooManyRequestsError{RetryAfterSeconds: retryAfterSeconds}
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("http %d: too many requests (retry after %ds)", StatusTooManyRequests, e.RetryAfterSeconds)
}

// Is matches [ErrTooManyRequests] and [ErrHTTP].
func (e *TooManyRequestsError) Is(target error) bool {
	return target == ErrTooManyRequests || target == ErrHTTP
}

// HTTPCode returns 429.
func (e *TooManyRequestsError) HTTPCode() int { return StatusTooManyRequests }

// PotentialBlocking implements [Error].
func (e *TooManyRequestsError) PotentialBlocking() bool { return false }

// Retryable implements [Error].
func (e *TooManyRequestsError) Retryable() bool { return true }

// RetryAfter implements [Error].
func (e *TooManyRequestsError) RetryAfter() (time.Duration, bool) {
	return time.Duration(e.RetryAfterSeconds) * time.Second, true
}

func (*TooManyRequestsError) sealed() {}

// ParseError reports a response that could not be decoded. It indicates
// a contract mismatch with the server and is never retried.
type ParseError struct {
	Cause error
}

// NewParseError builds a [*ParseError].
func NewParseError(cause error) *ParseError {
	return &ParseError{Cause: cause}
}

func (e *ParseError) Error() string {
	if e.Cause == nil {
		return ErrParse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrParse.Error(), e.Cause)
}

// Is matches [ErrParse].
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Cause }

// PotentialBlocking implements [Error].
func (e *ParseError) PotentialBlocking() bool { return false }

// Retryable implements [Error].
func (e *ParseError) Retryable() bool { return false }

// RetryAfter implements [Error].
func (e *ParseError) RetryAfter() (time.Duration, bool) { return 0, false }

func (*ParseError) sealed() {}

// ConnectionKind refines a [*ConnectionError].
type ConnectionKind int

// Connection error kinds.
const (
	KindGeneric ConnectionKind = iota
	KindTimeout
	KindCertificate
	KindNoInternet
)

func (k ConnectionKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindCertificate:
		return "certificate"
	case KindNoInternet:
		return "no_internet"
	default:
		return "connection"
	}
}

// ConnectionError is a failure where no response was received.
type ConnectionError struct {
	// Kind refines the failure.
	Kind ConnectionKind

	// Cause is the underlying transport error.
	Cause error

	potentialBlock bool
}

// NewConnectionError builds a generic [*ConnectionError].
func NewConnectionError(potentialBlock bool, cause error) *ConnectionError {
	return &ConnectionError{Kind: KindGeneric, Cause: cause, potentialBlock: potentialBlock}
}

// NewTimeout builds a [*ConnectionError] of kind [KindTimeout].
func NewTimeout(potentialBlock bool, cause error) *ConnectionError {
	return &ConnectionError{Kind: KindTimeout, Cause: cause, potentialBlock: potentialBlock}
}

// NewCertificate builds a [*ConnectionError] of kind [KindCertificate].
// Certificate failures are always potential blocking.
func NewCertificate(cause error) *ConnectionError {
	return &ConnectionError{Kind: KindCertificate, Cause: cause, potentialBlock: true}
}

// NewNoInternet builds a [*ConnectionError] of kind [KindNoInternet].
// Lack of connectivity is never treated as blocking.
func NewNoInternet(cause error) *ConnectionError {
	return &ConnectionError{Kind: KindNoInternet, Cause: cause}
}

func (e *ConnectionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s (potentialBlock=%t)", e.Kind, e.potentialBlock)
	}
	return fmt.Sprintf("%s (potentialBlock=%t): %v", e.Kind, e.potentialBlock, e.Cause)
}

// Is matches [ErrConnection] and the sentinel of its kind.
func (e *ConnectionError) Is(target error) bool {
	switch target {
	case ErrConnection:
		return true
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrCertificate:
		return e.Kind == KindCertificate
	case ErrNoInternet:
		return e.Kind == KindNoInternet
	}
	return false
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error { return e.Cause }

// PotentialBlocking implements [Error].
func (e *ConnectionError) PotentialBlocking() bool { return e.potentialBlock }

// Retryable implements [Error]. Every connection failure is transient.
func (e *ConnectionError) Retryable() bool { return true }

// RetryAfter implements [Error].
func (e *ConnectionError) RetryAfter() (time.Duration, bool) { return 0, false }

func (*ConnectionError) sealed() {}

// httpCode extracts the status code of an HTTP-class error, or 0.
func httpCode(err Error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	var tooMany *TooManyRequestsError
	if errors.As(err, &tooMany) {
		return tooMany.HTTPCode()
	}
	return 0
}
