// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import "errors"

// Sentinel errors for the dispatch package.
//
// Every [Error] carried by a [Result] matches exactly one category sentinel
// via [errors.Is], so callers that prefer the (value, error) convention
// returned by [Result.Get] can still branch on the failure class.
var (
	// ErrHTTP matches any [*HTTPError], including Proton-coded ones.
	ErrHTTP = errors.New("dispatch: http error")

	// ErrTooManyRequests matches [*TooManyRequestsError].
	ErrTooManyRequests = errors.New("dispatch: too many requests")

	// ErrParse matches [*ParseError].
	ErrParse = errors.New("dispatch: response could not be decoded")

	// ErrConnection matches every [*ConnectionError].
	ErrConnection = errors.New("dispatch: connection error")

	// ErrTimeout matches a [*ConnectionError] of kind [KindTimeout].
	ErrTimeout = errors.New("dispatch: connection timed out")

	// ErrCertificate matches a [*ConnectionError] of kind [KindCertificate].
	ErrCertificate = errors.New("dispatch: certificate verification failed")

	// ErrNoInternet matches a [*ConnectionError] of kind [KindNoInternet].
	ErrNoInternet = errors.New("dispatch: no internet connectivity")

	// ErrInternalPanic is wrapped when a panic is recovered from a call block
	// or from one of the racing DoH goroutines.
	ErrInternalPanic = errors.New("dispatch: internal panic recovered")

	// ErrUnexpectedType is wrapped in a [*ParseError] when a call block
	// returns a value whose dynamic type does not match the requested one.
	ErrUnexpectedType = errors.New("dispatch: unexpected result type")

	// ErrNoPrimaryBackend is returned by [New] when no primary backend is set.
	ErrNoPrimaryBackend = errors.New("dispatch: no primary backend configured")
)
