// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh

import "errors"

// Sentinel errors for the doh package.
var (
	// ErrNoServices is reported when a refresh runs with no discovery
	// service configured.
	ErrNoServices = errors.New("doh: no discovery services configured")

	// ErrEmptyAnswer is returned when a discovery answer carries no
	// alternative base URL.
	ErrEmptyAnswer = errors.New("doh: discovery answer carried no alternatives")

	// ErrBadContentType is returned when a DoH server does not answer with
	// application/dns-message.
	ErrBadContentType = errors.New("doh: unexpected response content type")

	// ErrBadStatus is returned when a DoH server answers with a non-200
	// status code.
	ErrBadStatus = errors.New("doh: unexpected response status")

	// ErrBadRcode is returned when the DNS answer carries a failure rcode.
	ErrBadRcode = errors.New("doh: dns query failed")

	// ErrInvalidHost is returned when a base URL has no usable host name.
	ErrInvalidHost = errors.New("doh: invalid host name")

	// ErrServiceTimeout is returned when a discovery service does not
	// answer within the service timeout.
	ErrServiceTimeout = errors.New("doh: discovery service timed out")

	// ErrUnblockDeclined is reported when the last-resort service was not
	// queried because the confirmation was refused.
	ErrUnblockDeclined = errors.New("doh: last-resort discovery declined")

	// ErrInternalPanic is returned when a panic is recovered from a
	// discovery service.
	ErrInternalPanic = errors.New("doh: internal panic recovered")
)
