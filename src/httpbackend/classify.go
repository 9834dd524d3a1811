// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpbackend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

// classifyTransport maps an error from the transport into the taxonomy.
// connected reports whether the device has network connectivity; a
// failure without connectivity is never treated as blocking.
func classifyTransport(err error, connected bool) dispatch.Error {
	var de dispatch.Error
	if errors.As(err, &de) {
		return de
	}
	if !connected {
		return dispatch.NewNoInternet(err)
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostnameErr      x509.HostnameError
		verifyErr        *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownAuthority),
		errors.As(err, &invalidCert),
		errors.As(err, &hostnameErr):
		return dispatch.NewCertificate(err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return dispatch.NewNoInternet(err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return dispatch.NewNoInternet(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return dispatch.NewTimeout(true, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dispatch.NewTimeout(true, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return dispatch.NewParseError(err)
	}

	return dispatch.NewConnectionError(true, err)
}

// protonBody is the error payload of the API.
type protonBody struct {
	Code  int    `json:"Code"`
	Error string `json:"Error"`
}

// classifyResponse builds the error for a non-2xx response.
func classifyResponse(resp *http.Response, body []byte) dispatch.Error {
	var proton *dispatch.ProtonData
	var pb protonBody
	if len(body) > 0 && json.Unmarshal(body, &pb) == nil && pb.Code != 0 {
		proton = &dispatch.ProtonData{Code: pb.Code, Error: pb.Error}
	}

	retryAfter, hasRetryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())

	if resp.StatusCode == dispatch.StatusTooManyRequests && hasRetryAfter {
		return &dispatch.TooManyRequestsError{
			RetryAfterSeconds: int((retryAfter + time.Second - 1) / time.Second),
			Proton:            proton,
		}
	}

	message := http.StatusText(resp.StatusCode)
	if proton != nil && proton.Error != "" {
		message = proton.Error
	}
	return &dispatch.HTTPError{
		Code:             resp.StatusCode,
		Message:          message,
		Proton:           proton,
		RetryAfterHeader: retryAfter,
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
