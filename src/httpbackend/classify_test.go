// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpbackend

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"empty", "", 0, false},
		{"seconds", "7", 7 * time.Second, true},
		{"padded", " 3 ", 3 * time.Second, true},
		{"negative", "-1", 0, false},
		{"garbage", "soon", 0, false},
		{"date", now.Add(5 * time.Second).Format(http.TimeFormat), 5 * time.Second, true},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	timeoutDNS := &net.DNSError{Err: "i/o timeout", Name: "api.example.com", IsTimeout: true}

	tests := []struct {
		name      string
		err       error
		connected bool
		sentinel  error
		blocking  bool
	}{
		{"offline", errors.New("boom"), false, dispatch.ErrNoInternet, false},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example.com"}, true, dispatch.ErrNoInternet, false},
		{"dns timeout", timeoutDNS, true, dispatch.ErrTimeout, true},
		{"refused", refused, true, dispatch.ErrNoInternet, false},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true, dispatch.ErrTimeout, true},
		{"unknown authority", x509.UnknownAuthorityError{}, true, dispatch.ErrCertificate, true},
		{"generic", errors.New("connection reset by peer"), true, dispatch.ErrConnection, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransport(tt.err, tt.connected)
			require.NotNil(t, got)
			assert.ErrorIs(t, got, tt.sentinel)
			assert.Equal(t, tt.blocking, got.PotentialBlocking())
		})
	}
}

func TestClassifyTransportPassesThroughTaxonomy(t *testing.T) {
	original := dispatch.NewHTTPError(dispatch.StatusForbidden, "nope")
	got := classifyTransport(fmt.Errorf("wrapped: %w", original), true)
	assert.Same(t, original, got)
}

func TestClassifyResponse(t *testing.T) {
	t.Run("proton body", func(t *testing.T) {
		resp := &http.Response{StatusCode: dispatch.StatusUnprocessableEntity, Header: http.Header{}}
		got := classifyResponse(resp, []byte(`{"Code":2001,"Error":"Invalid input"}`))

		var httpErr *dispatch.HTTPError
		require.ErrorAs(t, got, &httpErr)
		assert.Equal(t, dispatch.StatusUnprocessableEntity, httpErr.Code)
		assert.Equal(t, 2001, httpErr.ProtonCode())
		assert.Equal(t, "Invalid input", httpErr.Message)
	})

	t.Run("plain body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
		got := classifyResponse(resp, []byte("<html>bad gateway</html>"))

		var httpErr *dispatch.HTTPError
		require.ErrorAs(t, got, &httpErr)
		assert.False(t, httpErr.IsProton())
		assert.Equal(t, http.StatusText(http.StatusBadGateway), httpErr.Message)
		assert.True(t, got.Retryable())
	})

	t.Run("too many requests", func(t *testing.T) {
		resp := &http.Response{StatusCode: dispatch.StatusTooManyRequests, Header: http.Header{"Retry-After": {"4"}}}
		got := classifyResponse(resp, nil)

		var tooMany *dispatch.TooManyRequestsError
		require.ErrorAs(t, got, &tooMany)
		assert.Equal(t, 4, tooMany.RetryAfterSeconds)
	})

	t.Run("too many requests without hint", func(t *testing.T) {
		resp := &http.Response{StatusCode: dispatch.StatusTooManyRequests, Header: http.Header{}}
		got := classifyResponse(resp, nil)

		var httpErr *dispatch.HTTPError
		require.ErrorAs(t, got, &httpErr)
		_, ok := got.RetryAfter()
		assert.False(t, ok)
	})

	t.Run("unavailable with hint", func(t *testing.T) {
		resp := &http.Response{StatusCode: dispatch.StatusServiceUnavailable, Header: http.Header{"Retry-After": {"2"}}}
		got := classifyResponse(resp, nil)

		d, ok := got.RetryAfter()
		assert.True(t, ok)
		assert.Equal(t, 2*time.Second, d)
	})
}
