// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/altroute/src/doh"
)

func TestQueryName(t *testing.T) {
	assert.Equal(t, "dmv4gc3lqnrss4y3pnu.protonpro.xyz.", doh.QueryName("example.com", ""))
	assert.Equal(t, "dmv4gc3lqnrss4y3pnu.example.net.", doh.QueryName("example.com", "example.net."))
}

func TestHostFromBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{"plain", "https://example.com/", "example.com", false},
		{"path and port", "https://API.Example.com:443/api/", "api.example.com", false},
		{"bare host", "example.com", "example.com", false},
		{"trailing dot", "https://example.com./", "example.com", false},
		{"idna", "https://bücher.de/", "xn--bcher-kva.de", false},
		{"single label", "https://localhost/", "", true},
		{"empty", "", "", true},
		{"space in host", "https://exa mple.com/", "", true},
		{"ip address", "https://192.0.2.1/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := doh.HostFromBaseURL(tt.baseURL)
			if tt.wantErr {
				require.ErrorIs(t, err, doh.ErrInvalidHost)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsValidHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want bool
	}{
		{"valid .com", "example.com", true},
		{"valid .co.id", "example.co.id", true},
		{"valid subdomain", "sub.example.com", true},
		{"valid hyphen", "my-site.example.com", true},
		{"valid short label", "a.com", true},
		{"valid punycode TLD", "example.xn--p1ai", true},
		{"invalid empty", "", false},
		{"invalid single label", "localhost", false},
		{"invalid starts with hyphen", "-example.com", false},
		{"invalid ends with hyphen", "example-.com", false},
		{"invalid special chars", "exam!ple.com", false},
		{"invalid spaces", "example .com", false},
		{"invalid empty label", "example..com", false},
		{"invalid TLD with digits", "example.c0m", false},
		{"invalid TLD with hyphen", "example.c-m", false},
		{"invalid one letter TLD", "example.c", false},
		{"invalid label too long", "example." + strings.Repeat("a", 64) + ".com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, doh.IsValidHost(tt.host), "IsValidHost(%q)", tt.host)
		})
	}
}
