// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultZone is the DNS zone under which alternative routes are published.
const DefaultZone = "protonpro.xyz"

var queryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// HostFromBaseURL extracts the host of baseURL in its ASCII form. A bare
// host name without a scheme is accepted too.
func HostFromBaseURL(baseURL string) (string, error) {
	raw := strings.TrimSpace(baseURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHost, err)
	}
	host, err := idna.Lookup.ToASCII(normalizeHost(u.Hostname()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHost, err)
	}
	if !IsValidHost(host) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	return host, nil
}

// IsValidHost reports whether host is a syntactically valid ASCII host
// name.
//
// A valid host has at least two labels separated by dots. Each label is
// 1-63 characters of ASCII letters, digits or hyphens and must not start or
// end with a hyphen. The TLD contains only letters unless it is an IDNA
// "xn--" label.
func IsValidHost(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}

	for i, label := range labels {
		if len(label) < 1 || len(label) > 63 {
			return false
		}

		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}

		lettersOnly := i == len(labels)-1 && !strings.HasPrefix(label, "xn--")
		if lettersOnly && len(label) < 2 {
			return false
		}

		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9', c == '-':
				if lettersOnly {
					return false
				}
			default:
				return false
			}
		}
	}

	return true
}

// QueryName returns the fully qualified TXT record name that publishes the
// alternatives of host under zone: "d" followed by the unpadded lowercase
// base32 encoding of host.
func QueryName(host, zone string) string {
	if zone == "" {
		zone = DefaultZone
	}
	encoded := strings.ToLower(queryEncoding.EncodeToString([]byte(host)))
	return "d" + encoded + "." + strings.TrimSuffix(zone, ".") + "."
}

// normalizeHost lowercases and trims whitespace and the trailing root dot.
func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
