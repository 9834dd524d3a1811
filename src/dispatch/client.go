// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	defaultBackoffRetryCount        = 2
	defaultBackoffBaseDelay         = 500 * time.Millisecond
	defaultProxyValidityPeriod      = 90 * time.Minute
	defaultDoHServiceTimeout        = 10 * time.Second
	defaultAlternativesTotalTimeout = 30 * time.Second
	defaultPingTimeout              = 3 * time.Second
	defaultMaxRetryAfter            = 10 * time.Second
)

// Client holds the read-only tunables consumed by the dispatcher and the
// DoH layer. The zero value is not useful; start from [DefaultClient] or
// [LoadClient].
type Client struct {
	// AppVersion is sent in the x-pm-appversion header.
	AppVersion string `yaml:"app_version"`

	// UserAgent is sent in the User-Agent header.
	UserAgent string `yaml:"user_agent"`

	// ShouldUseDoH enables alternative routing.
	ShouldUseDoH bool `yaml:"use_doh"`

	// BackoffRetryCount is the maximum number of retries per call.
	BackoffRetryCount int `yaml:"backoff_retry_count"`

	// BackoffBaseDelay is the base of the exponential backoff.
	BackoffBaseDelay time.Duration `yaml:"backoff_base_delay"`

	// ProxyValidityPeriod bounds how long the client stays on an
	// alternative after the primary last failed.
	ProxyValidityPeriod time.Duration `yaml:"proxy_validity_period"`

	// DoHServiceTimeout bounds each discovery query.
	DoHServiceTimeout time.Duration `yaml:"doh_service_timeout"`

	// AlternativesTotalTimeout bounds the whole alternative trial loop.
	AlternativesTotalTimeout time.Duration `yaml:"alternatives_total_timeout"`

	// PingTimeout bounds the liveness probe of the primary backend.
	PingTimeout time.Duration `yaml:"ping_timeout"`

	// ForceUpdate is called when the server rejects the client version.
	ForceUpdate func(message string) `yaml:"-"`
}

// DefaultClient returns a [Client] with default tunables and DoH enabled.
func DefaultClient() *Client {
	return &Client{
		ShouldUseDoH:             true,
		BackoffRetryCount:        defaultBackoffRetryCount,
		BackoffBaseDelay:         defaultBackoffBaseDelay,
		ProxyValidityPeriod:      defaultProxyValidityPeriod,
		DoHServiceTimeout:        defaultDoHServiceTimeout,
		AlternativesTotalTimeout: defaultAlternativesTotalTimeout,
		PingTimeout:              defaultPingTimeout,
	}
}

// LoadClient decodes a YAML document into a [Client]. Keys that are absent
// keep their default values.
//
//	use_doh: true
//	backoff_retry_count: 3
//	backoff_base_delay: 250ms
//	proxy_validity_period: 1h
func LoadClient(r io.Reader) (*Client, error) {
	c := DefaultClient()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("dispatch: decode client config: %w", err)
	}
	c.normalize()
	return c, nil
}

// normalize replaces nonsensical values with defaults.
func (c *Client) normalize() {
	if c.BackoffRetryCount < 0 {
		c.BackoffRetryCount = defaultBackoffRetryCount
	}
	if c.BackoffBaseDelay <= 0 {
		c.BackoffBaseDelay = defaultBackoffBaseDelay
	}
	if c.ProxyValidityPeriod <= 0 {
		c.ProxyValidityPeriod = defaultProxyValidityPeriod
	}
	if c.DoHServiceTimeout <= 0 {
		c.DoHServiceTimeout = defaultDoHServiceTimeout
	}
	if c.AlternativesTotalTimeout <= 0 {
		c.AlternativesTotalTimeout = defaultAlternativesTotalTimeout
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
}
