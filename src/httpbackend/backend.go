// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package httpbackend implements [dispatch.Backend] over net/http for a
// JSON API. Call blocks receive a [*Client] bound to the backend's base URL.
package httpbackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

// API paths used by the backend itself.
const (
	PingPath    = "tests/ping"
	RefreshPath = "auth/refresh"
)

// NetworkMonitor reports device level connectivity.
type NetworkMonitor interface {
	IsConnected() bool
}

// NetworkMonitorFunc adapts a function to a [NetworkMonitor].
type NetworkMonitorFunc func() bool

// IsConnected implements [NetworkMonitor].
func (f NetworkMonitorFunc) IsConnected() bool { return f() }

// Backend executes calls against one base URL.
type Backend struct {
	cfg     *dispatch.Client
	client  *Client
	monitor NetworkMonitor
	logger  log.Interface
}

var _ dispatch.Backend[*Client] = (*Backend)(nil)

// Option is a functional option for configuring a [Backend].
type Option func(*Backend)

// WithHTTPClient sets the HTTP client. The default is [http.DefaultClient].
//
// Passing nil is a no-op.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) {
		if c != nil {
			b.client.http = c
		}
	}
}

// WithSession sets the session whose credentials are attached to requests.
func WithSession(s SessionStore) Option {
	return func(b *Backend) {
		b.client.session = s
	}
}

// WithNetworkMonitor sets the connectivity monitor. Without one the device
// is assumed online.
func WithNetworkMonitor(m NetworkMonitor) Option {
	return func(b *Backend) {
		if m != nil {
			b.monitor = m
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Interface) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a [Backend] for baseURL configured by cfg. A nil cfg selects
// [dispatch.DefaultClient].
func New(baseURL string, cfg *dispatch.Client, opts ...Option) (*Backend, error) {
	if cfg == nil {
		cfg = dispatch.DefaultClient()
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpbackend: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpbackend: base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	b := &Backend{
		cfg:     cfg,
		client:  &Client{baseURL: u, http: http.DefaultClient, cfg: cfg},
		monitor: NetworkMonitorFunc(func() bool { return true }),
		logger:  &log.Logger{Handler: discard.Default, Level: log.InfoLevel},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.client.connected = b.monitor.IsConnected
	return b, nil
}

// Factory returns a [dispatch.BackendFactory] building alternatives with the
// same configuration. A base URL that cannot be parsed yields a backend
// whose calls fail with a potential blocking connection error, so alternative
// routing moves on to the next candidate and never keeps it active.
func Factory(cfg *dispatch.Client, opts ...Option) dispatch.BackendFactory[*Client] {
	return func(baseURL string) dispatch.Backend[*Client] {
		b, err := New(baseURL, cfg, opts...)
		if err != nil {
			return brokenBackend{baseURL: baseURL, err: err}
		}
		return b
	}
}

// BaseURL implements [dispatch.Backend].
func (b *Backend) BaseURL() string { return b.client.BaseURL() }

// Client returns the API surface bound to this backend.
func (b *Backend) Client() *Client { return b.client }

// Invoke implements [dispatch.Backend].
func (b *Backend) Invoke(ctx context.Context, call *dispatch.Call[*Client]) dispatch.Result[any] {
	if !b.monitor.IsConnected() {
		return dispatch.Failure[any](dispatch.NewNoInternet(nil))
	}
	v, err := call.Block(ctx, b.client)
	if err != nil {
		e := classifyTransport(err, b.monitor.IsConnected())
		b.logger.WithFields(log.Fields{
			"backend": b.BaseURL(),
			"error":   e,
		}).Debug("httpbackend: call failed")
		return dispatch.Failure[any](e)
	}
	return dispatch.Success(v)
}

type refreshRequest struct {
	UID          string `json:"UID"`
	RefreshToken string `json:"RefreshToken"`
	ResponseType string `json:"ResponseType"`
	GrantType    string `json:"GrantType"`
	RedirectURI  string `json:"RedirectURI"`
}

type refreshResponse struct {
	AccessToken  string   `json:"AccessToken"`
	RefreshToken string   `json:"RefreshToken"`
	Scopes       []string `json:"Scopes"`
}

// ErrNoSession is wrapped when tokens are refreshed without a session.
var ErrNoSession = errors.New("httpbackend: no session")

// RefreshTokens implements [dispatch.Backend].
func (b *Backend) RefreshTokens(ctx context.Context) dispatch.Result[dispatch.Tokens] {
	var s Session
	ok := false
	if b.client.session != nil {
		s, ok = b.client.session.Session()
	}
	if !ok {
		return dispatch.Failure[dispatch.Tokens](dispatch.NewParseError(ErrNoSession))
	}

	var out refreshResponse
	err := b.client.PostJSON(ctx, RefreshPath, refreshRequest{
		UID:          s.UID,
		RefreshToken: s.RefreshToken,
		ResponseType: "token",
		GrantType:    "refresh_token",
		RedirectURI:  "https://protonmail.ch",
	}, &out)
	if err != nil {
		return dispatch.Failure[dispatch.Tokens](classifyTransport(err, b.monitor.IsConnected()))
	}
	return dispatch.Success(dispatch.Tokens{
		Access:  out.AccessToken,
		Refresh: out.RefreshToken,
		Scopes:  out.Scopes,
	})
}

// IsPotentiallyBlocked implements [dispatch.Backend]. It pings this
// backend with the configured ping timeout.
func (b *Backend) IsPotentiallyBlocked(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.PingTimeout)
	defer cancel()

	err := b.client.GetJSON(ctx, PingPath, nil)
	if err == nil {
		return false
	}
	e := classifyTransport(err, b.monitor.IsConnected())
	b.logger.WithFields(log.Fields{
		"backend": b.BaseURL(),
		"error":   e,
	}).Debug("httpbackend: ping failed")
	return e.PotentialBlocking()
}

// brokenBackend stands in for an alternative with an unusable base URL.
type brokenBackend struct {
	baseURL string
	err     error
}

func (b brokenBackend) BaseURL() string { return b.baseURL }

func (b brokenBackend) Invoke(context.Context, *dispatch.Call[*Client]) dispatch.Result[any] {
	return dispatch.Failure[any](dispatch.NewConnectionError(true, b.err))
}

func (b brokenBackend) RefreshTokens(context.Context) dispatch.Result[dispatch.Tokens] {
	return dispatch.Failure[dispatch.Tokens](dispatch.NewConnectionError(true, b.err))
}

func (b brokenBackend) IsPotentiallyBlocked(context.Context) bool { return true }
