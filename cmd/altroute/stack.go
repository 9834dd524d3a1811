// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
	"github.com/H0llyW00dzZ/altroute/src/doh"
	"github.com/H0llyW00dzZ/altroute/src/handlers"
	"github.com/H0llyW00dzZ/altroute/src/httpbackend"
	"github.com/H0llyW00dzZ/altroute/src/prefs"
)

// stackConfig describes how to assemble a dispatcher.
type stackConfig struct {
	baseURL  string
	client   *dispatch.Client
	stateDir string
	session  httpbackend.Session
	services []doh.Service
	// lastResort, if set, is queried only when every service failed.
	lastResort doh.Service
	logger     log.Interface
}

// optIn confirms the last-resort discovery the user enabled by flag.
type optIn struct{ logger log.Interface }

func (o optIn) ConfirmUnblock(context.Context) bool {
	o.logger.Info("altroute: trying last-resort discovery")
	return true
}

// stack is a dispatcher wired to an HTTP primary backend, the DoH
// alternative routing handler and the recovery handlers.
type stack struct {
	dispatcher *dispatch.Dispatcher[*httpbackend.Client]
	primary    *httpbackend.Backend
	prefs      *prefs.NetworkPrefs
	registry   *prometheus.Registry
}

func newStack(c stackConfig) (*stack, error) {
	var store prefs.KeyValueStore = prefs.NewMemory()
	if c.stateDir != "" {
		fs, err := prefs.NewFS(c.stateDir)
		if err != nil {
			return nil, fmt.Errorf("altroute: state dir: %w", err)
		}
		store = fs
	}

	np := prefs.NewNetworkPrefs(store, prefs.WithNamespace(prefsNamespace(c.baseURL)), prefs.WithLogger(c.logger))

	if c.client.ForceUpdate == nil {
		c.client.ForceUpdate = func(message string) {
			c.logger.WithField("message", message).Error("altroute: client update required")
		}
	}

	session := httpbackend.NewMemorySession(c.session, func() {
		c.logger.Warn("altroute: session logged out")
	})
	backendOpts := []httpbackend.Option{
		httpbackend.WithSession(session),
		httpbackend.WithLogger(c.logger),
	}
	primary, err := httpbackend.New(c.baseURL, c.client, backendOpts...)
	if err != nil {
		return nil, err
	}

	providerOpts := []doh.ProviderOption{
		doh.WithServiceTimeout(c.client.DoHServiceTimeout),
		doh.WithSessionID(func() string {
			s, _ := session.Session()
			return s.UID
		}),
		doh.WithLogger(c.logger),
	}
	if c.services != nil {
		providerOpts = append(providerOpts, doh.WithServices(c.services...))
	}
	if c.lastResort != nil {
		providerOpts = append(providerOpts, doh.WithLastResort(c.lastResort, optIn{c.logger}))
	}
	provider := doh.NewProvider(primary.BaseURL(), np, providerOpts...)

	registry := prometheus.NewRegistry()
	metrics, err := dispatch.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	opts := []dispatch.Option{
		dispatch.WithClient(c.client),
		dispatch.WithLogger(c.logger),
		dispatch.WithMetrics(metrics),
	}
	router := dispatch.NewDoHHandler[*httpbackend.Client](primary, provider, np, httpbackend.Factory(c.client, backendOpts...), opts...)

	// Routing runs first so recovery handlers see the rerouted result.
	d, err := dispatch.New[*httpbackend.Client](primary, []dispatch.ErrorHandler[*httpbackend.Client]{
		router,
		handlers.NewRefreshTokenHandler[*httpbackend.Client](session, handlers.WithLogger(c.logger)),
		handlers.NewForceUpdateHandler[*httpbackend.Client](c.client, handlers.WithLogger(c.logger)),
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &stack{dispatcher: d, primary: primary, prefs: np, registry: registry}, nil
}

// prefsNamespace keys the persisted state by the primary host, so one
// state dir can serve several APIs.
func prefsNamespace(baseURL string) string {
	if host, err := doh.HostFromBaseURL(baseURL); err == nil {
		return host
	}
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return baseURL
}
