// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/apex/log"
)

// Prefs is the persisted state of alternative routing. Implementations
// must be safe for concurrent use. An empty string means "no value".
type Prefs interface {
	ActiveAltBaseURL() string
	SetActiveAltBaseURL(baseURL string)
	AlternativeBaseURLs() []string
	LastPrimaryFailureMs() int64
	SetLastPrimaryFailureMs(ms int64)
}

// AlternativesRefresher refreshes the persisted list of alternative base
// URLs. The returned error only reports the cancellation of ctx.
type AlternativesRefresher interface {
	RefreshAlternatives(ctx context.Context) error
}

// AlternativesListener is notified about the outcome of alternative routing.
type AlternativesListener interface {
	// OnProxiesFailed is called when no alternative backend produced a
	// non-blocking result.
	OnProxiesFailed()
}

// CallHandler performs one call against backend.
type CallHandler[Api any] func(ctx context.Context, backend Backend[Api], call *Call[Api]) Result[any]

type altBackend[Api any] struct {
	backend Backend[Api]
}

// DoHHandler owns the choice between the primary backend and an alternative
// discovered over DNS-over-HTTPS. It is the [RoleRouting] handler of a
// [Dispatcher].
//
// The active alternative is held in an atomic pointer and persisted through
// [Prefs]; no lock is held while calls are in flight.
type DoHHandler[Api any] struct {
	primary  Backend[Api]
	provider AlternativesRefresher
	prefs    Prefs
	factory  BackendFactory[Api]
	opts     options
	active   atomic.Pointer[altBackend[Api]]
}

// NewDoHHandler creates a [DoHHandler]. Relevant options are [WithClient],
// [WithWallClock], [WithMonoClock], [WithShuffle], [WithLogger],
// [WithMetrics] and [WithAlternativesListener].
func NewDoHHandler[Api any](primary Backend[Api], provider AlternativesRefresher, prefs Prefs, factory BackendFactory[Api], opts ...Option) *DoHHandler[Api] {
	return &DoHHandler[Api]{
		primary:  primary,
		provider: provider,
		prefs:    prefs,
		factory:  factory,
		opts:     buildOptions(opts),
	}
}

// Role implements [ErrorHandler].
func (h *DoHHandler[Api]) Role() Role { return RoleRouting }

// ActiveAltBackend returns the alternative in use, or nil when the primary
// backend should be used. Once the proxy validity period has elapsed since
// the primary last failed, the alternative is discarded.
func (h *DoHHandler[Api]) ActiveAltBackend() Backend[Api] {
	if h.opts.wall()-h.prefs.LastPrimaryFailureMs() >= h.opts.client.ProxyValidityPeriod.Milliseconds() {
		if h.active.Load() != nil || h.prefs.ActiveAltBaseURL() != "" {
			h.opts.logger.Debug("doh: alternative expired, retrying primary")
			h.setActive(nil)
		}
		return nil
	}
	if cur := h.active.Load(); cur != nil {
		return cur.backend
	}
	baseURL := h.prefs.ActiveAltBaseURL()
	if baseURL == "" {
		return nil
	}
	h.active.CompareAndSwap(nil, &altBackend[Api]{backend: h.factory(baseURL)})
	if cur := h.active.Load(); cur != nil {
		return cur.backend
	}
	return nil
}

func (h *DoHHandler[Api]) setActive(backend Backend[Api]) {
	if backend == nil {
		h.active.Store(nil)
		h.prefs.SetActiveAltBaseURL("")
		return
	}
	h.active.Store(&altBackend[Api]{backend: backend})
	h.prefs.SetActiveAltBaseURL(backend.BaseURL())
}

// OnBackendBlocked records a potential blocking result from backend. A
// blocked primary stamps the failure time; a blocked alternative is
// dropped if it is the active one.
func (h *DoHHandler[Api]) OnBackendBlocked(backend Backend[Api]) {
	if backend.BaseURL() == h.primary.BaseURL() {
		h.prefs.SetLastPrimaryFailureMs(h.opts.wall())
		return
	}
	cur := h.active.Load()
	if cur != nil && cur.backend.BaseURL() == backend.BaseURL() && h.active.CompareAndSwap(cur, nil) {
		h.opts.logger.WithField("backend", backend.BaseURL()).Debug("doh: invalidating alternative after failure")
		h.prefs.SetActiveAltBaseURL("")
	}
}

// Handle implements [ErrorHandler]. Only potential blocking connection
// errors are considered; anything else is returned unchanged.
func (h *DoHHandler[Api]) Handle(ctx context.Context, backend Backend[Api], err Error, call *Call[Api]) Result[any] {
	failed := Failure[any](err)
	var connErr *ConnectionError
	if !h.opts.client.ShouldUseDoH || !err.PotentialBlocking() || !errors.As(err, &connErr) {
		return failed
	}
	if alt := h.ActiveAltBackend(); alt != nil && alt.BaseURL() != backend.BaseURL() {
		h.opts.logger.WithField("backend", alt.BaseURL()).Debug("doh: alternative already established")
		return safeInvoke(ctx, alt, call)
	}
	return h.reroute(ctx, failed, call, safeInvoke[Api])
}

// Invoke runs call against the active backend through callHandler and, if
// the result looks blocked, falls back to alternative routing.
//
// It is the standalone entry point for callers that drive a [DoHHandler]
// without a [Dispatcher]. A Dispatcher never calls it: it picks the backend
// through [DoHHandler.ActiveAltBackend] and reroutes through
// [DoHHandler.Handle] as part of its handler chain.
func (h *DoHHandler[Api]) Invoke(ctx context.Context, callHandler CallHandler[Api], call *Call[Api]) Result[any] {
	backend := h.ActiveAltBackend()
	if backend == nil {
		backend = h.primary
	}
	result := callHandler(ctx, backend, call)
	if !result.IsPotentialBlocking() || !h.opts.client.ShouldUseDoH {
		return result
	}
	h.OnBackendBlocked(backend)
	return h.reroute(ctx, result, call, callHandler)
}

// reroute confirms the block and tries the known alternatives. failed is
// returned unchanged when the primary turns out reachable or when no
// alternative helps.
func (h *DoHHandler[Api]) reroute(ctx context.Context, failed Result[any], call *Call[Api], callHandler CallHandler[Api]) Result[any] {
	if !h.confirmBlocked(ctx) {
		return failed
	}
	result, ok := h.callWithAlternatives(ctx, call, callHandler)
	if !ok {
		h.opts.logger.Warn("doh: no alternative backend available")
		if h.opts.listener != nil {
			h.opts.listener.OnProxiesFailed()
		}
		return failed
	}
	return result
}

// confirmBlocked races a direct probe of the primary backend against a
// refresh of the alternatives. The refresh is cancelled when the probe
// shows the primary is reachable.
func (h *DoHHandler[Api]) confirmBlocked(ctx context.Context) bool {
	refreshCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	probe := make(chan bool, 1)
	refresh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				probe <- true
			}
		}()
		probe <- h.primary.IsPotentiallyBlocked(ctx)
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				refresh <- fmt.Errorf("%w: %v", ErrInternalPanic, r)
			}
		}()
		refresh <- h.provider.RefreshAlternatives(refreshCtx)
	}()

	var blocked bool
	select {
	case <-ctx.Done():
		return false
	case blocked = <-probe:
	}

	if !blocked {
		h.opts.logger.Debug("doh: primary reachable, staying on primary")
		cancel()
		h.setActive(nil)
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case err := <-refresh:
		if err != nil {
			h.opts.logger.WithError(err).Warn("doh: refreshing alternatives failed")
		}
	}
	return true
}

// callWithAlternatives tries each persisted alternative in random order
// until one gives a non-blocking result. The loop stops once
// AlternativesTotalTimeout has elapsed or DoH has been disabled.
func (h *DoHHandler[Api]) callWithAlternatives(ctx context.Context, call *Call[Api], callHandler CallHandler[Api]) (Result[any], bool) {
	alternatives := slices.Clone(h.prefs.AlternativeBaseURLs())
	h.opts.shuffle(alternatives)

	start := h.opts.mono()
	for _, baseURL := range alternatives {
		if !h.opts.client.ShouldUseDoH || ctx.Err() != nil ||
			h.opts.mono()-start > h.opts.client.AlternativesTotalTimeout {
			return Result[any]{}, false
		}
		backend := h.factory(baseURL)
		result := callHandler(ctx, backend, call)
		if result.IsPotentialBlocking() {
			h.opts.logger.WithField("backend", baseURL).Debug("doh: alternative blocked")
			continue
		}
		h.opts.logger.WithFields(log.Fields{
			"backend": baseURL,
			"success": result.IsSuccess(),
		}).Info("doh: switched to alternative backend")
		h.opts.metrics.observeSwitch()
		h.setActive(backend)
		return result, true
	}
	return Result[any]{}, false
}
