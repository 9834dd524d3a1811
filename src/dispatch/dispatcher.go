// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/apex/log"
)

// Router is the [RoleRouting] handler consulted by the [Dispatcher] to pick
// the active backend. [*DoHHandler] implements it.
type Router[Api any] interface {
	ErrorHandler[Api]

	// ActiveAltBackend returns the alternative backend currently in use, or
	// nil when calls should go to the primary backend.
	ActiveAltBackend() Backend[Api]

	// OnBackendBlocked records that backend produced a potential blocking
	// result.
	OnBackendBlocked(backend Backend[Api])
}

// Dispatcher is the single entry point for remote calls. It applies
// exponential backoff, drives the error handler chain and picks the active
// backend. It is safe for concurrent use.
type Dispatcher[Api any] struct {
	primary  Backend[Api]
	handlers []ErrorHandler[Api]
	router   Router[Api]
	opts     options
	gate     atomic.Pointer[rateGate]
}

// rateGate fails calls locally until the server's Retry-After has passed.
type rateGate struct {
	until time.Duration
	err   *TooManyRequestsError
}

// New creates a [Dispatcher] over primary. Handlers run in the given order.
// The first handler with [RoleRouting] that implements [Router] decides the
// active backend when [Client.ShouldUseDoH] is set.
//
//	d, err := dispatch.New(primary, []dispatch.ErrorHandler[*httpbackend.Client]{
//	    dohHandler,
//	    handlers.NewRefreshTokenHandler[*httpbackend.Client](session),
//	}, dispatch.WithClient(client))
func New[Api any](primary Backend[Api], handlers []ErrorHandler[Api], opts ...Option) (*Dispatcher[Api], error) {
	if primary == nil {
		return nil, ErrNoPrimaryBackend
	}
	d := &Dispatcher[Api]{
		primary:  primary,
		handlers: append([]ErrorHandler[Api](nil), handlers...),
		opts:     buildOptions(opts),
	}
	for _, h := range d.handlers {
		if h.Role() != RoleRouting {
			continue
		}
		if r, ok := h.(Router[Api]); ok {
			d.router = r
			break
		}
	}
	return d, nil
}

// Client returns the configuration in use.
func (d *Dispatcher[Api]) Client() *Client { return d.opts.client }

// Invoke runs block against the active backend and returns its type-erased
// result. When forceNoRetry is set the call is attempted once, although the
// handler chain still runs. Use the generic [Invoke] for typed results.
func (d *Dispatcher[Api]) Invoke(ctx context.Context, forceNoRetry bool, block func(ctx context.Context, api Api) (any, error)) Result[any] {
	call := &Call[Api]{Timestamp: d.opts.mono(), Block: block}

	result := d.handledCall(ctx, call)
	if forceNoRetry {
		d.opts.metrics.observeCall(result.Err)
		return result
	}

	maxRetryCount := d.opts.client.BackoffRetryCount
	for retryCount := 0; NeedsRetry(result, retryCount, maxRetryCount, d.opts.maxRetryAfter); retryCount++ {
		delay := backoffDelay(result, retryCount, d.opts.client.BackoffBaseDelay, d.opts.rnd)
		d.opts.logger.WithFields(log.Fields{
			"attempt": retryCount + 1,
			"delay":   delay,
			"error":   result.Err,
		}).Debug("dispatch: retrying call")

		if err := d.opts.sleep(ctx, delay); err != nil {
			// Caller gave up; hand back what we have.
			break
		}
		d.opts.metrics.observeRetry()
		result = d.handledCall(ctx, call)
	}

	d.opts.metrics.observeCall(result.Err)
	return result
}

// Invoke is the typed form of [Dispatcher.Invoke].
//
//	res := dispatch.Invoke(ctx, d, false, func(ctx context.Context, api *httpbackend.Client) (User, error) {
//	    var u User
//	    return u, api.GetJSON(ctx, "core/v4/users", &u)
//	})
func Invoke[Api, T any](ctx context.Context, d *Dispatcher[Api], forceNoRetry bool, block func(ctx context.Context, api Api) (T, error)) Result[T] {
	return Cast[T](d.Invoke(ctx, forceNoRetry, func(ctx context.Context, api Api) (any, error) {
		return block(ctx, api)
	}))
}

// activeBackend returns the alternative chosen by the router, if any and if
// DoH is enabled, otherwise the primary backend.
func (d *Dispatcher[Api]) activeBackend() Backend[Api] {
	if d.opts.client.ShouldUseDoH && d.router != nil {
		if alt := d.router.ActiveAltBackend(); alt != nil {
			return alt
		}
	}
	return d.primary
}

// handledCall performs one attempt through the handler chain. After a 429
// every call fails locally with the same error until the Retry-After delay
// has elapsed.
func (d *Dispatcher[Api]) handledCall(ctx context.Context, call *Call[Api]) Result[any] {
	if g := d.gate.Load(); g != nil && d.opts.mono() < g.until {
		d.opts.logger.WithField("until", g.until).Debug("dispatch: rate limited, not calling backend")
		return Failure[any](g.err)
	}
	result := d.chainedCall(ctx, call)

	var tooMany *TooManyRequestsError
	if errors.As(result.Err, &tooMany) {
		retryAfter, _ := tooMany.RetryAfter()
		d.gate.Store(&rateGate{until: d.opts.mono() + retryAfter, err: tooMany})
	}
	return result
}

// chainedCall invokes the active backend and feeds a failure through the
// handler chain. Handlers that changed the error get exactly one more pass,
// except the routing handler.
func (d *Dispatcher[Api]) chainedCall(ctx context.Context, call *Call[Api]) Result[any] {
	backend := d.activeBackend()
	result := safeInvoke(ctx, backend, call)
	if result.IsPotentialBlocking() {
		isPrimary := backend.BaseURL() == d.primary.BaseURL()
		d.opts.metrics.observeBlocked(isPrimary)
		d.opts.logger.WithFields(log.Fields{
			"backend": backend.BaseURL(),
			"primary": isPrimary,
		}).Debug("dispatch: backend potentially blocked")
		if d.router != nil {
			d.router.OnBackendBlocked(backend)
		}
	}

	var secondPass []ErrorHandler[Api]
	for _, h := range d.handlers {
		if result.IsSuccess() {
			break
		}
		given := result.Err
		result = h.Handle(ctx, backend, given, call)
		if result.Err != given && h.Role() != RoleRouting {
			secondPass = append(secondPass, h)
		}
	}

	for _, h := range secondPass {
		if result.IsSuccess() {
			break
		}
		result = h.Handle(ctx, backend, result.Err, call)
	}
	return result
}

// safeInvoke runs one backend attempt, turning a panic raised by the call
// block or the backend into a [*ParseError].
func safeInvoke[Api any](ctx context.Context, backend Backend[Api], call *Call[Api]) (result Result[any]) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure[any](NewParseError(fmt.Errorf("%w: %v", ErrInternalPanic, r)))
		}
	}()
	return backend.Invoke(ctx, call)
}
