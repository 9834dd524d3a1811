// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

// TokenStore receives refreshed credentials.
type TokenStore interface {
	// StoreTokens replaces the current token pair.
	StoreTokens(t dispatch.Tokens)

	// ForceLogout drops the session when the refresh token is rejected.
	ForceLogout()
}

// refreshKey is the single-flight key. One session has one refresh token.
const refreshKey = "refresh"

// RefreshTokenHandler recovers from 401 responses.
//
// A call that started before the last successful refresh carried stale
// credentials and is replayed once. Otherwise one refresh is issued,
// shared by every concurrent caller, and the call is replayed after it.
// A caller whose context ends stops waiting without cancelling the refresh
// for the others.
type RefreshTokenHandler[Api any] struct {
	store TokenStore
	opts  options
	group singleflight.Group

	mu          sync.Mutex
	lastRefresh time.Duration
	refreshed   bool
}

var _ dispatch.ErrorHandler[struct{}] = (*RefreshTokenHandler[struct{}])(nil)

// NewRefreshTokenHandler creates a [RefreshTokenHandler] storing tokens in
// store.
func NewRefreshTokenHandler[Api any](store TokenStore, opts ...Option) *RefreshTokenHandler[Api] {
	return &RefreshTokenHandler[Api]{store: store, opts: buildOptions(opts)}
}

// Role implements [dispatch.ErrorHandler].
func (h *RefreshTokenHandler[Api]) Role() dispatch.Role { return dispatch.RoleRecovery }

// Handle implements [dispatch.ErrorHandler].
func (h *RefreshTokenHandler[Api]) Handle(ctx context.Context, backend dispatch.Backend[Api], err dispatch.Error, call *dispatch.Call[Api]) dispatch.Result[any] {
	if statusCode(err) != dispatch.StatusUnauthorized {
		return dispatch.Failure[any](err)
	}

	if last, ok := h.last(); ok && call.Timestamp <= last {
		h.opts.logger.WithField("backend", backend.BaseURL()).Debug("handlers: replaying call with refreshed tokens")
		return backend.Invoke(ctx, call)
	}

	flight := h.group.DoChan(refreshKey, func() (any, error) {
		// A flight that finished after the check above already covers this call.
		if last, ok := h.last(); ok && call.Timestamp <= last {
			return nil, nil
		}
		// Detached so one caller giving up does not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.refreshTimeout)
		defer cancel()
		return nil, h.refresh(fctx, backend)
	})

	select {
	case <-ctx.Done():
		return dispatch.Failure[any](err)
	case r := <-flight:
		if r.Err != nil {
			h.opts.logger.WithFields(log.Fields{
				"backend": backend.BaseURL(),
				"shared":  r.Shared,
				"error":   r.Err,
			}).Warn("handlers: token refresh failed")
			return dispatch.Failure[any](err)
		}
	}
	return backend.Invoke(ctx, call)
}

func (h *RefreshTokenHandler[Api]) refresh(ctx context.Context, backend dispatch.Backend[Api]) error {
	res := backend.RefreshTokens(ctx)
	if res.Err != nil {
		switch statusCode(res.Err) {
		case dispatch.StatusBadRequest, dispatch.StatusUnprocessableEntity:
			h.opts.logger.WithField("code", statusCode(res.Err)).Warn("handlers: refresh token rejected, logging out")
			h.store.ForceLogout()
		}
		return res.Err
	}

	h.store.StoreTokens(res.Value)

	h.mu.Lock()
	h.lastRefresh = h.opts.mono()
	h.refreshed = true
	h.mu.Unlock()
	return nil
}

func (h *RefreshTokenHandler[Api]) last() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastRefresh, h.refreshed
}

// statusCode extracts the HTTP status of err, or 0.
func statusCode(err error) int {
	var httpErr *dispatch.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	var tooMany *dispatch.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return tooMany.HTTPCode()
	}
	return 0
}
