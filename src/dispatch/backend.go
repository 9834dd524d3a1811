// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"context"
	"time"
)

// Call is one logical client invocation. It is created once, stamped with
// the monotonic clock, and replayed verbatim across retries and handler
// replays so every attempt shares the same timestamp.
type Call[Api any] struct {
	// Timestamp is the monotonic clock reading when the call was created.
	Timestamp time.Duration

	// Block performs the remote operation against the API surface of one
	// backend. It must not retry or sleep.
	Block func(ctx context.Context, api Api) (any, error)
}

// Tokens is a fresh access/refresh token pair.
type Tokens struct {
	Access  string
	Refresh string
	Scopes  []string
}

// Backend executes calls against one fixed base URL. Implementations
// classify every failure into the [Error] taxonomy and perform exactly one
// network attempt per Invoke.
type Backend[Api any] interface {
	// BaseURL is the stable identity of the backend.
	BaseURL() string

	// Invoke performs a single attempt of call.
	Invoke(ctx context.Context, call *Call[Api]) Result[any]

	// RefreshTokens exchanges the current refresh token for a new pair.
	RefreshTokens(ctx context.Context) Result[Tokens]

	// IsPotentiallyBlocked pings the backend directly, bypassing any proxy,
	// and reports whether the ping failed in a blocking-like way.
	IsPotentiallyBlocked(ctx context.Context) bool
}

// BackendFactory builds a backend for an alternative base URL.
type BackendFactory[Api any] func(baseURL string) Backend[Api]

// Role discriminates handlers that the dispatcher treats specially.
type Role int

const (
	// RoleRecovery is an ordinary recovery strategy. Recovery handlers that
	// change the error get a second pass.
	RoleRecovery Role = iota

	// RoleRouting marks the anti-blocking handler. It takes part in the
	// first pass only.
	RoleRouting
)

// ErrorHandler turns an error into a success or a different error.
//
// A handler that cannot help must return err itself, unchanged: the
// dispatcher compares identities to detect "no change". Handlers may
// replay the call through backend.Invoke but never through the
// dispatcher loop.
type ErrorHandler[Api any] interface {
	Role() Role
	Handle(ctx context.Context, backend Backend[Api], err Error, call *Call[Api]) Result[any]
}

// HandlerFunc adapts a function to a [RoleRecovery] [ErrorHandler].
type HandlerFunc[Api any] func(ctx context.Context, backend Backend[Api], err Error, call *Call[Api]) Result[any]

// Role implements [ErrorHandler].
func (f HandlerFunc[Api]) Role() Role { return RoleRecovery }

// Handle implements [ErrorHandler].
func (f HandlerFunc[Api]) Handle(ctx context.Context, backend Backend[Api], err Error, call *Call[Api]) Result[any] {
	return f(ctx, backend, err, call)
}
