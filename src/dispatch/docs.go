// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package dispatch executes remote API calls with retry, pluggable error
// recovery and censorship-aware routing.
//
// A [Dispatcher] is the only entry point callers use. Each call is run
// against the active [Backend], classified into the closed [Error]
// taxonomy and, on failure, handed to an ordered chain of [ErrorHandler]
// values. Transient failures are retried with exponential jitter.
//
// When the primary endpoint looks blocked, the [DoHHandler] confirms the
// block with a direct probe while it refreshes a list of alternative base
// URLs (see package doh). It then tries those alternatives in random order
// and keeps the first that answers as the active backend until the proxy
// validity period expires.
//
// # Features
//
//   - Typed results: [Result] carries either a value or an [Error];
//     [Result.Get] converts to the usual (value, error) pair
//   - Backoff with jitter: 408 retried once, Retry-After honoured up to
//     10 seconds, 429 and 503 retried only with Retry-After
//   - Two-pass handler chain: handlers that changed the error get one
//     more chance after the first pass
//   - Alternative routing: probe and discovery raced, loser cancelled
//   - Panic recovery: a panicking call block becomes a [*ParseError]
//     wrapping [ErrInternalPanic]
//   - Structured logging via [github.com/apex/log] and optional
//     Prometheus counters via [NewMetrics]
//
// # Quick Start
//
//	d, err := dispatch.New(primary, []dispatch.ErrorHandler[*httpbackend.Client]{dohHandler})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := dispatch.Invoke(ctx, d, false, func(ctx context.Context, api *httpbackend.Client) (Status, error) {
//	    var s Status
//	    return s, api.GetJSON(ctx, "tests/ping", &s)
//	})
//	status, err := res.Get()
package dispatch
