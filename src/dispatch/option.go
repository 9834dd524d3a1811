// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"context"
	"math/rand"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

// Option is a functional option for configuring a [Dispatcher] or a
// [DoHHandler]. Options that do not apply to the receiver are ignored.
type Option func(*options)

type options struct {
	client        *Client
	mono          func() time.Duration
	wall          func() int64
	sleep         func(ctx context.Context, d time.Duration) error
	rnd           func() float64
	shuffle       func(urls []string)
	logger        log.Interface
	metrics       *Metrics
	listener      AlternativesListener
	maxRetryAfter time.Duration
}

var processStart = time.Now()

// Monotonic is the default monotonic clock: the time elapsed since the
// process started. Handlers comparing against [Call.Timestamp] must use
// the same clock as the dispatcher.
func Monotonic() time.Duration { return time.Since(processStart) }

func defaultOptions() options {
	return options{
		client:        DefaultClient(),
		mono:          Monotonic,
		wall:          func() int64 { return time.Now().UnixMilli() },
		sleep:         sleepContext,
		rnd:           rand.Float64,
		shuffle:       shuffleURLs,
		logger:        &log.Logger{Handler: discard.Default, Level: log.InfoLevel},
		maxRetryAfter: defaultMaxRetryAfter,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClient sets the client configuration.
// The default is [DefaultClient].
//
// Passing nil is a no-op.
func WithClient(c *Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithMonoClock sets the monotonic clock used to stamp calls and to bound
// the alternative trial loop.
func WithMonoClock(fn func() time.Duration) Option {
	return func(o *options) {
		if fn != nil {
			o.mono = fn
		}
	}
}

// WithWallClock sets the wall clock, in Unix milliseconds, used for the
// proxy validity window.
func WithWallClock(fn func() int64) Option {
	return func(o *options) {
		if fn != nil {
			o.wall = fn
		}
	}
}

// WithSleep replaces the backoff sleep. fn must return ctx.Err() when the
// context ends before d elapses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithRand sets the source of uniform samples in [0, 1) used for jitter.
func WithRand(fn func() float64) Option {
	return func(o *options) {
		if fn != nil {
			o.rnd = fn
		}
	}
}

// WithShuffle sets the function that reorders alternative base URLs before
// they are tried. It must shuffle in place.
func WithShuffle(fn func(urls []string)) Option {
	return func(o *options) {
		if fn != nil {
			o.shuffle = fn
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Interface) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the Prometheus collectors. See [NewMetrics].
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithAlternativesListener registers a listener notified when no
// alternative backend could serve a blocked call.
func WithAlternativesListener(l AlternativesListener) Option {
	return func(o *options) {
		o.listener = l
	}
}

// WithMaxRetryAfter sets the largest server Retry-After hint that is still
// honoured with a retry. The default is 10 seconds.
func WithMaxRetryAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxRetryAfter = d
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shuffleURLs(urls []string) {
	rand.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
}
