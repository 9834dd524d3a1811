// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package handlers

import (
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

const defaultRefreshTimeout = 30 * time.Second

type options struct {
	mono           func() time.Duration
	logger         log.Interface
	refreshTimeout time.Duration
}

// Option is a functional option shared by the handlers in this package.
type Option func(*options)

// WithMonoClock sets the monotonic clock compared against call timestamps.
// It must be the clock the dispatcher stamps calls with.
func WithMonoClock(f func() time.Duration) Option {
	return func(o *options) {
		if f != nil {
			o.mono = f
		}
	}
}

// WithRefreshTimeout bounds a shared token refresh. The default is 30s.
// Non-positive values are ignored.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
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

func buildOptions(opts []Option) options {
	o := options{
		mono:           dispatch.Monotonic,
		logger:         &log.Logger{Handler: discard.Default, Level: log.InfoLevel},
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
