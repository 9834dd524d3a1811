// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// fakeAPI is the API surface handed to call blocks in tests.
type fakeAPI struct {
	baseURL string
}

// fakeBackend replays scripted results. With no script it runs the call
// block against a fakeAPI.
type fakeBackend struct {
	baseURL string
	results []Result[any]
	blocked bool

	calls      atomic.Int32
	probeCalls atomic.Int32
}

func newFakeBackend(baseURL string, results ...Result[any]) *fakeBackend {
	return &fakeBackend{baseURL: baseURL, results: results}
}

func (b *fakeBackend) BaseURL() string { return b.baseURL }

func (b *fakeBackend) Invoke(ctx context.Context, call *Call[fakeAPI]) Result[any] {
	n := int(b.calls.Add(1)) - 1
	if len(b.results) == 0 {
		v, err := call.Block(ctx, fakeAPI{baseURL: b.baseURL})
		if err != nil {
			var e Error
			if errors.As(err, &e) {
				return Failure[any](e)
			}
			return Failure[any](NewConnectionError(false, err))
		}
		return Success(v)
	}
	return b.results[min(n, len(b.results)-1)]
}

func (b *fakeBackend) RefreshTokens(context.Context) Result[Tokens] {
	return Success(Tokens{Access: "access", Refresh: "refresh"})
}

func (b *fakeBackend) IsPotentiallyBlocked(context.Context) bool {
	b.probeCalls.Add(1)
	return b.blocked
}

// fakePrefs is an in-memory Prefs.
type fakePrefs struct {
	mu           sync.Mutex
	active       string
	alternatives []string
	lastFailure  int64
}

func (p *fakePrefs) ActiveAltBaseURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *fakePrefs) SetActiveAltBaseURL(baseURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = baseURL
}

func (p *fakePrefs) AlternativeBaseURLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alternatives
}

func (p *fakePrefs) SetAlternativeBaseURLs(urls []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alternatives = urls
}

func (p *fakePrefs) LastPrimaryFailureMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFailure
}

func (p *fakePrefs) SetLastPrimaryFailureMs(ms int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastFailure = ms
}

// fakeProvider fills prefs with alternatives on refresh. When hang is set
// it blocks until its context ends and reports the cancellation.
type fakeProvider struct {
	prefs        *fakePrefs
	alternatives []string
	hang         bool

	calls     atomic.Int32
	cancelled chan struct{}
}

func (p *fakeProvider) RefreshAlternatives(ctx context.Context) error {
	p.calls.Add(1)
	if p.hang {
		<-ctx.Done()
		if p.cancelled != nil {
			close(p.cancelled)
		}
		return ctx.Err()
	}
	if p.alternatives != nil {
		p.prefs.SetAlternativeBaseURLs(p.alternatives)
	}
	return nil
}

type countingListener struct {
	failed atomic.Int32
}

func (l *countingListener) OnProxiesFailed() { l.failed.Add(1) }

// manualClock is a settable clock shared by the mono and wall options.
type manualClock struct {
	now atomic.Int64
}

func (c *manualClock) mono() time.Duration { return time.Duration(c.now.Load()) * time.Millisecond }
func (c *manualClock) wall() int64         { return c.now.Load() }
func (c *manualClock) advance(d time.Duration) {
	c.now.Add(d.Milliseconds())
}

// recordingSleep records requested delays without sleeping.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleep) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func noShuffle([]string) {}

func blockedErr() *ConnectionError { return NewConnectionError(true, errors.New("connection reset")) }
