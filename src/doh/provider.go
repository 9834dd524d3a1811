// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

// Default configuration values.
const (
	DefaultMinRefreshInterval = 10 * time.Minute
	defaultServiceTimeout     = 10 * time.Second
)

var processStart = time.Now()

// AlternativesStore persists the discovered alternative base URLs.
type AlternativesStore interface {
	SetAlternativeBaseURLs(urls []string)
}

// UnblockConfirmer is asked before the last-resort service is queried.
type UnblockConfirmer interface {
	ConfirmUnblock(ctx context.Context) bool
}

// Provider refreshes the alternatives of one primary base URL.
//
// Refreshes are rate limited and single-flight: concurrent callers share one
// discovery run. Each caller may stop waiting through its own context; the
// shared run is only cancelled once every caller has left.
type Provider struct {
	baseURL        string
	store          AlternativesStore
	services       []Service
	lastResort     Service
	confirmer      UnblockConfirmer
	sessionID      func() string
	minInterval    time.Duration
	serviceTimeout time.Duration
	mono           func() time.Duration
	logger         log.Interface

	mu          sync.Mutex
	refreshed   bool
	lastRefresh time.Duration
	inflight    *flight
}

// flight is one shared discovery run.
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
}

// ProviderOption is a functional option for configuring a [Provider].
type ProviderOption func(*Provider)

// WithServices sets the discovery services queried in order.
func WithServices(services ...Service) ProviderOption {
	return func(p *Provider) {
		p.services = services
	}
}

// WithLastResort sets a service queried only when every other service
// failed and confirmer approves. Both must be non-nil to take effect.
func WithLastResort(service Service, confirmer UnblockConfirmer) ProviderOption {
	return func(p *Provider) {
		p.lastResort = service
		p.confirmer = confirmer
	}
}

// WithSessionID sets the function supplying the session passed to services.
func WithSessionID(fn func() string) ProviderOption {
	return func(p *Provider) {
		if fn != nil {
			p.sessionID = fn
		}
	}
}

// WithMinRefreshInterval sets the minimum time between two completed
// refreshes. The default is 10 minutes.
func WithMinRefreshInterval(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d >= 0 {
			p.minInterval = d
		}
	}
}

// WithServiceTimeout bounds each service query. The default is 10 seconds.
func WithServiceTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.serviceTimeout = d
		}
	}
}

// WithMonoClock sets the monotonic clock used for rate limiting.
func WithMonoClock(fn func() time.Duration) ProviderOption {
	return func(p *Provider) {
		if fn != nil {
			p.mono = fn
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Interface) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider creates a [Provider] for the API at baseURL writing its
// results to store. Without [WithServices] the [DefaultServiceURLs] are
// queried over RFC 8484.
func NewProvider(baseURL string, store AlternativesStore, opts ...ProviderOption) *Provider {
	p := &Provider{
		baseURL:        baseURL,
		store:          store,
		services:       NewRFC8484Services(DefaultServiceURLs),
		sessionID:      func() string { return "" },
		minInterval:    DefaultMinRefreshInterval,
		serviceTimeout: defaultServiceTimeout,
		mono:           func() time.Duration { return time.Since(processStart) },
		logger:         &log.Logger{Handler: discard.Default, Level: log.InfoLevel},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RefreshAlternatives runs a discovery, joins the one in flight, or does
// nothing when the last completed refresh is more recent than the minimum
// interval. The returned error is non-nil only when ctx ended first;
// discovery failures are logged.
func (p *Provider) RefreshAlternatives(ctx context.Context) error {
	p.mu.Lock()
	f := p.inflight
	if f == nil {
		if p.refreshed && p.mono()-p.lastRefresh < p.minInterval {
			p.mu.Unlock()
			p.logger.WithField("base_url", p.baseURL).Debug("doh: refresh skipped, rate limited")
			return nil
		}
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{done: make(chan struct{}), cancel: cancel}
		p.inflight = f
		go p.run(fctx, f)
	}
	f.waiters++
	p.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		p.leave(f)
		return ctx.Err()
	}
}

// leave drops one awaiter and cancels the run when none remain.
func (p *Provider) leave(f *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if p.inflight == f {
		p.inflight = nil
	}
	f.cancel()
}

func (p *Provider) run(ctx context.Context, f *flight) {
	defer close(f.done)
	defer f.cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithError(fmt.Errorf("%w: %v", ErrInternalPanic, r)).Error("doh: refresh aborted")
		}
		p.mu.Lock()
		if ctx.Err() == nil {
			p.refreshed = true
			p.lastRefresh = p.mono()
		}
		if p.inflight == f {
			p.inflight = nil
		}
		p.mu.Unlock()
	}()

	if err := p.refresh(ctx); err != nil {
		p.logger.WithError(err).WithField("base_url", p.baseURL).Warn("doh: no alternatives discovered")
	}
}

// refresh queries the services in order and stores the first answer.
func (p *Provider) refresh(ctx context.Context) error {
	if len(p.services) == 0 && p.lastResort == nil {
		return ErrNoServices
	}
	sessionID := p.sessionID()

	var lastErr error = ErrNoServices
	for i, svc := range p.services {
		if err := ctx.Err(); err != nil {
			return err
		}
		urls, err := p.query(ctx, svc, sessionID)
		if err != nil {
			p.logger.WithFields(log.Fields{
				"service": serviceName(svc, i),
				"error":   err,
			}).Debug("doh: discovery service failed")
			lastErr = err
			continue
		}
		p.store.SetAlternativeBaseURLs(urls)
		p.logger.WithFields(log.Fields{
			"service":      serviceName(svc, i),
			"alternatives": len(urls),
		}).Info("doh: alternatives refreshed")
		return nil
	}

	if p.lastResort == nil || p.confirmer == nil {
		return lastErr
	}
	if !p.confirmer.ConfirmUnblock(ctx) {
		return ErrUnblockDeclined
	}
	urls, err := p.query(ctx, p.lastResort, sessionID)
	if err != nil {
		return err
	}
	p.store.SetAlternativeBaseURLs(urls)
	p.logger.WithField("alternatives", len(urls)).Info("doh: alternatives refreshed from last resort")
	return nil
}

// query runs svc bounded by the service timeout. A service that ignores
// its context is abandoned when the timeout fires.
func (p *Provider) query(ctx context.Context, svc Service, sessionID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.serviceTimeout)
	defer cancel()

	type answer struct {
		urls []string
		err  error
	}
	ch := make(chan answer, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: fmt.Errorf("%w: %v", ErrInternalPanic, r)}
			}
		}()
		urls, err := svc.AlternativeBaseURLs(ctx, sessionID, p.baseURL)
		ch <- answer{urls: urls, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrServiceTimeout, ctx.Err())
	case a := <-ch:
		if a.err != nil {
			return nil, a.err
		}
		if len(a.urls) == 0 {
			return nil, ErrEmptyAnswer
		}
		return a.urls, nil
	}
}

func serviceName(svc Service, i int) string {
	if s, ok := svc.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("service-%d", i)
}
