// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package prefs

import (
	"errors"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"gopkg.in/yaml.v3"
)

// Keys used by [NetworkPrefs].
const (
	KeyActiveAltBaseURL     = "active_alt_base_url"
	KeyAlternativeBaseURLs  = "alternative_base_urls"
	KeyLastPrimaryFailureMs = "last_primary_failure_ms"
)

// NetworkPrefs stores the alternative routing state as YAML values in a
// [KeyValueStore]. Write failures are logged; read failures yield zero
// values.
type NetworkPrefs struct {
	store     KeyValueStore
	namespace string
	logger    log.Interface
}

// Option is a functional option for configuring [NetworkPrefs].
type Option func(*NetworkPrefs)

// WithNamespace prefixes every key with ns, so one store can hold the
// state of several primary base URLs.
func WithNamespace(ns string) Option {
	return func(p *NetworkPrefs) {
		p.namespace = ns
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Interface) Option {
	return func(p *NetworkPrefs) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewNetworkPrefs creates [NetworkPrefs] backed by store. A nil store
// selects a fresh [Memory].
func NewNetworkPrefs(store KeyValueStore, opts ...Option) *NetworkPrefs {
	if store == nil {
		store = NewMemory()
	}
	p := &NetworkPrefs{
		store:  store,
		logger: &log.Logger{Handler: discard.Default, Level: log.InfoLevel},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ActiveAltBaseURL returns the persisted alternative base URL, or "".
func (p *NetworkPrefs) ActiveAltBaseURL() string {
	var v string
	p.get(KeyActiveAltBaseURL, &v)
	return v
}

// SetActiveAltBaseURL persists the alternative base URL. "" clears it.
func (p *NetworkPrefs) SetActiveAltBaseURL(baseURL string) {
	p.set(KeyActiveAltBaseURL, baseURL)
}

// AlternativeBaseURLs returns the last discovered alternatives.
func (p *NetworkPrefs) AlternativeBaseURLs() []string {
	var v []string
	p.get(KeyAlternativeBaseURLs, &v)
	return v
}

// SetAlternativeBaseURLs persists the discovered alternatives.
func (p *NetworkPrefs) SetAlternativeBaseURLs(urls []string) {
	p.set(KeyAlternativeBaseURLs, urls)
}

// LastPrimaryFailureMs returns the wall clock time, in Unix milliseconds,
// at which the primary backend last looked blocked.
func (p *NetworkPrefs) LastPrimaryFailureMs() int64 {
	var v int64
	p.get(KeyLastPrimaryFailureMs, &v)
	return v
}

// SetLastPrimaryFailureMs persists the primary failure time.
func (p *NetworkPrefs) SetLastPrimaryFailureMs(ms int64) {
	p.set(KeyLastPrimaryFailureMs, ms)
}

func (p *NetworkPrefs) key(name string) string {
	if p.namespace == "" {
		return name
	}
	return p.namespace + "." + name
}

func (p *NetworkPrefs) get(name string, v any) {
	data, err := p.store.Get(p.key(name))
	if err != nil {
		if !errors.Is(err, ErrNoSuchKey) {
			p.logger.WithError(err).WithField("key", name).Warn("prefs: read failed")
		}
		return
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		p.logger.WithError(err).WithField("key", name).Warn("prefs: corrupt value ignored")
	}
}

func (p *NetworkPrefs) set(name string, v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		p.logger.WithError(err).WithField("key", name).Error("prefs: encode failed")
		return
	}
	if err := p.store.Set(p.key(name), data); err != nil {
		p.logger.WithError(err).WithField("key", name).Error("prefs: write failed")
	}
}
