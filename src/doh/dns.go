// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// DNSService discovers alternatives with a plain DNS TXT query sent to a
// resolver. It publishes the same records as [RFC8484Service] but is
// trivially blocked on networks that intercept port 53, so it fits best
// as a last resort or for diagnostics.
type DNSService struct {
	resolver string
	zone     string
	client   *dns.Client
}

// DNSServiceOption configures a [DNSService].
type DNSServiceOption func(*DNSService)

// WithDNSClient sets the miekg/dns client, e.g. to query over TCP.
//
// Passing nil is a no-op.
func WithDNSClient(c *dns.Client) DNSServiceOption {
	return func(s *DNSService) {
		if c != nil {
			s.client = c
		}
	}
}

// WithDNSZone sets the discovery zone. The default is [DefaultZone].
func WithDNSZone(zone string) DNSServiceOption {
	return func(s *DNSService) {
		if zone != "" {
			s.zone = zone
		}
	}
}

// NewDNSService creates a [DNSService] for resolver ("ip" or "ip:port";
// port 53 is assumed when absent).
func NewDNSService(resolver string, opts ...DNSServiceOption) *DNSService {
	if _, _, err := net.SplitHostPort(resolver); err != nil {
		resolver = net.JoinHostPort(strings.Trim(resolver, "[]"), "53")
	}
	s := &DNSService{
		resolver: resolver,
		zone:     DefaultZone,
		client:   new(dns.Client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// String returns the resolver address.
func (s *DNSService) String() string { return "dns://" + s.resolver }

// AlternativeBaseURLs implements [Service].
func (s *DNSService) AlternativeBaseURLs(ctx context.Context, _ string, baseURL string) ([]string, error) {
	host, err := HostFromBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(QueryName(host, s.zone), dns.TypeTXT)

	type exchange struct {
		msg *dns.Msg
		err error
	}
	ch := make(chan exchange, 1)

	// ExchangeContext only honours the deadline of ctx, not cancellation.
	go func() {
		resp, _, err := s.client.ExchangeContext(ctx, msg, s.resolver)
		ch <- exchange{msg: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrServiceTimeout, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrServiceTimeout, r.err)
			}
			return nil, r.err
		}
		return answerURLs(r.msg)
	}
}
