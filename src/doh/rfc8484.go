// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/miekg/dns"
)

const (
	dnsMessageType  = "application/dns-message"
	maxResponseSize = 65535
)

// DefaultServiceURLs are public resolvers queried for alternatives, in
// order.
var DefaultServiceURLs = []string{
	"https://dns11.quad9.net/dns-query",
	"https://dns.google/dns-query",
}

// RFC8484Service discovers alternatives by resolving a TXT record through
// a DNS-over-HTTPS resolver using the GET form of RFC 8484.
type RFC8484Service struct {
	serviceURL string
	zone       string
	client     *http.Client
}

// ServiceOption configures an [RFC8484Service].
type ServiceOption func(*RFC8484Service)

// WithHTTPClient sets the HTTP client used for queries.
// The default is [http.DefaultClient]; the provider bounds each query
// with its own timeout.
//
// Passing nil is a no-op.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *RFC8484Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithZone sets the zone holding the TXT records. The default is
// [DefaultZone].
func WithZone(zone string) ServiceOption {
	return func(s *RFC8484Service) {
		if zone != "" {
			s.zone = zone
		}
	}
}

// NewRFC8484Service creates a service querying the resolver at serviceURL.
func NewRFC8484Service(serviceURL string, opts ...ServiceOption) *RFC8484Service {
	s := &RFC8484Service{
		serviceURL: serviceURL,
		zone:       DefaultZone,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRFC8484Services creates one service per URL.
func NewRFC8484Services(serviceURLs []string, opts ...ServiceOption) []Service {
	services := make([]Service, 0, len(serviceURLs))
	for _, u := range serviceURLs {
		services = append(services, NewRFC8484Service(u, opts...))
	}
	return services
}

// String returns the resolver URL.
func (s *RFC8484Service) String() string { return s.serviceURL }

// AlternativeBaseURLs implements [Service]. Every TXT string in the answer
// becomes "https://<txt>/".
func (s *RFC8484Service) AlternativeBaseURLs(ctx context.Context, _ string, baseURL string) ([]string, error) {
	host, err := HostFromBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, QueryName(host, s.zone))
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != dnsMessageType {
		return nil, fmt.Errorf("%w: %q", ErrBadContentType, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	return parseAnswer(body)
}

// newRequest packs a TXT query for name with id 0 and recursion desired,
// as recommended for HTTP caching.
func (s *RFC8484Service) newRequest(ctx context.Context, name string) (*http.Request, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.Id = 0

	wire, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("doh: pack query: %w", err)
	}

	u, err := url.Parse(s.serviceURL)
	if err != nil {
		return nil, fmt.Errorf("doh: service url: %w", err)
	}
	q := u.Query()
	q.Set("dns", base64.RawURLEncoding.EncodeToString(wire))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", dnsMessageType)
	return req, nil
}

// parseAnswer extracts the TXT strings of a wire format DNS response.
func parseAnswer(wire []byte) ([]string, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(wire); err != nil {
		return nil, fmt.Errorf("doh: unpack answer: %w", err)
	}
	return answerURLs(msg)
}

// answerURLs turns the TXT records of msg into base URLs. Records that
// are not valid host names are skipped.
func answerURLs(msg *dns.Msg) ([]string, error) {
	if msg.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: %s", ErrBadRcode, dns.RcodeToString[msg.Rcode])
	}

	var urls []string
	for _, rr := range msg.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		if record := strings.Join(txt.Txt, ""); IsValidHost(record) {
			urls = append(urls, "https://"+record+"/")
		}
	}
	if len(urls) == 0 {
		return nil, ErrEmptyAnswer
	}
	return urls, nil
}
