// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

const (
	acceptHeader    = "application/vnd.protonmail.v1+json"
	maxErrorBody    = 1 << 20
	contentTypeJSON = "application/json"
)

// Client is the API surface handed to call blocks. It is bound to one
// base URL and returns errors already classified as [dispatch.Error].
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	cfg       *dispatch.Client
	session   SessionStore
	connected func() bool
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// GetJSON issues a GET for path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST of in as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Do performs one request. in, if non-nil, is sent as JSON; out, if
// non-nil, receives the decoded 2xx body. Every failure is a
// [dispatch.Error].
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	if !c.connected() {
		return dispatch.NewNoInternet(nil)
	}

	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return dispatch.NewParseError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err, c.connected())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classifyResponse(resp, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// A body cut short is a transport failure, not a malformed response.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err, c.connected())
	}
	if err := json.Unmarshal(data, out); err != nil {
		return dispatch.NewParseError(err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpbackend: bad path %q: %w", path, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("httpbackend: encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", acceptHeader)
	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if c.cfg.AppVersion != "" {
		req.Header.Set("x-pm-appversion", c.cfg.AppVersion)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.session != nil {
		if s, ok := c.session.Session(); ok {
			if s.UID != "" {
				req.Header.Set("x-pm-uid", s.UID)
			}
			if s.AccessToken != "" {
				req.Header.Set("Authorization", "Bearer "+s.AccessToken)
			}
		}
	}
	return req, nil
}
