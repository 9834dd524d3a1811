// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package doh

import "context"

// Service discovers alternative base URLs for the API at baseURL.
// sessionID may be empty.
type Service interface {
	AlternativeBaseURLs(ctx context.Context, sessionID, baseURL string) ([]string, error)
}

// ServiceFunc adapts a function to a [Service].
type ServiceFunc func(ctx context.Context, sessionID, baseURL string) ([]string, error)

// AlternativeBaseURLs implements [Service].
func (f ServiceFunc) AlternativeBaseURLs(ctx context.Context, sessionID, baseURL string) ([]string, error) {
	return f(ctx, sessionID, baseURL)
}
