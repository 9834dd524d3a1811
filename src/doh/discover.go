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
)

const defaultConcurrency = 8

// Report is the outcome of querying one discovery service.
type Report struct {
	// Service names the discovery service.
	Service string

	// Alternatives holds the discovered base URLs.
	Alternatives []string

	// Latency is the time the query took.
	Latency time.Duration

	// Err is non-nil if the query failed.
	Err error
}

// Discover queries every service concurrently for the alternatives of
// baseURL and returns one [Report] per service, in order. Unlike
// [Provider.RefreshAlternatives] it neither stops at the first answer nor
// persists anything; it is meant for diagnostics.
//
// concurrency <= 0 selects a default of 8.
func Discover(ctx context.Context, baseURL string, services []Service, timeout time.Duration, concurrency int) ([]Report, error) {
	if len(services) == 0 {
		return nil, ErrNoServices
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if timeout <= 0 {
		timeout = defaultServiceTimeout
	}

	reports := make([]Report, len(services))
	var wg sync.WaitGroup

	// Semaphore to limit concurrency.
	sem := make(chan struct{}, concurrency)

Loop:
	for i, svc := range services {
		select {
		case <-ctx.Done():
			for j := i; j < len(services); j++ {
				reports[j] = Report{Service: serviceName(services[j], j), Err: ctx.Err()}
			}
			// Wait for running queries before returning.
			break Loop
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, svc Service) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					reports[idx] = Report{
						Service: serviceName(svc, idx),
						Err:     fmt.Errorf("%w: %v", ErrInternalPanic, r),
					}
				}
			}()

			reports[idx] = discoverOne(ctx, baseURL, svc, idx, timeout)
		}(i, svc)
	}

	wg.Wait()
	if ctx.Err() != nil {
		return reports, ctx.Err()
	}
	return reports, nil
}

func discoverOne(ctx context.Context, baseURL string, svc Service, idx int, timeout time.Duration) Report {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	urls, err := svc.AlternativeBaseURLs(ctx, "", baseURL)
	report := Report{
		Service: serviceName(svc, idx),
		Latency: time.Since(start),
		Err:     err,
	}
	if err == nil && len(urls) == 0 {
		report.Err = ErrEmptyAnswer
	}
	if report.Err == nil {
		report.Alternatives = urls
	}
	return report
}
