// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dispatch

import (
	"math"
	"time"
)

// Jitter bases used by [Dispatcher] between retries.
const (
	retryAfterJitterBase = 1.2
	defaultJitterBase    = 2.0
)

// NeedsRetry reports whether r should be retried after retryCount retries
// have already been made.
//
// A 408 is retried once at most. A response carrying Retry-After is only
// retried when the hint does not exceed maxRetryAfter. Without the header,
// 429 and 503 are never retried.
func NeedsRetry[T any](r Result[T], retryCount, maxRetryCount int, maxRetryAfter time.Duration) bool {
	if retryCount >= maxRetryCount || !r.IsRetryable() {
		return false
	}
	code := httpCode(r.Err)
	if code == StatusRequestTimeout {
		return retryCount == 0
	}
	retryAfter, ok := r.RetryAfter()
	if !ok {
		return code != StatusTooManyRequests && code != StatusServiceUnavailable
	}
	return retryAfter <= maxRetryAfter
}

// backoffDelay returns the sleep before retry number retryCount.
func backoffDelay[T any](r Result[T], retryCount int, baseDelay time.Duration, rnd func() float64) time.Duration {
	if retryAfter, ok := r.RetryAfter(); ok {
		return exponentialJitter(retryAfter, retryAfterJitterBase, retryCount, rnd)
	}
	return exponentialJitter(baseDelay, defaultJitterBase, retryCount, rnd)
}

// exponentialJitter multiplies d by a sample drawn uniformly from
// [base^n, base^(n+1)). rnd must return values in [0, 1).
func exponentialJitter(d time.Duration, base float64, n int, rnd func() float64) time.Duration {
	lo := math.Pow(base, float64(n))
	hi := lo * base
	factor := lo + rnd()*(hi-lo)
	return time.Duration(float64(d) * factor)
}
