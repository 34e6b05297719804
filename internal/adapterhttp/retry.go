// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapterhttp

import (
	"context"
	"fmt"
	"time"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
)

// RetryPolicy bounds one adapter call's retry behavior. Both the reasoning
// and communication external adapters share this shape (spec.md §4.2,
// §4.5: "same circuit breaker / retries / PHI-guard semantics").
type RetryPolicy struct {
	MaxRetries   int
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// CallWithRetry acquires breaker, then performs up to policy.MaxRetries+1
// attempts of req, retrying only on network errors and HTTP 5xx/429, with a
// fixed backoff between attempts and a per-attempt timeout clamped to the
// remaining overall deadline. Returns ("", "circuit_open", err) if the
// breaker rejects the call, ("", "", err) with err's message "cancelled" if
// ctx is done, and ("", "", err) for any other exhausted-retry failure.
func CallWithRetry(ctx context.Context, policy RetryPolicy, breaker *circuitbreaker.Breaker, req Request) (content string, skipReason string, err error) {
	now := time.Now()
	acquire := breaker.TryAcquire(now)
	if !acquire.Allowed {
		return "", "circuit_open", fmt.Errorf("circuit_open")
	}

	// releaseProbe resolves a granted half-open probe before a cancellation
	// return; without it, a ctx cancellation after TryAcquire granted the
	// probe leaves the breaker stuck half-open forever.
	releaseProbe := func() {
		if acquire.HalfOpenProbe {
			breaker.RecordFailure(time.Now())
		}
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			releaseProbe()
			return "", "", fmt.Errorf("cancelled")
		default:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, clampTimeout(ctx, policy.Timeout))
		content, err = Call(attemptCtx, req)
		cancel()

		if err == nil {
			breaker.RecordSuccess(time.Now())
			return content, "", nil
		}
		lastErr = err

		if ctx.Err() != nil {
			releaseProbe()
			return "", "", fmt.Errorf("cancelled")
		}

		retryable := false
		if adapterErr, ok := err.(*Error); ok {
			retryable = adapterErr.Retryable
		}

		if !retryable || attempt == policy.MaxRetries {
			breaker.RecordFailure(time.Now())
			return "", "", lastErr
		}

		select {
		case <-time.After(policy.RetryBackoff):
		case <-ctx.Done():
			releaseProbe()
			return "", "", fmt.Errorf("cancelled")
		}
	}

	breaker.RecordFailure(time.Now())
	return "", "", lastErr
}

// clampTimeout bounds a per-attempt timeout to the remaining context
// deadline (spec.md §5: "per-attempt timeout... clamped to the remaining
// request deadline").
func clampTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			if remaining <= 0 {
				return time.Millisecond
			}
			return remaining
		}
	}
	return timeout
}
