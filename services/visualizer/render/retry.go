// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures bounded retry for renderer calls: a small fixed
// attempt count with a fixed inter-retry delay, under an overall per-call
// timeout applied by the client. No exponential growth; render calls are
// long and few, and the collaborator rate-limits on its side.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// Delay is the fixed wait between attempts. Default: 2s
	Delay time.Duration
}

// DefaultRetryConfig returns the renderer retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// RetryableFunc is one attempt of a renderer call.
type RetryableFunc func(ctx context.Context, attempt int) error

// retry executes fn up to config.MaxAttempts times. Only transient errors
// (as reported by IsTransient) are retried; service-reported failures and
// precondition errors return immediately. Context expiry is treated as a
// failure, never as "still running".
func retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.Delay):
		}
	}
	return lastErr
}

// transientError marks an error as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// markTransient wraps err so IsTransient reports true.
func markTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether the error is a transient network/service
// condition worth retrying. Service-reported failures are never transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
