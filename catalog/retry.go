// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryAfterError wraps a rate-limit failure carrying the server's
// Retry-After hint. WithRetry waits at least that long before the
// next attempt.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.After, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// PermanentError wraps a failure that retrying cannot fix (bad request,
// authentication). WithRetry returns it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RetryConfig configures retry behavior for catalog searches.
type RetryConfig struct {
	MaxAttempts  int           // Total attempts, including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the backoff delay
	Jitter       float64       // Random fraction of the delay added on top, 0-1
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Jitter:       0.2,
	}
}

// WithRetry executes fn with exponential backoff. A RetryAfterError stretches
// the wait to at least the server's hint; a PermanentError stops retrying.
// If the context is cancelled, it returns the context error immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("catalog operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var permanent *PermanentError
		if errors.As(lastErr, &permanent) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if cfg.Jitter > 0 {
			wait += time.Duration(rand.Float64() * cfg.Jitter * float64(delay))
		}

		// The server's hint overrides computed backoff when longer.
		var rateLimited *RetryAfterError
		if errors.As(lastErr, &rateLimited) && rateLimited.After > wait {
			wait = rateLimited.After
		}

		slog.Debug("catalog operation failed, will retry",
			"attempt", attempt,
			"maxAttempts", cfg.MaxAttempts,
			"wait", wait,
			"error", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
