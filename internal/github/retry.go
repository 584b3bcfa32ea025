// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig defines the retry behavior for API calls
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the backoff settings used when retries are enabled
func DefaultRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// retryingClient decorates a Client with exponential backoff retries
type retryingClient struct {
	next        Client
	retryConfig RetryConfig
}

// NewRetryingClient wraps next so that transient failures are retried.
// A config with MaxRetries <= 0 returns next unchanged.
func NewRetryingClient(next Client, cfg RetryConfig) Client {
	if cfg.MaxRetries <= 0 {
		return next
	}
	return &retryingClient{next: next, retryConfig: cfg}
}

func (c *retryingClient) ListRepositories(ctx context.Context, username string) ([]*Repository, error) {
	var repos []*Repository
	err := c.executeWithRetry(ctx, func() error {
		var err error
		repos, err = c.next.ListRepositories(ctx, username)
		return err
	})
	return repos, err
}

func (c *retryingClient) GetLanguages(ctx context.Context, fullName string) (map[string]int, error) {
	var languages map[string]int
	err := c.executeWithRetry(ctx, func() error {
		var err error
		languages, err = c.next.GetLanguages(ctx, fullName)
		return err
	})
	return languages, err
}

func (c *retryingClient) GetRateLimit(ctx context.Context) (*RateLimit, error) {
	var limit *RateLimit
	err := c.executeWithRetry(ctx, func() error {
		var err error
		limit, err = c.next.GetRateLimit(ctx)
		return err
	})
	return limit, err
}

// executeWithRetry executes an operation with exponential backoff retry
func (c *retryingClient) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()

		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		if attempt == c.retryConfig.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.calculateBackoff(attempt)):
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", c.retryConfig.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.StatusCode {
		case http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// calculateBackoff calculates the backoff duration for a retry attempt
func (c *retryingClient) calculateBackoff(attempt int) time.Duration {
	base := float64(c.retryConfig.InitialBackoff) * math.Pow(c.retryConfig.BackoffFactor, float64(attempt))

	// ±20% jitter
	jitter := (rand.Float64() * 0.4) - 0.2
	backoff := time.Duration(base * (1 + jitter))

	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	return backoff
}
