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
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// NotFoundError means the user or resource does not exist upstream.
type NotFoundError struct {
	Kind string // user, repository, installation
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// RateLimitedError means GitHub refused the call because a rate limit was hit.
type RateLimitedError struct {
	Kind    string
	Name    string
	ResetAt time.Time // zero when unknown
	Err     error
}

func (e *RateLimitedError) Error() string {
	if e.ResetAt.IsZero() {
		return "GitHub API rate limit exceeded"
	}
	return fmt.Sprintf("GitHub API rate limit exceeded (resets at %s)", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// UnauthorizedError means the credential was rejected.
type UnauthorizedError struct {
	Kind string
	Name string
	Err  error
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized while accessing %s '%s'", e.Kind, e.Name)
}

func (e *UnauthorizedError) Unwrap() error { return e.Err }

// UpstreamError is any other non-2xx response or transport failure.
type UpstreamError struct {
	Kind       string
	Name       string
	StatusCode int // zero for transport failures
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// classifyError maps a go-github error onto the typed errors above.
func classifyError(kind, name string, err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitedError{Kind: kind, Name: name, ResetAt: rateErr.Rate.Reset.Time, Err: err}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		limited := &RateLimitedError{Kind: kind, Name: name, Err: err}
		if abuseErr.RetryAfter != nil {
			limited.ResetAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return limited
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return &NotFoundError{Kind: kind, Name: name, Err: err}
		case http.StatusUnauthorized:
			return &UnauthorizedError{Kind: kind, Name: name, Err: err}
		case http.StatusTooManyRequests:
			return &RateLimitedError{Kind: kind, Name: name, Err: err}
		case http.StatusForbidden:
			if isRateLimitResponse(respErr) {
				return &RateLimitedError{Kind: kind, Name: name, Err: err}
			}
		}
		return &UpstreamError{
			Kind:       kind,
			Name:       name,
			StatusCode: respErr.Response.StatusCode,
			Message:    respErr.Message,
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &UpstreamError{Kind: kind, Name: name, Message: err.Error(), Err: err}
}

func isRateLimitResponse(respErr *github.ErrorResponse) bool {
	if strings.TrimSpace(respErr.Response.Header.Get("X-RateLimit-Remaining")) == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(respErr.Message), "rate limit")
}

// outcome labels a classified error for metrics.
func outcome(err error) string {
	var (
		notFound     *NotFoundError
		rateLimited  *RateLimitedError
		unauthorized *UnauthorizedError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &rateLimited):
		return "rate_limited"
	case errors.As(err, &unauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
