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

package guard

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/mikelane/repofetcher/internal/metrics"
)

// UnknownIdentity is used when no client address can be determined.
// All such clients share one rate-limit bucket.
const UnknownIdentity = "unknown"

// Limits bounds the shape of inbound requests
type Limits struct {
	MaxURLLength   int
	MaxQueryLength int
	MaxQueryParams int
}

// DefaultLimits returns the default request shape limits
func DefaultLimits() Limits {
	return Limits{
		MaxURLLength:   1024,
		MaxQueryLength: 512,
		MaxQueryParams: 10,
	}
}

// Guard validates and rate-limits inbound requests before any upstream call.
type Guard struct {
	limiter *SlidingWindow
	limits  Limits
}

// NewGuard creates a Guard. The limiter is shared by every request the Guard admits.
func NewGuard(limiter *SlidingWindow, limits Limits) *Guard {
	return &Guard{limiter: limiter, limits: limits}
}

// Admit runs the checks in order, stopping at the first failure:
// username, rate limit, request shape. It returns a *ValidationError or a
// *RateLimitError.
func (g *Guard) Admit(req *RequestContext, username string) error {
	if req == nil {
		req = &RequestContext{}
	}

	if err := ValidateUsername(username); err != nil {
		return rejected("username", err)
	}

	identity := ClientIdentity(req)
	if decision := g.limiter.Allow(identity); !decision.Allowed {
		return rejected("rate_limit", &RateLimitError{
			Identity:    identity,
			MaxRequests: g.limiter.MaxRequests(),
			Window:      g.limiter.Window(),
			RetryAfter:  decision.RetryAfter,
		})
	}

	if err := g.validateShape(req); err != nil {
		return rejected("request_shape", err)
	}

	return nil
}

// validateShape enforces URL, query string and parameter count limits.
func (g *Guard) validateShape(req *RequestContext) error {
	fullURL := req.Path + "?" + req.RawQuery
	if len(fullURL) > g.limits.MaxURLLength {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("Request URL exceeds maximum length of %d characters", g.limits.MaxURLLength)}
	}
	if len(req.RawQuery) > g.limits.MaxQueryLength {
		return &ValidationError{Field: "query", Reason: fmt.Sprintf("Query string exceeds maximum length of %d characters", g.limits.MaxQueryLength)}
	}
	if len(req.Query) > g.limits.MaxQueryParams {
		return &ValidationError{Field: "query", Reason: fmt.Sprintf("Too many query parameters (maximum %d allowed)", g.limits.MaxQueryParams)}
	}
	return nil
}

// Sweep forgets clients whose window has fully expired.
func (g *Guard) Sweep() int {
	return g.limiter.Sweep()
}

// ClientIdentity derives the rate-limit key for a request, in priority order:
// first X-Forwarded-For entry, X-Real-IP, CF-Connecting-IP, the transport
// source address, then UnknownIdentity.
func ClientIdentity(req *RequestContext) string {
	if req == nil {
		return UnknownIdentity
	}

	if xff := req.Headers.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.Headers.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(req.Headers.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if req.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil && host != "" {
			return host
		}
		return req.RemoteAddr
	}
	return UnknownIdentity
}

func rejected(reason string, err error) error {
	metrics.GuardRejections.WithLabelValues(reason).Inc()
	return err
}

// IsRejection reports whether err came from the guard.
func IsRejection(err error) bool {
	var validation *ValidationError
	var rateLimit *RateLimitError
	return errors.As(err, &validation) || errors.As(err, &rateLimit)
}
