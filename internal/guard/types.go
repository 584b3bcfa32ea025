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
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RequestContext is the platform-independent view of an inbound request
type RequestContext struct {
	Method     string
	Path       string
	RawQuery   string
	Query      url.Values
	Headers    http.Header
	RemoteAddr string // transport-provided source address, host[:port]
}

// NewRequestContext builds a RequestContext from an HTTP request.
// A malformed query string yields an empty Query; RawQuery is kept as sent.
func NewRequestContext(r *http.Request) *RequestContext {
	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		query = url.Values{}
	}

	return &RequestContext{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Query:      query,
		Headers:    r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
	}
}

// ValidationError is a client-caused rejection. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// RateLimitError means the client exhausted its request window.
type RateLimitError struct {
	Identity    string
	MaxRequests int
	Window      time.Duration
	RetryAfter  time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s.", e.MaxRequests, formatWindow(e.Window))
}

func formatWindow(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
	return d.String()
}
