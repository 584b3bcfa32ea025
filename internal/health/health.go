/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package health reports the GitHub App's upstream rate-limit consumption as
// a liveness signal.
package health

import (
	"context"
	"fmt"
	"math"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/repofetcher/internal/auth"
	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/metrics"
)

// Report identity fields
const (
	ServiceName    = "GitHub Repository Fetcher"
	DefaultVersion = "1.0.0"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// RateLimitReader is the part of the upstream client the monitor needs
type RateLimitReader interface {
	GetRateLimit(ctx context.Context) (*github.RateLimit, error)
}

// AuthStatusReporter exposes the token provider state
type AuthStatusReporter interface {
	Status() auth.Status
}

// RateLimitReport is the upstream budget at check time
type RateLimitReport struct {
	Remaining      int     `json:"remaining"`
	Limit          int     `json:"limit"`
	ResetTime      string  `json:"reset_time"`
	UsedPercentage float64 `json:"used_percentage"`
}

// Report is the health check result
type Report struct {
	Status    string           `json:"status"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	RateLimit *RateLimitReport `json:"rate_limit,omitempty"`
	AuthMode  auth.Mode        `json:"auth_mode,omitempty"`
	Timestamp string           `json:"timestamp"`
	Service   string           `json:"service"`
	Version   string           `json:"version"`
}

// Healthy reports whether the check succeeded.
func (r *Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Monitor checks upstream connectivity through the rate-limit endpoint
type Monitor struct {
	client  RateLimitReader
	auth    AuthStatusReporter
	version string
	now     func() time.Time
}

// Option configures a Monitor
type Option func(*Monitor)

// WithAuthStatus includes the token provider mode in reports
func WithAuthStatus(reporter AuthStatusReporter) Option {
	return func(m *Monitor) {
		m.auth = reporter
	}
}

// WithVersion overrides the reported service version
func WithVersion(version string) Option {
	return func(m *Monitor) {
		if version != "" {
			m.version = version
		}
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// NewMonitor creates a Monitor backed by client.
func NewMonitor(client RateLimitReader, opts ...Option) *Monitor {
	m := &Monitor{
		client:  client,
		version: DefaultVersion,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check queries the upstream rate limit. Failures, including panics in the
// client, produce an unhealthy report; Check never returns an error.
func (m *Monitor) Check(ctx context.Context) (report Report) {
	logger := log.FromContext(ctx).WithName("health")

	report = m.stamp(Report{})
	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Errorf("%v", r), "Health check panicked")
			report = m.stamp(Report{Status: StatusUnhealthy, Error: fmt.Sprintf("%v", r)})
		}
	}()

	rate, err := m.client.GetRateLimit(ctx)
	if err != nil {
		logger.Info("Health check failed", "error", err.Error())
		report.Status = StatusUnhealthy
		report.Error = err.Error()
		return report
	}
	if rate == nil {
		report.Status = StatusUnhealthy
		report.Error = "GitHub API returned no rate limit information"
		return report
	}

	metrics.UpstreamRateLimitRemaining.Set(float64(rate.Remaining))

	report.Status = StatusHealthy
	report.Message = "GitHub API connection successful"
	report.RateLimit = &RateLimitReport{
		Remaining:      rate.Remaining,
		Limit:          rate.Limit,
		ResetTime:      rate.Reset.UTC().Format(time.RFC3339),
		UsedPercentage: UsedPercentage(rate.Limit, rate.Remaining),
	}
	return report
}

// stamp fills the identity fields every report carries.
func (m *Monitor) stamp(r Report) Report {
	r.Timestamp = m.now().UTC().Format(time.RFC3339)
	r.Service = ServiceName
	r.Version = m.version
	if m.auth != nil {
		r.AuthMode = m.auth.Status().Mode
	}
	return r
}

// UsedPercentage is (limit-remaining)/limit*100 rounded to two decimals.
// A zero limit yields 0.
func UsedPercentage(limit, remaining int) float64 {
	if limit <= 0 {
		return 0
	}
	used := float64(limit-remaining) / float64(limit) * 100
	return math.Round(used*100) / 100
}
