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

// Package metrics defines the Prometheus collectors exported by repofetcher.
//
// Collectors are registered on the controller-runtime metrics registry so a
// single /metrics endpoint serves them together with the Go runtime and
// process collectors registered there by default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "repofetcher"

var (
	// CacheLookups counts cache lookups by cache name and result (hit, miss).
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups partitioned by cache and result.",
	}, []string{"cache", "result"})

	// GuardRejections counts inbound requests rejected before reaching upstream.
	GuardRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_rejections_total",
		Help:      "Inbound requests rejected by the request guard, by reason.",
	}, []string{"reason"})

	// UpstreamRequests counts GitHub API calls by operation and outcome.
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "GitHub API calls partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	// TokenExchanges counts credential derivations by resulting mode.
	TokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_exchanges_total",
		Help:      "Credential derivations partitioned by resulting auth mode.",
	}, []string{"mode"})

	// AuthDegraded is 1 while the App runs on its JWT assertion only.
	AuthDegraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auth_degraded",
		Help:      "Set to 1 when no installation token could be obtained.",
	})

	// UpstreamRateLimitRemaining tracks the last observed core rate-limit budget.
	UpstreamRateLimitRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upstream_rate_limit_remaining",
		Help:      "Remaining GitHub core API requests as of the last health check.",
	})
)

func init() {
	metrics.Registry.MustRegister(
		CacheLookups,
		GuardRejections,
		UpstreamRequests,
		TokenExchanges,
		AuthDegraded,
		UpstreamRateLimitRemaining,
	)
}
