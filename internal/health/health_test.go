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

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mikelane/repofetcher/internal/auth"
	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/health"
)

type stubRateLimits struct {
	rate  *github.RateLimit
	err   error
	panic any
	calls int
}

func (s *stubRateLimits) GetRateLimit(ctx context.Context) (*github.RateLimit, error) {
	s.calls++
	if s.panic != nil {
		panic(s.panic)
	}
	return s.rate, s.err
}

type stubAuth struct{ mode auth.Mode }

func (s stubAuth) Status() auth.Status { return auth.Status{Mode: s.mode} }

var _ = Describe("Monitor", func() {
	var (
		ctx   context.Context
		now   time.Time
		reset time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		reset = time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	})

	Context("when the rate limit call succeeds", func() {
		It("should report healthy with the rate limit details", func() {
			client := &stubRateLimits{rate: &github.RateLimit{Limit: 5000, Remaining: 2500, Reset: reset}}
			monitor := health.NewMonitor(client, health.WithClock(func() time.Time { return now }))

			report := monitor.Check(ctx)

			Expect(report.Healthy()).To(BeTrue())
			Expect(report.Message).To(Equal("GitHub API connection successful"))
			Expect(report.Error).To(BeEmpty())
			Expect(report.RateLimit).NotTo(BeNil())
			Expect(report.RateLimit.Remaining).To(Equal(2500))
			Expect(report.RateLimit.Limit).To(Equal(5000))
			Expect(report.RateLimit.ResetTime).To(Equal("2025-03-01T11:00:00Z"))
			Expect(report.RateLimit.UsedPercentage).To(Equal(50.0))
			Expect(report.Timestamp).To(Equal("2025-03-01T10:00:00Z"))
			Expect(report.Service).To(Equal("GitHub Repository Fetcher"))
			Expect(report.Version).To(Equal(health.DefaultVersion))
		})

		It("should include the auth mode when a reporter is configured", func() {
			client := &stubRateLimits{rate: &github.RateLimit{Limit: 5000, Remaining: 5000, Reset: reset}}
			monitor := health.NewMonitor(client, health.WithAuthStatus(stubAuth{mode: auth.ModeDegraded}), health.WithVersion("2.1.0"))

			report := monitor.Check(ctx)

			Expect(report.AuthMode).To(Equal(auth.ModeDegraded))
			Expect(report.Version).To(Equal("2.1.0"))
		})

		It("should serialize with the documented field names", func() {
			client := &stubRateLimits{rate: &github.RateLimit{Limit: 60, Remaining: 59, Reset: reset}}
			report := health.NewMonitor(client).Check(ctx)

			raw, err := json.Marshal(report)
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKeyWithValue("status", "healthy"))
			Expect(decoded).To(HaveKey("timestamp"))
			Expect(decoded).To(HaveKey("service"))
			Expect(decoded).To(HaveKey("version"))
			Expect(decoded).NotTo(HaveKey("error"))
			Expect(decoded["rate_limit"]).To(HaveKey("reset_time"))
			Expect(decoded["rate_limit"]).To(HaveKey("used_percentage"))
		})
	})

	Context("when the rate limit call fails", func() {
		It("should report unhealthy with the upstream error text", func() {
			client := &stubRateLimits{err: errors.New("Bad credentials")}
			monitor := health.NewMonitor(client, health.WithClock(func() time.Time { return now }))

			report := monitor.Check(ctx)

			Expect(report.Healthy()).To(BeFalse())
			Expect(report.Status).To(Equal(health.StatusUnhealthy))
			Expect(report.Error).To(Equal("Bad credentials"))
			Expect(report.RateLimit).To(BeNil())
			Expect(report.Timestamp).To(Equal("2025-03-01T10:00:00Z"))
			Expect(report.Service).To(Equal(health.ServiceName))
		})

		It("should report unhealthy when the client panics", func() {
			client := &stubRateLimits{panic: "connection reset"}
			monitor := health.NewMonitor(client)

			var report health.Report
			Expect(func() { report = monitor.Check(ctx) }).NotTo(Panic())
			Expect(report.Status).To(Equal(health.StatusUnhealthy))
			Expect(report.Error).To(Equal("connection reset"))
			Expect(report.Service).To(Equal(health.ServiceName))
		})

		It("should report unhealthy when no rate limit is returned", func() {
			report := health.NewMonitor(&stubRateLimits{}).Check(ctx)

			Expect(report.Status).To(Equal(health.StatusUnhealthy))
			Expect(report.Error).NotTo(BeEmpty())
		})
	})
})

var _ = DescribeTable("UsedPercentage",
	func(limit, remaining int, want float64) {
		Expect(health.UsedPercentage(limit, remaining)).To(Equal(want))
	},
	Entry("untouched budget", 5000, 5000, 0.0),
	Entry("exhausted budget", 5000, 0, 100.0),
	Entry("half used", 5000, 2500, 50.0),
	Entry("one request used", 5000, 4999, 0.02),
	Entry("rounds to two decimals", 3, 2, 33.33),
	Entry("zero limit", 0, 0, 0.0),
)
