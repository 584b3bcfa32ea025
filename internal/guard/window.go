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
	"sync"
	"time"
)

// Defaults for the per-client sliding window
const (
	DefaultWindow      = 300 * time.Second
	DefaultMaxRequests = 60
)

// Decision is the outcome of one admission check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// SlidingWindow limits each client identity to MaxRequests within the
// trailing Window. Timestamps older than the window are pruned lazily on
// each check. The table is owned by the SlidingWindow; a single mutex makes
// prune-check-append atomic per identity.
type SlidingWindow struct {
	mu          sync.Mutex
	windows     map[string][]time.Time
	window      time.Duration
	maxRequests int
	now         func() time.Time
}

// NewSlidingWindow creates a limiter. Non-positive arguments select the defaults.
func NewSlidingWindow(window time.Duration, maxRequests int) *SlidingWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}

	return &SlidingWindow{
		windows:     make(map[string][]time.Time),
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

// WithClock overrides the limiter's time source and returns it.
func (sw *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	sw.now = now
	return sw
}

// Allow checks whether identity may make another request and records it if so.
// Rejected requests are not recorded and not queued.
func (sw *SlidingWindow) Allow(identity string) Decision {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	stamps := prune(sw.windows[identity], now.Add(-sw.window))

	if len(stamps) >= sw.maxRequests {
		sw.windows[identity] = stamps
		return Decision{
			Allowed:    false,
			RetryAfter: stamps[0].Add(sw.window).Sub(now),
		}
	}

	stamps = append(stamps, now)
	sw.windows[identity] = stamps

	return Decision{
		Allowed:   true,
		Remaining: sw.maxRequests - len(stamps),
	}
}

// Sweep drops identities whose whole window has expired and returns how many
// were removed.
func (sw *SlidingWindow) Sweep() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := sw.now().Add(-sw.window)
	removed := 0
	for identity, stamps := range sw.windows {
		if len(prune(stamps, start)) == 0 {
			delete(sw.windows, identity)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identities.
func (sw *SlidingWindow) Len() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return len(sw.windows)
}

// MaxRequests returns the per-window admission limit.
func (sw *SlidingWindow) MaxRequests() int { return sw.maxRequests }

// Window returns the window size.
func (sw *SlidingWindow) Window() time.Duration { return sw.window }

// prune drops timestamps before start. stamps is ordered oldest first.
func prune(stamps []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(start) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[i:]...)
}
