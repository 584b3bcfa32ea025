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

// Package maintenance runs periodic housekeeping for long-lived service state.
//
// A Scheduler ticks at a fixed interval and runs each registered Task in
// order. repofetcher registers three tasks:
//
//   - re-deriving the GitHub App credential before its assertion expires
//   - purging expired response cache entries
//   - sweeping idle clients from the rate-limit table
//
// A failing task is logged and does not stop the remaining tasks or the
// scheduler; the next tick runs every task again.
//
// Example usage:
//
//	scheduler := maintenance.NewScheduler(8*time.Minute,
//		maintenance.NewTask("refresh-token", provider.Refresh),
//		maintenance.NewTask("purge-cache", func(context.Context) error {
//			service.Purge()
//			return nil
//		}),
//	)
//	if err := scheduler.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package maintenance
