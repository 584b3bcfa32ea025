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

// Package auth manages the GitHub App credential lifecycle.
//
// Authenticating as a GitHub App is a two-stage exchange:
//
//  1. Sign a short-lived JWT assertion (RS256, issued 60 seconds in the past
//     to absorb clock drift, expiring 10 minutes from now, issuer = client ID).
//  2. Use the assertion to list the App's installations and exchange it for an
//     installation access token for the first installation returned.
//
// Failing to sign the assertion is fatal. Failing to discover an installation
// or exchange the token is not: the provider logs the failure and serves the
// assertion itself ("degraded" mode). Status exposes the current mode so
// operators can detect persistent degraded operation.
//
// Credentials are re-derived when:
//   - no credential is held yet
//   - the held credential is within the expiry skew of its expiry
//   - Reject was called with the held credential (GitHub answered 401)
//   - Invalidate was called
//   - Refresh is called (e.g. by the maintenance scheduler)
//
// Concurrent callers share a single in-flight derivation. It runs detached
// from the cancellation of the caller that started it, so an abandoned
// request never leaves a degraded credential behind.
//
// Example usage:
//
//	provider, err := auth.NewProvider(creds, appClient)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := github.NewClient(provider, github.Options{})
package auth
