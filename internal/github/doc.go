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

// Package github provides the read-only GitHub API transport for repofetcher.
//
// Two clients are exposed:
//   - Client issues data calls (user repositories, repository languages, rate
//     limit status) authenticated with the credential held by a TokenSource
//   - AppClient issues the App-level calls (installation discovery and
//     installation token exchange) authenticated with a JWT assertion
//
// Authentication:
//
// Installation access tokens are sent as "token <value>"; the App assertion,
// used directly when no installation token is available, is sent as
// "Bearer <value>". A 401 response rejects the credential at the TokenSource
// so the next call derives a fresh one, unless another call already has.
//
// Example usage:
//
//	client, err := github.NewClient(provider, github.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	repos, err := client.ListRepositories(ctx, "octocat")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, repo := range repos {
//	    fmt.Printf("%s: %d stars\n", repo.FullName, repo.StargazersCount)
//	}
//
// Errors:
//
// Upstream failures are mapped onto typed errors carrying the offending
// identifier:
//   - NotFoundError for 404 responses
//   - RateLimitedError for 429 and rate-limit 403 responses
//   - UnauthorizedError for 401 responses
//   - UpstreamError for any other non-2xx response or transport failure
//
// Retry Logic:
//
// Every call is made exactly once. Callers wanting retries wrap the client
// with NewRetryingClient, which retries rate-limit and 502/503/504 failures
// with exponential backoff:
//   - Initial backoff: 100 milliseconds
//   - Maximum backoff: 30 seconds
//   - Backoff factor: 2.0 with ±20% jitter
package github
