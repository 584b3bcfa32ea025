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

// Package cache provides an in-memory time-to-live cache for upstream responses.
//
// Entries are valid while now - storedAt < ttl (300 seconds by default) and
// are evicted lazily: an expired entry is ignored on lookup and removed by
// Purge, which the maintenance scheduler calls periodically. Nothing is
// persisted beyond the process lifetime.
//
// Keys are namespaced per resource kind, e.g. "repos:octocat" and
// "languages:octocat/Hello-World". One Cache instance holds one value type.
//
// Concurrent Fetch calls for the same missing key share a single load.
//
// Example usage:
//
//	repos := cache.New[[]*github.Repository]("repos", 5*time.Minute)
//	list, err := repos.Fetch(ctx, "repos:octocat", func(ctx context.Context) ([]*github.Repository, error) {
//	    return client.ListRepositories(ctx, "octocat")
//	})
package cache
