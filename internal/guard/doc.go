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

// Package guard validates and rate-limits inbound requests.
//
// The guard is consulted before any call reaches the response cache or the
// GitHub credential layer. Checks run in order and stop at the first failure:
//
//  1. Username: required, at most 39 characters, none of < > ' " \ ; { } ( ) [ ] | & $ `
//     and no bytes in 0x00-0x1F or 0x7F-0x9F.
//  2. Rate limit: a sliding window of 60 requests per 300 seconds per client
//     identity (X-Forwarded-For, X-Real-IP, CF-Connecting-IP, source address,
//     or "unknown").
//  3. Request shape: URL at most 1024 characters, query string at most 512
//     characters, at most 10 query parameters.
//
// Every rejection carries a specific human-readable reason.
//
// The rate-limit table lives in a SlidingWindow created once and shared by
// all requests; it is guarded by a mutex and never persisted.
package guard
