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

// Package credentials loads the static identity of the GitHub App.
//
// The identity consists of the App ID, the PEM encoded RSA private key, the
// client ID and the client secret. All four are required; a missing value is
// reported as a ConfigurationError, which callers treat as fatal.
//
// Credentials come from one of two sources:
//   - the process environment (APP_ID, PRIVATE_KEY, CLIENT_ID, CLIENT_SECRET,
//     with GITHUB_-prefixed names accepted as fallbacks)
//   - a Kubernetes Secret with the keys app-id, private-key, client-id and
//     client-secret
//
// Example usage:
//
//	creds, err := credentials.FromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
package credentials
