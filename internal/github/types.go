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

package github

import (
	"context"
	"time"
)

// Client defines the read-only GitHub API surface used to build project listings.
type Client interface {
	// ListRepositories returns the first page (up to 100) of a user's public repositories
	ListRepositories(ctx context.Context, username string) ([]*Repository, error)
	// GetLanguages returns the language breakdown (language -> bytes) of a repository
	GetLanguages(ctx context.Context, fullName string) (map[string]int, error)
	// GetRateLimit returns the core rate-limit status of the current credential
	GetRateLimit(ctx context.Context) (*RateLimit, error)
}

// AppClient defines the calls made with the App's JWT assertion
type AppClient interface {
	// ListInstallations lists the installations of the App, in upstream order
	ListInstallations(ctx context.Context, assertion string) ([]*Installation, error)
	// CreateInstallationToken exchanges the assertion for an installation access token
	CreateInstallationToken(ctx context.Context, assertion string, installationID int64) (*InstallationToken, error)
}

// TokenSource supplies the credential attached to data calls.
type TokenSource interface {
	// Token returns the current credential, deriving it if needed
	Token(ctx context.Context) (*Token, error)
	// Reject reports that GitHub refused token. The source drops it only if
	// it is still the credential being handed out.
	Reject(token *Token)
}

// TokenKind identifies how a Token must be presented to GitHub
type TokenKind int

const (
	// TokenKindInstallation is an installation access token, sent as "token <value>"
	TokenKindInstallation TokenKind = iota
	// TokenKindAssertion is the App JWT, sent as "Bearer <value>"
	TokenKindAssertion
)

// Token is a credential ready to be attached to a request
type Token struct {
	Value string
	Kind  TokenKind
}

// AuthorizationHeader returns the value for the Authorization header.
func (t *Token) AuthorizationHeader() string {
	if t.Kind == TokenKindAssertion {
		return "Bearer " + t.Value
	}
	return "token " + t.Value
}

// Repository is the subset of GitHub repository metadata we consume
type Repository struct {
	Name            string
	FullName        string
	Description     string
	HTMLURL         string
	ForksCount      int
	StargazersCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RateLimit is the core API rate-limit status
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Installation is an installation of the GitHub App
type Installation struct {
	ID      int64
	Account string
}

// InstallationToken is an access token scoped to one installation
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}
