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
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/go-github/v66/github"
)

// installationsPerPage bounds installation discovery to one page
const installationsPerPage = 100

// appClient implements AppClient. Each call presents the given assertion as
// a bearer token.
type appClient struct {
	client *github.Client
}

// NewAppClient creates the client used for installation discovery and
// installation token exchange.
func NewAppClient(opts Options) (AppClient, error) {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	client, err := newGitHubClient(&http.Client{Transport: base, Timeout: opts.Timeout}, opts)
	if err != nil {
		return nil, err
	}

	return &appClient{client: client}, nil
}

// ListInstallations lists the App's installations in the order GitHub returns them
func (c *appClient) ListInstallations(ctx context.Context, assertion string) ([]*Installation, error) {
	installations, _, err := c.client.WithAuthToken(assertion).Apps.ListInstallations(ctx, &github.ListOptions{
		PerPage: installationsPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", classifyError("app", "installations", err))
	}

	result := make([]*Installation, 0, len(installations))
	for _, inst := range installations {
		if inst == nil {
			continue
		}
		result = append(result, &Installation{
			ID:      inst.GetID(),
			Account: inst.GetAccount().GetLogin(),
		})
	}

	return result, nil
}

// CreateInstallationToken exchanges the assertion for an installation access token
func (c *appClient) CreateInstallationToken(ctx context.Context, assertion string, installationID int64) (*InstallationToken, error) {
	token, _, err := c.client.WithAuthToken(assertion).Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token: %w",
			classifyError("installation", strconv.FormatInt(installationID, 10), err))
	}

	return &InstallationToken{
		Token:     token.GetToken(),
		ExpiresAt: token.GetExpiresAt().Time,
	}, nil
}
