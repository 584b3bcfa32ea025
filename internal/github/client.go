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
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/repofetcher/internal/metrics"
)

// DefaultBaseURL is the public GitHub REST endpoint
const DefaultBaseURL = "https://api.github.com/"

// reposPerPage is the single page size requested for repository listings
const reposPerPage = 100

// Path segments interpolated into API URLs. go-github does not escape them.
var (
	loginPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,39}$`)
	repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

func validRepoName(name string) bool {
	return name != "." && name != ".." && repoNamePattern.MatchString(name)
}

// Options configures the underlying HTTP transport
type Options struct {
	// BaseURL overrides the API endpoint (tests, GitHub Enterprise). Defaults to DefaultBaseURL.
	BaseURL string
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout bounds every call. Zero means no client-side timeout.
	Timeout time.Duration
	// UserAgent overrides the go-github default user agent
	UserAgent string
}

// githubClient implements the Client interface using go-github
type githubClient struct {
	client *github.Client
}

// NewClient creates a GitHub client that authenticates every call with the
// credential supplied by source. Calls are made exactly once; retry policy
// belongs to the caller (see NewRetryingClient).
func NewClient(source TokenSource, opts Options) (Client, error) {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := &http.Client{
		Transport: &tokenTransport{source: source, base: base},
		Timeout:   opts.Timeout,
	}

	client, err := newGitHubClient(httpClient, opts)
	if err != nil {
		return nil, err
	}

	return &githubClient{client: client}, nil
}

// newGitHubClient builds a go-github client pointed at opts.BaseURL
func newGitHubClient(httpClient *http.Client, opts Options) (*github.Client, error) {
	client := github.NewClient(httpClient)

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub base URL: %w", err)
	}
	client.BaseURL = parsed

	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}

	return client, nil
}

// ListRepositories retrieves the first page of a user's public repositories
func (c *githubClient) ListRepositories(ctx context.Context, username string) ([]*Repository, error) {
	if !loginPattern.MatchString(username) {
		return nil, &UpstreamError{
			Kind:    "user",
			Name:    username,
			Message: fmt.Sprintf("invalid username %q", username),
		}
	}

	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: reposPerPage},
	}

	repos, _, err := c.client.Repositories.ListByUser(ctx, username, opts)
	err = classifyError("user", username, err)
	metrics.UpstreamRequests.WithLabelValues("list_repositories", outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	result := make([]*Repository, 0, len(repos))
	for _, repo := range repos {
		if repo != nil {
			result = append(result, c.convertRepository(repo))
		}
	}

	return result, nil
}

// GetLanguages retrieves the language breakdown of a repository
func (c *githubClient) GetLanguages(ctx context.Context, fullName string) (map[string]int, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || !loginPattern.MatchString(owner) || !validRepoName(repo) {
		return nil, &UpstreamError{
			Kind:    "repository",
			Name:    fullName,
			Message: fmt.Sprintf("invalid repository name %q", fullName),
		}
	}

	languages, _, err := c.client.Repositories.ListLanguages(ctx, owner, repo)
	err = classifyError("repository", fullName, err)
	metrics.UpstreamRequests.WithLabelValues("get_languages", outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to get languages: %w", err)
	}

	if languages == nil {
		languages = map[string]int{}
	}
	return languages, nil
}

// GetRateLimit retrieves the core rate-limit status
func (c *githubClient) GetRateLimit(ctx context.Context) (*RateLimit, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	err = classifyError("endpoint", "rate_limit", err)
	metrics.UpstreamRequests.WithLabelValues("get_rate_limit", outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit: %w", err)
	}

	core := limits.GetCore()
	if core == nil {
		return nil, &UpstreamError{Kind: "endpoint", Name: "rate_limit", Message: "rate limit response has no core resource"}
	}

	return &RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

// convertRepository converts a GitHub repository to our domain model
func (c *githubClient) convertRepository(repo *github.Repository) *Repository {
	return &Repository{
		Name:            repo.GetName(),
		FullName:        repo.GetFullName(),
		Description:     repo.GetDescription(),
		HTMLURL:         repo.GetHTMLURL(),
		ForksCount:      repo.GetForksCount(),
		StargazersCount: repo.GetStargazersCount(),
		CreatedAt:       repo.GetCreatedAt().Time,
		UpdatedAt:       repo.GetUpdatedAt().Time,
	}
}

// tokenTransport attaches the TokenSource credential to every request and
// rejects it when GitHub answers 401.
type tokenTransport struct {
	source TokenSource
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to obtain GitHub credential: %w", err)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", token.AuthorizationHeader())

	resp, err := t.base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		log.FromContext(req.Context()).Info("GitHub rejected credential, forcing re-derivation", "path", req.URL.Path)
		t.source.Reject(token)
	}

	return resp, nil
}
