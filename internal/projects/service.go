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

package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/repofetcher/internal/cache"
	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/guard"
)

// defaultLanguageConcurrency bounds parallel language lookups per listing
const defaultLanguageConcurrency = 8

// Service builds project listings from the GitHub API through the response cache
type Service struct {
	client      github.Client
	repos       *cache.Cache[[]*github.Repository]
	languages   *cache.Cache[map[string]int]
	concurrency int
}

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	cacheOpts   []cache.Option
	concurrency int
}

// WithCacheOptions passes options to both underlying caches
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *serviceOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// WithLanguageConcurrency bounds parallel language lookups; values below 1 mean 1
func WithLanguageConcurrency(n int) Option {
	return func(o *serviceOptions) {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
	}
}

// NewService creates a Service. ttl applies to both caches; ttl <= 0 selects cache.DefaultTTL.
func NewService(client github.Client, ttl time.Duration, opts ...Option) *Service {
	o := serviceOptions{concurrency: defaultLanguageConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	return &Service{
		client:      client,
		repos:       cache.New[[]*github.Repository]("repos", ttl, o.cacheOpts...),
		languages:   cache.New[map[string]int]("languages", ttl, o.cacheOpts...),
		concurrency: o.concurrency,
	}
}

// ListProjects sanitizes username and returns its project listing.
func (s *Service) ListProjects(ctx context.Context, username string) (*Listing, error) {
	sanitized := guard.SanitizeUsername(username)
	if sanitized == "" {
		return nil, &guard.ValidationError{Field: "username", Reason: "Username is required as a query parameter"}
	}

	projects, err := s.projects(ctx, sanitized)
	if err != nil {
		return nil, err
	}

	return &Listing{
		Username:      sanitized,
		ProjectsCount: len(projects),
		Projects:      projects,
	}, nil
}

// ListRepositories returns the repositories of username, which must already
// be a well-formed GitHub login. The username is echoed back as given.
func (s *Service) ListRepositories(ctx context.Context, username string) (*RepositoryListing, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &guard.ValidationError{Field: "username", Reason: "Username parameter is required"}
	}
	if !guard.IsLogin(username) {
		return nil, &guard.ValidationError{Field: "username", Reason: "Username may only contain letters, digits, hyphens and underscores"}
	}

	projects, err := s.projects(ctx, username)
	if err != nil {
		return nil, err
	}

	return &RepositoryListing{
		Username:          username,
		RepositoriesCount: len(projects),
		Repositories:      projects,
	}, nil
}

// Purge drops expired entries from both caches.
func (s *Service) Purge() int {
	return s.repos.Purge() + s.languages.Purge()
}

// CacheLen returns the number of entries held across both caches.
func (s *Service) CacheLen() int {
	return s.repos.Len() + s.languages.Len()
}

func (s *Service) projects(ctx context.Context, username string) ([]Project, error) {
	key := "repos:" + strings.ToLower(username)
	repos, err := s.repos.Fetch(ctx, key, func(ctx context.Context) ([]*github.Repository, error) {
		return s.client.ListRepositories(ctx, username)
	})
	if err != nil {
		return nil, lookupError(username, err)
	}

	projects := make([]Project, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			languages, err := s.repositoryLanguages(gctx, repo.FullName)
			if err != nil {
				return err
			}
			projects[i] = newProject(repo, languages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return projects, nil
}

// repositoryLanguages returns the cached language map for fullName. Upstream
// failures are cached as an empty map; only the caller's context errors are
// returned.
func (s *Service) repositoryLanguages(ctx context.Context, fullName string) (map[string]int, error) {
	return s.languages.Fetch(ctx, "languages:"+fullName, func(ctx context.Context) (map[string]int, error) {
		languages, err := s.client.GetLanguages(ctx, fullName)
		if err != nil {
			log.FromContext(ctx).WithName("projects").Info("Could not fetch repository languages",
				"repository", fullName, "error", err.Error())
			return map[string]int{}, nil
		}
		if languages == nil {
			languages = map[string]int{}
		}
		return languages, nil
	})
}

// lookupError translates classified upstream errors into consumer-facing messages.
func lookupError(username string, err error) error {
	var (
		notFound    *github.NotFoundError
		rateLimited *github.RateLimitedError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &notFound):
		return &LookupError{Message: fmt.Sprintf("User '%s' not found", username), Err: err}
	case errors.As(err, &rateLimited):
		return &LookupError{Message: "GitHub API rate limit exceeded. Please try again later.", Err: err}
	default:
		return &LookupError{Message: "GitHub API error: " + err.Error(), Err: err}
	}
}
