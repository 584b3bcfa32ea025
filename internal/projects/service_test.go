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
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mikelane/repofetcher/internal/cache"
	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/guard"
)

// fakeClient serves canned repositories and languages and counts calls
type fakeClient struct {
	mu            sync.Mutex
	repos         map[string][]*github.Repository
	languages     map[string]map[string]int
	reposErr      error
	languagesErr  map[string]error
	repoCalls     map[string]int
	languageCalls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		repos:         map[string][]*github.Repository{},
		languages:     map[string]map[string]int{},
		languagesErr:  map[string]error{},
		repoCalls:     map[string]int{},
		languageCalls: map[string]int{},
	}
}

func (f *fakeClient) ListRepositories(ctx context.Context, username string) ([]*github.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repoCalls[username]++
	if f.reposErr != nil {
		return nil, f.reposErr
	}
	repos, ok := f.repos[username]
	if !ok {
		return nil, &github.NotFoundError{Kind: "user", Name: username}
	}
	return repos, nil
}

func (f *fakeClient) GetLanguages(ctx context.Context, fullName string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.languageCalls[fullName]++
	if err := f.languagesErr[fullName]; err != nil {
		return nil, err
	}
	return f.languages[fullName], nil
}

func (f *fakeClient) GetRateLimit(ctx context.Context) (*github.RateLimit, error) {
	return &github.RateLimit{Limit: 5000, Remaining: 5000}, nil
}

func (f *fakeClient) repoCallCount(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repoCalls[username]
}

func (f *fakeClient) languageCallCount(fullName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.languageCalls[fullName]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		client  *fakeClient
		clock   *fakeClock
		service *Service
		created time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = newFakeClient()
		clock = &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
		created = time.Date(2011, 1, 26, 19, 1, 12, 0, time.UTC)

		client.repos["octocat"] = []*github.Repository{{
			Name:            "Hello-World",
			FullName:        "octocat/Hello-World",
			Description:     "My first repository on GitHub!",
			HTMLURL:         "https://github.com/octocat/Hello-World",
			ForksCount:      9,
			StargazersCount: 80,
			CreatedAt:       created,
			UpdatedAt:       created.Add(time.Hour),
		}}
		client.languages["octocat/Hello-World"] = map[string]int{"Ruby": 1000, "JavaScript": 500}

		service = NewService(client, 300*time.Second, WithCacheOptions(cache.WithClock(clock.Now)))
	})

	Describe("ListProjects", func() {
		It("should build one project per repository with its languages", func() {
			listing, err := service.ListProjects(ctx, "octocat")

			Expect(err).NotTo(HaveOccurred())
			Expect(listing.Username).To(Equal("octocat"))
			Expect(listing.ProjectsCount).To(Equal(1))
			Expect(listing.Projects).To(HaveLen(1))

			project := listing.Projects[0]
			Expect(project.Name).To(Equal("Hello-World"))
			Expect(project.Description).To(Equal("My first repository on GitHub!"))
			Expect(project.Languages).To(Equal(map[string]int{"Ruby": 1000, "JavaScript": 500}))
			Expect(project.ForksCount).To(Equal(9))
			Expect(project.StargazersCount).To(Equal(80))
			Expect(project.HTMLURL).To(Equal("https://github.com/octocat/Hello-World"))
			Expect(project.CreatedAt).To(Equal(created))
		})

		It("should sanitize the username before calling upstream", func() {
			listing, err := service.ListProjects(ctx, "OctoCat!")

			Expect(err).NotTo(HaveOccurred())
			Expect(listing.Username).To(Equal("octocat"))
			Expect(client.repoCallCount("octocat")).To(Equal(1))
		})

		It("should reject a username that sanitizes to nothing", func() {
			_, err := service.ListProjects(ctx, "!!!")

			var validation *guard.ValidationError
			Expect(errors.As(err, &validation)).To(BeTrue())
			Expect(validation.Reason).To(Equal("Username is required as a query parameter"))
			Expect(client.repoCallCount("")).To(BeZero())
		})

		It("should serve repeated calls within the TTL from the cache", func() {
			_, err := service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())
			clock.Advance(299 * time.Second)
			_, err = service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.repoCallCount("octocat")).To(Equal(1))
			Expect(client.languageCallCount("octocat/Hello-World")).To(Equal(1))
		})

		It("should call upstream again once the TTL has elapsed", func() {
			_, err := service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())
			clock.Advance(300 * time.Second)
			_, err = service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.repoCallCount("octocat")).To(Equal(2))
		})

		It("should report a missing user by name", func() {
			_, err := service.ListProjects(ctx, "nonexistent")

			Expect(err).To(MatchError("User 'nonexistent' not found"))
			var notFound *github.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Name).To(Equal("nonexistent"))
		})

		It("should translate upstream rate limiting", func() {
			client.reposErr = &github.RateLimitedError{Kind: "user", Name: "octocat"}

			_, err := service.ListProjects(ctx, "octocat")

			Expect(err).To(MatchError("GitHub API rate limit exceeded. Please try again later."))
			var rateLimited *github.RateLimitedError
			Expect(errors.As(err, &rateLimited)).To(BeTrue())
		})

		It("should prefix other upstream errors", func() {
			client.reposErr = &github.UpstreamError{StatusCode: 500, Message: "Server Error"}

			_, err := service.ListProjects(ctx, "octocat")

			Expect(err).To(MatchError("GitHub API error: Server Error"))
		})

		It("should not cache upstream failures", func() {
			client.reposErr = &github.UpstreamError{StatusCode: 502, Message: "Bad Gateway"}
			_, err := service.ListProjects(ctx, "octocat")
			Expect(err).To(HaveOccurred())

			client.reposErr = nil
			listing, err := service.ListProjects(ctx, "octocat")

			Expect(err).NotTo(HaveOccurred())
			Expect(listing.ProjectsCount).To(Equal(1))
			Expect(client.repoCallCount("octocat")).To(Equal(2))
		})
	})

	Context("when a language lookup fails", func() {
		BeforeEach(func() {
			client.repos["octocat"] = append(client.repos["octocat"], &github.Repository{
				Name:     "Spoon-Knife",
				FullName: "octocat/Spoon-Knife",
			})
			client.languagesErr["octocat/Spoon-Knife"] = &github.UpstreamError{StatusCode: 500, Message: "boom"}
		})

		It("should return an empty language map without failing the listing", func() {
			listing, err := service.ListProjects(ctx, "octocat")

			Expect(err).NotTo(HaveOccurred())
			Expect(listing.ProjectsCount).To(Equal(2))
			Expect(listing.Projects[0].Languages).To(HaveLen(2))
			Expect(listing.Projects[1].Name).To(Equal("Spoon-Knife"))
			Expect(listing.Projects[1].Languages).NotTo(BeNil())
			Expect(listing.Projects[1].Languages).To(BeEmpty())
		})

		It("should cache the empty language map", func() {
			_, err := service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())
			service.repos.Delete("repos:octocat")

			_, err = service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.languageCallCount("octocat/Spoon-Knife")).To(Equal(1))
		})
	})

	Describe("ListRepositories", func() {
		It("should echo the username and count repositories", func() {
			listing, err := service.ListRepositories(ctx, "octocat")

			Expect(err).NotTo(HaveOccurred())
			Expect(listing.Username).To(Equal("octocat"))
			Expect(listing.RepositoriesCount).To(Equal(1))
			Expect(listing.Repositories[0].Languages).To(HaveKeyWithValue("Ruby", 1000))
		})

		It("should require a username", func() {
			_, err := service.ListRepositories(ctx, "  ")

			Expect(err).To(MatchError("Username parameter is required"))
		})

		DescribeTable("should reject usernames that are not GitHub logins without calling upstream",
			func(username string) {
				_, err := service.ListRepositories(ctx, username)

				var validation *guard.ValidationError
				Expect(errors.As(err, &validation)).To(BeTrue())
				Expect(client.repoCallCount(username)).To(BeZero())
			},
			Entry("path traversal", "../orgs/acme/repos#"),
			Entry("nested path", "octocat/repos"),
			Entry("query injection", "octocat?type=private"),
			Entry("dot segment", ".."),
		)
	})

	Describe("Purge", func() {
		It("should drop expired entries from both caches", func() {
			_, err := service.ListProjects(ctx, "octocat")
			Expect(err).NotTo(HaveOccurred())
			Expect(service.CacheLen()).To(Equal(2))

			clock.Advance(301 * time.Second)

			Expect(service.Purge()).To(Equal(2))
			Expect(service.CacheLen()).To(BeZero())
		})
	})
})
