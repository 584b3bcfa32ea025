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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// staticSource is a TokenSource returning a fixed token
type staticSource struct {
	token    Token
	rejected int32
}

func (s *staticSource) Token(ctx context.Context) (*Token, error) {
	t := s.token
	return &t, nil
}

func (s *staticSource) Reject(token *Token) {
	atomic.AddInt32(&s.rejected, 1)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, source TokenSource) Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(source, Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	return client
}

// TestListRepositories tests fetching a user's repositories
func TestListRepositories(t *testing.T) {
	created := time.Date(2011, 1, 26, 19, 1, 12, 0, time.UTC)
	updated := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		username   string
		statusCode int
		headers    map[string]string
		body       string
		wantRepos  int
		wantErr    any
	}{
		{
			name:       "Successfully lists repositories",
			username:   "octocat",
			statusCode: http.StatusOK,
			body: fmt.Sprintf(`[{"name":"Hello-World","full_name":"octocat/Hello-World","description":"My first repo",
				"html_url":"https://github.com/octocat/Hello-World","forks_count":9,"stargazers_count":80,
				"created_at":%q,"updated_at":%q}]`, created.Format(time.RFC3339), updated.Format(time.RFC3339)),
			wantRepos: 1,
		},
		{
			name:       "Handles empty list",
			username:   "empty",
			statusCode: http.StatusOK,
			body:       `[]`,
			wantRepos:  0,
		},
		{
			name:       "Maps 404 to NotFoundError",
			username:   "nonexistent",
			statusCode: http.StatusNotFound,
			body:       `{"message":"Not Found"}`,
			wantErr:    &NotFoundError{},
		},
		{
			name:       "Maps 429 to RateLimitedError",
			username:   "octocat",
			statusCode: http.StatusTooManyRequests,
			body:       `{"message":"Too Many Requests"}`,
			wantErr:    &RateLimitedError{},
		},
		{
			name:       "Maps exhausted 403 to RateLimitedError",
			username:   "octocat",
			statusCode: http.StatusForbidden,
			headers: map[string]string{
				"X-RateLimit-Limit":     "5000",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()),
			},
			body:    `{"message":"API rate limit exceeded"}`,
			wantErr: &RateLimitedError{},
		},
		{
			name:       "Maps plain 403 to UpstreamError",
			username:   "octocat",
			statusCode: http.StatusForbidden,
			body:       `{"message":"Resource not accessible by integration"}`,
			wantErr:    &UpstreamError{},
		},
		{
			name:       "Maps 500 to UpstreamError",
			username:   "octocat",
			statusCode: http.StatusInternalServerError,
			body:       `{"message":"Server Error"}`,
			wantErr:    &UpstreamError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &staticSource{token: Token{Value: "ghs_test", Kind: TokenKindInstallation}}
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				expectedPath := fmt.Sprintf("/users/%s/repos", tt.username)
				if r.URL.Path != expectedPath {
					t.Errorf("Expected path %s, got %s", expectedPath, r.URL.Path)
				}
				if got := r.URL.Query().Get("per_page"); got != "100" {
					t.Errorf("per_page = %q, want 100", got)
				}
				if got := r.Header.Get("Authorization"); got != "token ghs_test" {
					t.Errorf("Authorization = %q, want %q", got, "token ghs_test")
				}
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}, source)

			repos, err := client.ListRepositories(context.Background(), tt.username)

			if tt.wantErr != nil {
				assertErrorType(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("ListRepositories() unexpected error: %v", err)
			}
			if len(repos) != tt.wantRepos {
				t.Fatalf("got %d repos, want %d", len(repos), tt.wantRepos)
			}
			if tt.wantRepos == 1 {
				repo := repos[0]
				if repo.FullName != "octocat/Hello-World" || repo.ForksCount != 9 || repo.StargazersCount != 80 {
					t.Errorf("unexpected repository %+v", repo)
				}
				if !repo.CreatedAt.Equal(created) || !repo.UpdatedAt.Equal(updated) {
					t.Errorf("timestamps = %v/%v, want %v/%v", repo.CreatedAt, repo.UpdatedAt, created, updated)
				}
			}
		})
	}
}

func assertErrorType(t *testing.T, err error, want any) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %T, got nil", want)
	}
	var ok bool
	switch want.(type) {
	case *NotFoundError:
		var target *NotFoundError
		ok = errors.As(err, &target)
	case *RateLimitedError:
		var target *RateLimitedError
		ok = errors.As(err, &target)
	case *UnauthorizedError:
		var target *UnauthorizedError
		ok = errors.As(err, &target)
	case *UpstreamError:
		var target *UpstreamError
		ok = errors.As(err, &target)
	}
	if !ok {
		t.Errorf("error = %v (%T), want %T in chain", err, err, want)
	}
}

func TestListRepositories_not_found_names_user(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}, &staticSource{token: Token{Value: "ghs_test"}})

	_, err := client.ListRepositories(context.Background(), "nonexistent")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if notFound.Name != "nonexistent" || notFound.Kind != "user" {
		t.Errorf("NotFoundError = %+v, want user 'nonexistent'", notFound)
	}
}

func TestUnauthorized_rejects_token(t *testing.T) {
	source := &staticSource{token: Token{Value: "expired"}}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}, source)

	_, err := client.ListRepositories(context.Background(), "octocat")

	assertErrorType(t, err, &UnauthorizedError{})
	if got := atomic.LoadInt32(&source.rejected); got != 1 {
		t.Errorf("Reject() called %d times, want 1", got)
	}
}

func TestListRepositories_rejects_non_login_usernames(t *testing.T) {
	usernames := []string{
		"../orgs/acme/repos#",
		"../orgs/acme/repos",
		"octocat/../../orgs/acme/repos",
		"octocat?type=private",
		"octo cat",
		"",
	}

	for _, username := range usernames {
		t.Run(username, func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				t.Errorf("unexpected upstream request %s", r.URL.Path)
				w.Write([]byte(`[]`))
			}, &staticSource{token: Token{Value: "ghs_test"}})

			_, err := client.ListRepositories(context.Background(), username)

			assertErrorType(t, err, &UpstreamError{})
			if got := atomic.LoadInt32(&calls); got != 0 {
				t.Errorf("expected no upstream call, got %d", got)
			}
		})
	}
}

func TestAssertionToken_sent_as_bearer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer jwt.assertion" {
			t.Errorf("Authorization = %q, want bearer assertion", got)
		}
		w.Write([]byte(`{}`))
	}, &staticSource{token: Token{Value: "jwt.assertion", Kind: TokenKindAssertion}})

	if _, err := client.GetLanguages(context.Background(), "octocat/Hello-World"); err != nil {
		t.Fatalf("GetLanguages() unexpected error: %v", err)
	}
}

// TestGetLanguages tests fetching the language breakdown
func TestGetLanguages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/Hello-World/languages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"Ruby": 1000, "JavaScript": 500})
	}, &staticSource{token: Token{Value: "ghs_test"}})

	languages, err := client.GetLanguages(context.Background(), "octocat/Hello-World")
	if err != nil {
		t.Fatalf("GetLanguages() unexpected error: %v", err)
	}
	if languages["Ruby"] != 1000 || languages["JavaScript"] != 500 || len(languages) != 2 {
		t.Errorf("languages = %v", languages)
	}
}

func TestGetLanguages_rejects_malformed_full_name(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, &staticSource{token: Token{Value: "ghs_test"}})

	for _, fullName := range []string{"no-slash", "../orgs", "octocat/..", "octocat/Hello-World/../../../orgs/acme/repos", "octocat/repo#"} {
		_, err := client.GetLanguages(context.Background(), fullName)
		assertErrorType(t, err, &UpstreamError{})
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected no upstream call, got %d", got)
	}
}

func TestGetLanguages_accepts_dotted_repository_names(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/octocat.github.io/languages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"HTML":10}`))
	}, &staticSource{token: Token{Value: "ghs_test"}})

	languages, err := client.GetLanguages(context.Background(), "octocat/octocat.github.io")
	if err != nil {
		t.Fatalf("GetLanguages() unexpected error: %v", err)
	}
	if languages["HTML"] != 10 {
		t.Errorf("languages = %v", languages)
	}
}

// TestGetRateLimit tests fetching the core rate limit
func TestGetRateLimit(t *testing.T) {
	reset := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rate_limit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":4999,"reset":%d}}}`, reset.Unix())
	}, &staticSource{token: Token{Value: "ghs_test"}})

	limit, err := client.GetRateLimit(context.Background())
	if err != nil {
		t.Fatalf("GetRateLimit() unexpected error: %v", err)
	}
	if limit.Limit != 5000 || limit.Remaining != 4999 {
		t.Errorf("limit = %+v", limit)
	}
	if !limit.Reset.Equal(reset) {
		t.Errorf("Reset = %v, want %v", limit.Reset, reset)
	}
}

// TestAppClient tests installation discovery and token exchange
func TestAppClient(t *testing.T) {
	expires := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer signed.jwt" {
			t.Errorf("Authorization = %q, want bearer assertion", got)
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/app/installations":
			w.Write([]byte(`[{"id":42,"account":{"login":"octo-org"}},{"id":7,"account":{"login":"other"}}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/app/installations/42/access_tokens":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"token":"ghs_installation","expires_at":%q}`, expires.Format(time.RFC3339))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	app, err := NewAppClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAppClient() unexpected error: %v", err)
	}

	installations, err := app.ListInstallations(context.Background(), "signed.jwt")
	if err != nil {
		t.Fatalf("ListInstallations() unexpected error: %v", err)
	}
	if len(installations) != 2 || installations[0].ID != 42 || installations[0].Account != "octo-org" {
		t.Fatalf("installations = %+v", installations)
	}

	token, err := app.CreateInstallationToken(context.Background(), "signed.jwt", 42)
	if err != nil {
		t.Fatalf("CreateInstallationToken() unexpected error: %v", err)
	}
	if token.Token != "ghs_installation" || !token.ExpiresAt.Equal(expires) {
		t.Errorf("token = %+v", token)
	}
}

func TestAppClient_unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"A JSON web token could not be decoded"}`))
	}))
	defer server.Close()

	app, err := NewAppClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAppClient() unexpected error: %v", err)
	}

	_, err = app.ListInstallations(context.Background(), "bad.jwt")
	assertErrorType(t, err, &UnauthorizedError{})
}

func TestTokenAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name  string
		token Token
		want  string
	}{
		{name: "Installation token", token: Token{Value: "ghs_x", Kind: TokenKindInstallation}, want: "token ghs_x"},
		{name: "Assertion", token: Token{Value: "a.b.c", Kind: TokenKindAssertion}, want: "Bearer a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.AuthorizationHeader(); got != tt.want {
				t.Errorf("AuthorizationHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}
