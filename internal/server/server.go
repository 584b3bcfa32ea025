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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/guard"
	"github.com/mikelane/repofetcher/internal/health"
	"github.com/mikelane/repofetcher/internal/projects"
)

// ServiceName is reported by the index endpoint
const ServiceName = "GitHub Repository Fetcher"

// projectsCacheControl lets edge caches serve listings for 10 minutes and
// stale copies for 20 more while revalidating
const projectsCacheControl = "s-maxage=600, stale-while-revalidate=1200"

// Admitter decides whether a request may proceed
type Admitter interface {
	Admit(req *guard.RequestContext, username string) error
}

// Lister produces listings for a username
type Lister interface {
	ListProjects(ctx context.Context, username string) (*projects.Listing, error)
	ListRepositories(ctx context.Context, username string) (*projects.RepositoryListing, error)
}

// HealthChecker produces a health report
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Options configures the HTTP server
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string
	// Metrics is served at /metrics when non-nil.
	Metrics http.Handler
}

// Server serves the repofetcher HTTP API
type Server struct {
	opts    Options
	guard   Admitter
	lister  Lister
	health  HealthChecker
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options, admitter Admitter, lister Lister, checker HealthChecker) *Server {
	if opts.Version == "" {
		opts.Version = health.DefaultVersion
	}

	s := &Server{
		opts:   opts,
		guard:  admitter,
		lister: lister,
		health: checker,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api", s.handleIndex)
	mux.HandleFunc("/api/health", s.handleAPIHealth)
	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/repositories", s.handleRepositories)
	mux.HandleFunc("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	s.handler = withLogger(withCORS(mux))

	return s
}

// Handler returns the root handler, for use with httptest or another listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Log.Info("Starting API server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx := context.Background()
		if s.opts.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.opts.ShutdownTimeout)
			defer cancel()
		}
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Log.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

// withCORS sets CORS headers on every response and answers preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogger attaches a request-scoped logger to the request context.
func withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.Log.WithName("server").WithValues("method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(log.IntoContext(r.Context(), logger)))
	})
}

// handleHealth is the plain liveness endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleIndex describes the API
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/api" {
		writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	if !allowMethod(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        ServiceName,
		"version":     s.opts.Version,
		"description": "API to fetch public repositories from GitHub users",
		"endpoints": map[string]string{
			"health":       "/api/health",
			"projects":     "/api/projects?:username",
			"repositories": "/api/repositories?username=:username",
		},
		"examples": map[string]string{
			"health":       "/api/health",
			"projects":     "/api/projects?octocat",
			"repositories": "/api/repositories?username=octocat",
		},
	})
}

// handleAPIHealth reports upstream connectivity: 200 when healthy, 503 otherwise
func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r) {
		return
	}

	report := s.health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// handleProjects serves /api/projects?<username> and /api/projects?username=<username>
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r) {
		return
	}

	ctx := r.Context()
	username := projectsUsername(r.URL)
	if err := s.guard.Admit(guard.NewRequestContext(r), username); err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	listing, err := s.lister.ListProjects(ctx, username)
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", projectsCacheControl)
	writeJSON(w, http.StatusOK, listing)
}

// handleRepositories serves /api/repositories?username=<username>
func (s *Server) handleRepositories(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r) {
		return
	}

	ctx := r.Context()
	username := r.URL.Query().Get("username")
	if err := s.guard.Admit(guard.NewRequestContext(r), username); err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	listing, err := s.lister.ListRepositories(ctx, username)
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// projectsUsername takes the username parameter, or else the first query key
// in request order (/api/projects?octocat).
func projectsUsername(u *url.URL) string {
	if username := u.Query().Get("username"); username != "" {
		return username
	}
	for _, part := range strings.Split(u.RawQuery, "&") {
		key, _, _ := strings.Cut(part, "=")
		if key == "" {
			continue
		}
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if key != "username" {
			return key
		}
	}
	return ""
}

// writeFailure maps err onto a status code and writes the error body.
func (s *Server) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	logger := log.FromContext(ctx)

	var (
		rateLimit   *guard.RateLimitError
		validation  *guard.ValidationError
		notFound    *github.NotFoundError
		rateLimited *github.RateLimitedError
	)
	switch {
	case errors.As(err, &rateLimit):
		logger.Info("Request rejected by rate limiter", "identity", rateLimit.Identity)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(rateLimit.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &validation):
		logger.V(1).Info("Request rejected", "reason", validation.Reason)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &rateLimited):
		logger.Info("GitHub API rate limit exceeded")
		if !rateLimited.ResetAt.IsZero() {
			if wait := time.Until(rateLimited.ResetAt); wait > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
			}
		}
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		logger.Error(err, "Request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// allowMethod rejects anything but GET, HEAD and POST.
func allowMethod(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
		return true
	}
	w.Header().Set("Allow", "GET, POST, OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Log.Error(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
