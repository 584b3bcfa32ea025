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

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/repofetcher/internal/credentials"
	"github.com/mikelane/repofetcher/internal/github"
	"github.com/mikelane/repofetcher/internal/metrics"
)

// Mode describes which credential the provider currently holds
type Mode string

const (
	// ModeNone means no credential has been derived yet
	ModeNone Mode = "none"
	// ModeInstallation means data calls use an installation access token
	ModeInstallation Mode = "installation"
	// ModeDegraded means no installation token could be obtained and data
	// calls use the App assertion directly
	ModeDegraded Mode = "degraded"
)

const (
	// defaultInstallationTokenLifetime applies when GitHub omits expires_at
	defaultInstallationTokenLifetime = time.Hour
	// defaultExpirySkew re-derives credentials this long before they expire
	defaultExpirySkew = time.Minute
)

// Status is a snapshot of the provider state for operators
type Status struct {
	Mode           Mode      `json:"mode"`
	InstallationID int64     `json:"installation_id,omitempty"`
	AcquiredAt     time.Time `json:"acquired_at,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// heldToken is an immutable credential; the provider replaces it, never mutates it
type heldToken struct {
	token          github.Token
	mode           Mode
	installationID int64
	acquiredAt     time.Time
	expiresAt      time.Time
	lastError      string
}

// Provider derives and holds the credential used for GitHub data calls.
// It implements github.TokenSource and is safe for concurrent use.
type Provider struct {
	signer     *Signer
	api        github.AppClient
	now        func() time.Time
	expirySkew time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	current *heldToken
}

// Option configures a Provider
type Option func(*Provider)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithExpirySkew sets how long before expiry a held credential is re-derived
func WithExpirySkew(skew time.Duration) Option {
	return func(p *Provider) {
		p.expirySkew = skew
	}
}

// NewProvider creates a provider for the App identified by creds.
// A malformed private key is fatal and returned as a KeyParseError.
func NewProvider(creds *credentials.AppCredentials, api github.AppClient, opts ...Option) (*Provider, error) {
	signer, err := NewSigner(creds)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		signer:     signer,
		api:        api,
		now:        time.Now,
		expirySkew: defaultExpirySkew,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Token returns the current credential, deriving one when none is held or
// the held one is about to expire. Concurrent callers share one derivation,
// which runs detached from any single caller's cancellation; a caller whose
// ctx ends first gets ctx.Err() while the derivation completes for the rest.
func (p *Provider) Token(ctx context.Context) (*github.Token, error) {
	if held := p.live(); held != nil {
		token := held.token
		return &token, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan("token", func() (any, error) {
		// Another caller may have finished a derivation while we waited.
		if held := p.live(); held != nil {
			return held, nil
		}
		return p.derive(shared)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		token := res.Val.(*heldToken).token
		return &token, nil
	}
}

// Invalidate drops the held credential so the next Token call re-derives it.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// Reject drops the held credential if it is still token. A rejection of a
// credential that has since been replaced is ignored.
func (p *Provider) Reject(token *github.Token) {
	if token == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.token.Value == token.Value {
		p.current = nil
	}
}

// Refresh re-derives the credential immediately.
func (p *Provider) Refresh(ctx context.Context) error {
	p.Invalidate()
	_, err := p.Token(ctx)
	return err
}

// Status reports the mode of the held credential.
func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil {
		return Status{Mode: ModeNone}
	}
	return Status{
		Mode:           p.current.mode,
		InstallationID: p.current.installationID,
		AcquiredAt:     p.current.acquiredAt,
		ExpiresAt:      p.current.expiresAt,
		LastError:      p.current.lastError,
	}
}

// live returns the held credential if it is not within expirySkew of expiry
func (p *Provider) live() *heldToken {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current == nil || !p.now().Before(p.current.expiresAt.Add(-p.expirySkew)) {
		return nil
	}
	return p.current
}

// derive signs a fresh assertion and tries to exchange it for an installation
// token. Only signing failures are returned; exchange failures degrade to the
// assertion.
func (p *Provider) derive(ctx context.Context) (*heldToken, error) {
	logger := log.FromContext(ctx).WithName("auth")
	now := p.now()

	assertion, err := p.signer.Sign(now)
	if err != nil {
		return nil, err
	}

	held := p.exchange(ctx, assertion, now)
	if held.mode == ModeDegraded {
		logger.Info("Using App assertion without installation token", "reason", held.lastError)
		metrics.AuthDegraded.Set(1)
	} else {
		logger.V(1).Info("Obtained installation access token",
			"installationID", held.installationID, "expiresAt", held.expiresAt)
		metrics.AuthDegraded.Set(0)
	}
	metrics.TokenExchanges.WithLabelValues(string(held.mode)).Inc()

	p.mu.Lock()
	p.current = held
	p.mu.Unlock()

	return held, nil
}

// exchange performs installation discovery and token creation
func (p *Provider) exchange(ctx context.Context, assertion *Assertion, now time.Time) *heldToken {
	logger := log.FromContext(ctx).WithName("auth")

	degraded := func(reason string) *heldToken {
		return &heldToken{
			token:      github.Token{Value: assertion.Token, Kind: github.TokenKindAssertion},
			mode:       ModeDegraded,
			acquiredAt: now,
			expiresAt:  assertion.ExpiresAt,
			lastError:  reason,
		}
	}

	installations, err := p.api.ListInstallations(ctx, assertion.Token)
	if err != nil {
		logger.Error(err, "Could not set up installation client")
		return degraded(err.Error())
	}
	if len(installations) == 0 {
		logger.Info("No installations found. Install the app to access repositories.")
		return degraded("no installations found")
	}

	// First installation in upstream order.
	installation := installations[0]
	token, err := p.api.CreateInstallationToken(ctx, assertion.Token, installation.ID)
	if err != nil {
		logger.Error(err, "Could not create installation access token", "installationID", installation.ID)
		return degraded(err.Error())
	}
	if token.Token == "" {
		return degraded(fmt.Sprintf("installation %d returned an empty token", installation.ID))
	}

	expiresAt := token.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultInstallationTokenLifetime)
	}

	return &heldToken{
		token:          github.Token{Value: token.Token, Kind: github.TokenKindInstallation},
		mode:           ModeInstallation,
		installationID: installation.ID,
		acquiredAt:     now,
		expiresAt:      expiresAt,
	}
}
