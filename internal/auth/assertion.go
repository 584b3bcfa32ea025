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
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mikelane/repofetcher/internal/credentials"
)

const (
	// AssertionLifetime is how long a signed assertion stays valid. GitHub
	// rejects assertions that live longer than ten minutes.
	AssertionLifetime = 10 * time.Minute
	// ClockSkew is subtracted from the issued-at claim to tolerate drift
	// between our clock and GitHub's.
	ClockSkew = 60 * time.Second
)

// KeyParseError means the configured private key is not a usable RSA PEM key.
type KeyParseError struct {
	Err error
}

func (e *KeyParseError) Error() string {
	return fmt.Sprintf("Failed to parse private key: %v", e.Err)
}

func (e *KeyParseError) Unwrap() error { return e.Err }

// SigningError means the assertion could not be encoded or signed.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("Failed to generate JWT token: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Assertion is a signed, short-lived JWT identifying the App
type Assertion struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer mints RS256 assertions for one App
type Signer struct {
	key      *rsa.PrivateKey
	clientID string
}

// NewSigner parses the App's private key.
func NewSigner(creds *credentials.AppCredentials) (*Signer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, &KeyParseError{Err: err}
	}

	return &Signer{key: key, clientID: creds.ClientID}, nil
}

// Sign mints an assertion issued at now-ClockSkew and expiring at
// now+AssertionLifetime, with the client ID as issuer.
func (s *Signer) Sign(now time.Time) (*Assertion, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-ClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(AssertionLifetime)),
		Issuer:    s.clientID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return nil, &SigningError{Err: err}
	}

	return &Assertion{
		Token:     signed,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
