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

package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables holding the GitHub App identity.
const (
	EnvAppID        = "APP_ID"
	EnvPrivateKey   = "PRIVATE_KEY"
	EnvClientID     = "CLIENT_ID"
	EnvClientSecret = "CLIENT_SECRET"
)

// legacyEnv maps each variable to the GITHUB_-prefixed name older deployments use.
var legacyEnv = map[string]string{
	EnvAppID:        "GITHUB_APP_ID",
	EnvPrivateKey:   "GITHUB_PRIVATE_KEY",
	EnvClientID:     "GITHUB_CLIENT_ID",
	EnvClientSecret: "GITHUB_CLIENT_SECRET",
}

// AppCredentials is the static identity of the GitHub App.
// It is loaded once at startup and never modified afterwards.
type AppCredentials struct {
	AppID        string
	PrivateKey   string // PEM encoded RSA key
	ClientID     string
	ClientSecret string
}

// ConfigurationError reports missing or invalid credentials. It is fatal.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("Missing required environment variables: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// New validates that every field is present and returns the credentials.
// Literal "\n" sequences in the private key are turned into newlines.
func New(appID, privateKey, clientID, clientSecret string) (*AppCredentials, error) {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{EnvAppID, appID},
		{EnvPrivateKey, privateKey},
		{EnvClientID, clientID},
		{EnvClientSecret, clientSecret},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	return &AppCredentials{
		AppID:        strings.TrimSpace(appID),
		PrivateKey:   normalizePEM(privateKey),
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: clientSecret,
	}, nil
}

// FromEnv loads credentials from the process environment.
func FromEnv() (*AppCredentials, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup loads credentials using lookup, falling back to the GITHUB_
// prefixed variable names when the primary name is unset or empty.
func FromLookup(lookup func(string) (string, bool)) (*AppCredentials, error) {
	get := func(name string) string {
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
		if v, ok := lookup(legacyEnv[name]); ok {
			return v
		}
		return ""
	}

	return New(get(EnvAppID), get(EnvPrivateKey), get(EnvClientID), get(EnvClientSecret))
}

func normalizePEM(key string) string {
	return strings.TrimSpace(strings.ReplaceAll(key, `\n`, "\n")) + "\n"
}
