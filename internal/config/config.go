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

// Package config loads repofetcher's runtime configuration.
//
// Values start from Default, are merged with an optional YAML file and are
// finally overridden by a small set of environment variables so the service
// can run unmodified on platforms that only inject PORT.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential sources
const (
	CredentialsFromEnv    = "env"
	CredentialsFromSecret = "secret"
)

// Environment variables that override file values
const (
	EnvPort              = "PORT"
	EnvListenAddr        = "LISTEN_ADDR"
	EnvCredentialsSource = "CREDENTIALS_SOURCE"
	EnvSecretNamespace   = "SECRET_NAMESPACE"
	EnvSecretName        = "SECRET_NAME"
	EnvGitHubAPIURL      = "GITHUB_API_URL"
	EnvUpstreamRetries   = "UPSTREAM_MAX_RETRIES"
)

// Duration is a time.Duration written as a Go duration string ("5m", "300s").
type Duration time.Duration

// UnmarshalYAML accepts duration strings and bare integers (seconds).
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if seconds, err := strconv.Atoi(node.Value); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	// Version is reported by the index and health endpoints.
	Version string `yaml:"version"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
}

// RateLimitConfig configures the request guard.
type RateLimitConfig struct {
	Window         Duration `yaml:"window"`
	MaxRequests    int      `yaml:"max_requests"`
	MaxURLLength   int      `yaml:"max_url_length"`
	MaxQueryLength int      `yaml:"max_query_length"`
	MaxQueryParams int      `yaml:"max_query_params"`
}

// UpstreamConfig configures GitHub API access.
type UpstreamConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
	// MaxRetries enables the retrying client when positive.
	MaxRetries int `yaml:"max_retries"`
}

// CredentialsConfig selects where the GitHub App credentials come from.
type CredentialsConfig struct {
	// Source is "env" or "secret".
	Source          string `yaml:"source"`
	SecretNamespace string `yaml:"secret_namespace"`
	SecretName      string `yaml:"secret_name"`
}

// MaintenanceConfig configures the background maintenance loop.
type MaintenanceConfig struct {
	// Interval between runs; zero disables the loop.
	Interval Duration `yaml:"interval"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			Version:         "1.0.0",
		},
		Cache: CacheConfig{
			TTL: Duration(300 * time.Second),
		},
		RateLimit: RateLimitConfig{
			Window:         Duration(300 * time.Second),
			MaxRequests:    60,
			MaxURLLength:   1024,
			MaxQueryLength: 512,
			MaxQueryParams: 10,
		},
		Upstream: UpstreamConfig{
			BaseURL:   "https://api.github.com/",
			Timeout:   Duration(10 * time.Second),
			UserAgent: "repofetcher",
		},
		Credentials: CredentialsConfig{
			Source:          CredentialsFromEnv,
			SecretNamespace: "default",
			SecretName:      "repofetcher-github-app",
		},
		Maintenance: MaintenanceConfig{
			Interval: Duration(8 * time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and environment overrides read through lookup, then validates it.
// A nil lookup reads the process environment.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv applies environment overrides. PORT yields ":<port>" and loses to LISTEN_ADDR.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup(EnvPort); ok && port != "" {
		c.Server.Addr = ":" + port
	}
	if addr, ok := lookup(EnvListenAddr); ok && addr != "" {
		c.Server.Addr = addr
	}
	if source, ok := lookup(EnvCredentialsSource); ok && source != "" {
		c.Credentials.Source = source
	}
	if ns, ok := lookup(EnvSecretNamespace); ok && ns != "" {
		c.Credentials.SecretNamespace = ns
	}
	if name, ok := lookup(EnvSecretName); ok && name != "" {
		c.Credentials.SecretName = name
	}
	if base, ok := lookup(EnvGitHubAPIURL); ok && base != "" {
		c.Upstream.BaseURL = base
	}
	if raw, ok := lookup(EnvUpstreamRetries); ok && raw != "" {
		retries, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvUpstreamRetries, raw, err)
		}
		c.Upstream.MaxRetries = retries
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate_limit.max_requests must be positive"))
	}
	if c.RateLimit.MaxURLLength <= 0 || c.RateLimit.MaxQueryLength <= 0 || c.RateLimit.MaxQueryParams <= 0 {
		errs = append(errs, errors.New("rate_limit request shape limits must be positive"))
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url is not an absolute URL: %q", c.Upstream.BaseURL))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, errors.New("upstream.max_retries must not be negative"))
	}
	switch c.Credentials.Source {
	case CredentialsFromEnv:
	case CredentialsFromSecret:
		if c.Credentials.SecretNamespace == "" || c.Credentials.SecretName == "" {
			errs = append(errs, errors.New("credentials.secret_namespace and credentials.secret_name are required for the secret source"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid credentials.source: %q (want %q or %q)",
			c.Credentials.Source, CredentialsFromEnv, CredentialsFromSecret))
	}
	if c.Maintenance.Interval < 0 {
		errs = append(errs, errors.New("maintenance.interval must not be negative"))
	}

	return errors.Join(errs...)
}
